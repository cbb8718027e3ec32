// Package resample decimates sampled responses by an integer factor with a
// zero-phase Kaiser-windowed sinc anti-aliasing filter, as used to bring a
// microtime HRF down to the scan grid.
//
// The default filter matches a polyphase 1/q resampler with a Kaiser beta of
// 5 and a half length of 10·q taps:
//
//	hrfTR, err := resample.Decimate(hrfMicro, 3)
package resample
