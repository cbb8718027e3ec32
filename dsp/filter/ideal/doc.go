// Package ideal implements a brick-wall frequency-domain band-pass filter
// for sampled time series.
//
// Each series is mirrored before the FFT so the implicit periodic
// extension has no edge discontinuity. Bins outside the pass band are set
// to zero and the series mean is restored afterwards, so a band covering
// every frequency returns the input unchanged.
//
// # Usage
//
//	y, err := ideal.BandpassColumn(series, tr, ideal.Band{Low: 0.01, High: 0.08})
//
// Matrices are filtered column by column in blocks:
//
//	out, err := ideal.Bandpass(ctx, bold, tr, band, ideal.DefaultOptions())
package ideal
