// Package conv provides convolution and deconvolution routines.
//
// Direct convolution skips zero input samples, which keeps building
// regressors from sparse onset trains cheap. [Convolve] switches to an FFT
// product for kernels longer than 64 samples.
//
// # Usage
//
//	result, err := conv.Direct(onsets, kernel)
//	regressor, err := conv.ConvolveMode(onsets, kernel, conv.ModeSame)
//
// # Deconvolution
//
// [IterativeWiener] recovers a neural drive from a BOLD series and an HRF
// kernel. The signal spectrum is refined iteratively and the refinement step
// used for the final filter is chosen at the knee of the spectral change:
//
//	opts := conv.DefaultIterativeWienerOptions()
//	drive, err := conv.IterativeWiener(bold, hrf, opts)
//
// [Deconvolve] selects between the iterative Wiener filter and a one-shot
// regularised spectral division:
//
//	drive, err := conv.Deconvolve(bold, hrf, conv.DeconvOptions{Method: conv.DeconvRegularized})
package conv
