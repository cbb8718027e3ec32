// Package hrf estimates the haemodynamic response function of a resting-state
// BOLD series without a task design.
//
// Spontaneous pseudo-events are taken as strict local maxima of the
// standardised series. For every candidate onset lag the events are shifted
// back, expanded into a design matrix and fitted with AR(p) feasible GLS.
// The lag is chosen at the knee of the residual variance curve.
//
// Four basis families (canonical with derivatives, gamma, Fourier and
// Hann-tapered Fourier) fit at microtime resolution TR/T. FIR and smoothed
// FIR fit one free weight per scan of the kernel; sFIR adds a
// squared-exponential smoothness prior on the taps.
//
// # Usage
//
//	p := hrf.DefaultParams()
//	est, err := hrf.NewEstimator(p)
//	if err != nil {
//		return err
//	}
//
//	fit, err := est.Estimate(voxel, series)
//	fmt.Println(fit.Lag, fit.Shape.TimeToPeak)
package hrf
