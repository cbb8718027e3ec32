package hrf

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-hrf/dsp/conv"
	"gonum.org/v1/gonum/mat"
)

// OnsetDesign convolves the microtime onset train u with every basis column
// and samples the regressors at acquisition times n·T + T0-1. The result
// has one row per scan and one column per basis function.
func OnsetDesign(u []float64, bf *mat.Dense, t, t0, nscans int) (*mat.Dense, error) {
	rows, cols := bf.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.New("hrf: empty basis set")
	}

	if last := (nscans-1)*t + t0 - 1; nscans < 1 || t0 < 1 || last >= len(u) {
		return nil, fmt.Errorf("hrf: onset train of %d bins cannot cover %d scans at T=%d, T0=%d", len(u), nscans, t, t0)
	}

	x := mat.NewDense(nscans, cols, nil)
	full := make([]float64, len(u)+rows-1)

	for j := range cols {
		conv.DirectTo(full, u, mat.Col(nil, j, bf))

		for n := range nscans {
			x.Set(n, j, full[n*t+t0-1])
		}
	}

	return x, nil
}

// WithIntercept returns x with a trailing column of ones.
func WithIntercept(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()

	out := mat.NewDense(r, c+1, nil)
	out.Slice(0, r, 0, c).(*mat.Dense).Copy(x)

	for i := range r {
		out.Set(i, c, 1)
	}

	return out
}

// StickDesign builds the FIR deconvolution design for n scans: column j is
// the onset indicator delayed by j samples, for j in [0, taps), followed by
// an intercept column. Onsets outside [0, n) are ignored.
func StickDesign(onsets []int, n, taps int) *mat.Dense {
	x := mat.NewDense(n, taps+1, nil)

	for _, o := range onsets {
		if o < 0 || o >= n {
			continue
		}

		for j := range taps {
			if o+j >= n {
				break
			}

			x.Set(o+j, j, 1)
		}
	}

	for i := range n {
		x.Set(i, taps, 1)
	}

	return x
}

// Smoothness prior constants for sFIR: prior variance v and noise scale
// sigma of R = v·exp(-h/2·(i-j)²).
const (
	priorVariance = 0.1
	priorSigma    = 1.0
)

// SmoothnessPrior returns the (taps+1)×(taps+1) ridge matrix σ²·R⁻¹ that
// penalises tap-to-tap roughness, R being a squared-exponential covariance
// over tap index with bandwidth h = sqrt(TR/7). The intercept row and
// column are zero so the baseline is not shrunk.
func SmoothnessPrior(taps int, tr float64) (*mat.Dense, error) {
	if taps < 1 {
		return nil, fmt.Errorf("%w: %d taps", ErrInvalidKernelLength, taps)
	}

	h := math.Sqrt(tr / 7)

	r := mat.NewSymDense(taps, nil)
	for i := range taps {
		for j := i; j < taps; j++ {
			d := float64(i - j)
			r.SetSym(i, j, priorVariance*math.Exp(-h/2*d*d))
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(r); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("hrf: smoothness prior: %w", err)
		}
	}

	prior := mat.NewDense(taps+1, taps+1, nil)
	view := prior.Slice(0, taps, 0, taps).(*mat.Dense)
	view.Scale(priorSigma*priorSigma, &inv)

	return prior, nil
}
