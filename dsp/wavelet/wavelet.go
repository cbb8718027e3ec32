// Package wavelet provides single-level discrete wavelet decomposition and
// the median-absolute-deviation noise estimate built on it.
//
// Signals are extended by half-sample symmetric reflection, so the output
// of [Decompose] has floor((N+L-1)/2) coefficients for a filter of length L.
package wavelet

import (
	"errors"
	"math"
	"slices"
)

// ErrEmptyInput is returned when the input signal is empty.
var ErrEmptyInput = errors.New("wavelet: empty input")

// Wavelet holds decomposition filters.
type Wavelet struct {
	Name string
	Lo   []float64
	Hi   []float64
}

// DB2 is the Daubechies wavelet with two vanishing moments (four taps).
var DB2 = Wavelet{
	Name: "db2",
	Lo:   []float64{-0.12940952255092145, 0.22414386804185735, 0.836516303737469, 0.48296291314469025},
	Hi:   []float64{-0.48296291314469025, 0.836516303737469, -0.22414386804185735, -0.12940952255092145},
}

// Decompose returns the approximation and detail coefficients of x.
func Decompose(x []float64, w Wavelet) (approx, detail []float64, err error) {
	if len(x) == 0 {
		return nil, nil, ErrEmptyInput
	}

	l := len(w.Lo)
	n := (len(x) + l - 1) / 2

	approx = make([]float64, n)
	detail = make([]float64, n)

	for k := range n {
		var a, d float64

		for j := range l {
			v := x[symmetric(2*k+1-j, len(x))]
			a += w.Lo[j] * v
			d += w.Hi[j] * v
		}

		approx[k] = a
		detail[k] = d
	}

	return approx, detail, nil
}

// NoiseSigma estimates the noise standard deviation of x as
// median(|d|)/0.6745, d being the first-level detail coefficients.
func NoiseSigma(x []float64, w Wavelet) (float64, error) {
	_, d, err := Decompose(x, w)
	if err != nil {
		return 0, err
	}

	return MAD(d) / 0.6745, nil
}

// MAD returns the median of |x|.
func MAD(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}

	abs := make([]float64, len(x))
	for i, v := range x {
		abs[i] = math.Abs(v)
	}

	return Median(abs)
}

// Median returns the median of x, averaging the two middle values when
// len(x) is even. x is not modified.
func Median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}

	s := slices.Clone(x)
	slices.Sort(s)

	if n%2 == 1 {
		return s[n/2]
	}

	return 0.5 * (s[n/2-1] + s[n/2])
}

// symmetric maps i into [0, n) by half-sample reflection: x[-1] = x[0].
func symmetric(i, n int) int {
	if n == 1 {
		return 0
	}

	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}

	if i >= n {
		i = period - 1 - i
	}

	return i
}
