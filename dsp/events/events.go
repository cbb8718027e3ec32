// Package events detects pseudo-events in a BOLD time series: strict local
// maxima of the standardised signal above a threshold.
//
// # Usage
//
//	idx, err := events.Detect(series, events.Scalar(1), 1, nil)
//	u := events.Indicator(len(series), idx)
package events

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Errors returned by detection.
var (
	ErrInvalidWindow = errors.New("events: local window K must be >= 1")
	ErrMaskLength    = errors.New("events: temporal mask length does not match series")
)

// Threshold bounds the standardised value of an event: Low < v < High.
type Threshold struct {
	Low  float64
	High float64
}

// Scalar returns a threshold with only a lower bound.
func Scalar(low float64) Threshold {
	return Threshold{Low: low, High: math.Inf(1)}
}

// Standardize returns the z-scored series. Without a mask the sample
// standard deviation (n-1) is used; with a mask, mean and population
// standard deviation come from the active samples only. A zero or
// undefined deviation is replaced by 1.
func Standardize(x []float64, mask []bool) ([]float64, error) {
	if mask != nil && len(mask) != len(x) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrMaskLength, len(mask), len(x))
	}

	out := make([]float64, len(x))
	if len(x) == 0 {
		return out, nil
	}

	var mean, std float64

	if mask == nil {
		mean, std = stat.MeanStdDev(x, nil)
	} else {
		active := make([]float64, 0, len(x))
		for i, on := range mask {
			if on {
				active = append(active, x[i])
			}
		}

		if len(active) > 0 {
			mean, std = stat.PopMeanStdDev(active, nil)
		}
	}

	if std == 0 || math.IsNaN(std) {
		std = 1
	}

	for i, v := range x {
		out[i] = (v - mean) / std
	}

	return out, nil
}

// Detect returns the ascending indices t in [k, N-k) where the
// standardised series exceeds thr.Low, stays below thr.High, and is
// strictly greater than each of the k samples on either side. With a mask,
// only active positions are eligible.
func Detect(x []float64, thr Threshold, k int, mask []bool) ([]int, error) {
	if k < 1 {
		return nil, ErrInvalidWindow
	}

	z, err := Standardize(x, mask)
	if err != nil {
		return nil, err
	}

	return detectStandardized(z, thr, k, mask), nil
}

func detectStandardized(z []float64, thr Threshold, k int, mask []bool) []int {
	var out []int

	for t := k; t < len(z)-k; t++ {
		if mask != nil && !mask[t] {
			continue
		}

		v := z[t]
		if !(v > thr.Low) || !(v < thr.High) {
			continue
		}

		if isStrictPeak(z, t, k) {
			out = append(out, t)
		}
	}

	return out
}

func isStrictPeak(z []float64, t, k int) bool {
	v := z[t]
	for j := 1; j <= k; j++ {
		if !(z[t-j] < v) || !(z[t+j] < v) {
			return false
		}
	}

	return true
}

// Indicator returns a length-n vector with ones at the given indices.
// Out-of-range indices are ignored.
func Indicator(n int, idx []int) []float64 {
	out := make([]float64, n)
	for _, i := range idx {
		if i >= 0 && i < n {
			out[i] = 1
		}
	}

	return out
}

// Shift moves every index back by lag and drops those that fall below zero.
func Shift(idx []int, lag int) []int {
	out := make([]int, 0, len(idx))
	for _, i := range idx {
		if j := i - lag; j >= 0 {
			out = append(out, j)
		}
	}

	return out
}
