package hrf

import "math"

// Shape summarises an HRF curve.
type Shape struct {
	Height     float64
	TimeToPeak float64
	FWHM       float64
}

// Array returns the shape as [height, time-to-peak, FWHM].
func (s Shape) Array() [3]float64 {
	return [3]float64{s.Height, s.TimeToPeak, s.FWHM}
}

// plateauSlope is the step below which the peak is walked back onto the
// start of a plateau.
const plateauSlope = 0.001

// ShapeParameters measures height, time to peak and full width at half
// maximum of an HRF sampled every dt seconds.
//
// The peak is the largest magnitude within the first 80 % of the curve. If
// the curve is flat before the peak, the peak moves back to where the
// plateau starts. The width counts samples at or beyond half the peak
// height up to the first place the curve drops below it. An all-zero or
// empty curve yields a zero Shape.
func ShapeParameters(curve []float64, dt float64) Shape {
	if allZero(curve) {
		return Shape{}
	}

	n := max(1, int(float64(len(curve))*0.8))

	p := 0
	for i := 1; i < n; i++ {
		if math.Abs(curve[i]) > math.Abs(curve[p]) {
			p = i
		}
	}

	h := curve[p]

	above := make([]int, len(curve))
	for i, v := range curve {
		if (h > 0 && v >= h/2) || (h <= 0 && v <= h/2) {
			above[i] = 1
		}
	}

	// Cut the run at the first falling edge; with no falling edge the cut
	// falls after the first sample.
	cut, drop := 0, math.MaxInt
	for i := 0; i+1 < len(above); i++ {
		if d := above[i+1] - above[i]; d < drop {
			cut, drop = i, d
		}
	}

	w := 0
	for i := 0; i <= cut && i < len(above); i++ {
		w += above[i]
	}

	for c := p - 1; c >= 0 && math.Abs(curve[c+1]-curve[c]) < plateauSlope; c-- {
		h = curve[c]
		p = c
	}

	return Shape{
		Height:     h,
		TimeToPeak: float64(p+1) * dt,
		FWHM:       float64(w) * dt,
	}
}

func allZero(x []float64) bool {
	for _, v := range x {
		if v != 0 {
			return false
		}
	}

	return true
}
