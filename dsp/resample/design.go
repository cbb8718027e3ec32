package resample

import "math"

// lowpass designs a unit-DC-gain Kaiser-windowed sinc with 2·half+1 taps
// and cutoff at 1/q of the Nyquist frequency.
func lowpass(q, half int, beta float64) []float64 {
	n := 2*half + 1
	fc := 0.5 / float64(q)

	taps := make([]float64, n)

	var sum float64

	for i := range taps {
		t := float64(i - half)
		taps[i] = 2 * fc * sinc(2*fc*t) * kaiserWindow(i, n, beta)
		sum += taps[i]
	}

	if sum != 0 {
		for i := range taps {
			taps[i] /= sum
		}
	}

	return taps
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}

	pix := math.Pi * x

	return math.Sin(pix) / pix
}

func kaiserWindow(i, n int, beta float64) float64 {
	if n <= 1 || beta == 0 {
		return 1
	}

	t := 2*float64(i)/float64(n-1) - 1
	a := math.Sqrt(math.Max(0, 1-t*t))

	return i0(beta*a) / i0(beta)
}

// i0 is the modified Bessel function of the first kind, order zero.
func i0(x float64) float64 {
	// Power series approximation.
	sum := 1.0
	term := 1.0

	x2 := (x * x) / 4
	for k := 1; k < 64; k++ {
		term *= x2 / float64(k*k)

		sum += term
		if term < 1e-16*sum {
			break
		}
	}

	return sum
}
