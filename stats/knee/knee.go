// Package knee locates the point of maximum curvature ("knee") on a
// discrete curve and uses it to choose among scored candidates.
//
// The HRF lag search and the iterative Wiener stopping rule both score a
// sequence of candidates and pick the one where the score curve bends most
// sharply. Both go through [Select] so the index convention is shared.
//
// # Usage
//
//	_, idx, err := knee.Point(scores)
//	sel, err := knee.Select(changes, knee.WithGlobalMinGuard(0.5), knee.WithOffset(1))
package knee

import (
	"errors"
	"math"
)

// ErrNoFinite is returned when a curve has no finite value.
var ErrNoFinite = errors.New("knee: curve has no finite values")

// ErrEmpty is returned for empty curves.
var ErrEmpty = errors.New("knee: empty curve")

// Point returns the value and index of the maximum-curvature point of y.
//
// Both axes are rescaled to [0, 1]; curvature is |y''| / (1 + y'^2)^1.5
// from central differences at interior points. A curve with fewer than
// three points returns its minimum. A flat curve returns index min(1, n-1).
// Non-finite entries are replaced by the largest finite entry.
func Point(y []float64) (float64, int, error) {
	n := len(y)
	if n == 0 {
		return 0, 0, ErrEmpty
	}

	clean, err := sanitize(y)
	if err != nil {
		return 0, 0, err
	}

	lo, hi := clean[0], clean[0]
	for _, v := range clean[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	span := hi - lo
	if span == 0 {
		idx := min(1, n-1)
		return y[idx], idx, nil
	}

	if n < 3 {
		idx := argmin(clean)
		return y[idx], idx, nil
	}

	dx := 1 / float64(n-1)
	best, bestK := 1, -1.0

	for i := 1; i < n-1; i++ {
		prev := (clean[i-1] - lo) / span
		cur := (clean[i] - lo) / span
		next := (clean[i+1] - lo) / span

		d1 := (next - prev) / (2 * dx)
		d2 := (next - 2*cur + prev) / (dx * dx)

		k := math.Abs(d2) / math.Pow(1+d1*d1, 1.5)
		if k > bestK {
			best, bestK = i, k
		}
	}

	return y[best], best, nil
}

// PointComplex runs [Point] on the magnitudes of c.
func PointComplex(c []complex128) (complex128, int, error) {
	mag := make([]float64, len(c))
	for i, v := range c {
		mag[i] = math.Hypot(real(v), imag(v))
	}

	_, idx, err := Point(mag)
	if err != nil {
		return 0, 0, err
	}

	return c[idx], idx, nil
}

func sanitize(y []float64) ([]float64, error) {
	maxFinite := math.Inf(-1)
	finite := 0

	for _, v := range y {
		if isFinite(v) {
			finite++

			if v > maxFinite {
				maxFinite = v
			}
		}
	}

	if finite == 0 {
		return nil, ErrNoFinite
	}

	out := make([]float64, len(y))
	for i, v := range y {
		if isFinite(v) {
			out[i] = v
		} else {
			out[i] = maxFinite
		}
	}

	return out, nil
}

func argmin(y []float64) int {
	idx := 0
	for i, v := range y {
		if v < y[idx] {
			idx = i
		}
	}

	return idx
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
