package basis

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// CanonicalParams holds the two-gamma response parameters in seconds.
type CanonicalParams struct {
	ResponseDelay        float64
	UndershootDelay      float64
	ResponseDispersion   float64
	UndershootDispersion float64
	Ratio                float64
	Onset                float64
	Length               float64
}

// DefaultCanonicalParams returns the SPM defaults (6, 16, 1, 1, 6, 0, 32).
func DefaultCanonicalParams() CanonicalParams {
	return CanonicalParams{
		ResponseDelay:        6,
		UndershootDelay:      16,
		ResponseDispersion:   1,
		UndershootDispersion: 1,
		Ratio:                6,
		Onset:                0,
		Length:               32,
	}
}

// CanonicalHRF evaluates the two-gamma HRF on a grid of rt seconds.
//
// The mixture is computed at rt/res resolution and sampled back every res
// points, giving floor(Length/rt)+1 samples normalised to unit sum.
func CanonicalHRF(rt float64, res int, p CanonicalParams) []float64 {
	if rt <= 0 || res < 1 {
		return nil
	}

	dt := rt / float64(res)
	fine := int(p.Length/dt + 1)

	response := distuv.Gamma{Alpha: p.ResponseDelay / p.ResponseDispersion, Beta: dt / p.ResponseDispersion}
	undershoot := distuv.Gamma{Alpha: p.UndershootDelay / p.UndershootDispersion, Beta: dt / p.UndershootDispersion}

	n := int(p.Length/rt + 1)
	out := make([]float64, 0, n)

	var sum float64

	for i := range n {
		k := i * res
		if k >= fine {
			break
		}

		u := float64(k) - p.Onset/dt
		v := response.Prob(u) - undershoot.Prob(u)/p.Ratio

		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}

		out = append(out, v)
		sum += v
	}

	if sum != 0 {
		for i := range out {
			out[i] /= sum
		}
	}

	return out
}

// canonical returns the canonical HRF with up to two finite-difference
// derivative columns: onset (step 1 s) and dispersion (step 0.01).
func canonical(dt float64, res int, length float64, derivs int) [][]float64 {
	p := DefaultCanonicalParams()
	p.Length = length

	hrf := CanonicalHRF(dt, res, p)
	cols := [][]float64{hrf}

	if derivs >= 1 {
		const dp = 1.0

		q := p
		q.Onset += dp
		cols = append(cols, finiteDiff(hrf, CanonicalHRF(dt, res, q), dp))
	}

	if derivs >= 2 {
		const dp = 0.01

		q := p
		q.ResponseDispersion += dp
		cols = append(cols, finiteDiff(hrf, CanonicalHRF(dt, res, q), dp))
	}

	return cols
}

func finiteDiff(base, shifted []float64, dp float64) []float64 {
	out := make([]float64, len(base))
	for i := range base {
		var s float64
		if i < len(shifted) {
			s = shifted[i]
		}

		out[i] = (base[i] - s) / dp
	}

	return out
}

// volterra appends every ordered pairwise product of the columns.
func volterra(cols [][]float64) [][]float64 {
	k := len(cols)
	out := append([][]float64(nil), cols...)

	for i := range k {
		for j := range k {
			prod := make([]float64, len(cols[i]))
			for t := range prod {
				prod[t] = cols[i][t] * cols[j][t]
			}

			out = append(out, prod)
		}
	}

	return out
}
