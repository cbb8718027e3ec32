package testutil

import (
	"math"
	"math/rand"
)

// DeterministicNoise generates uniform white noise in [-amplitude, amplitude)
// with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	return Spikes(length, pos)
}

// Spikes returns a length-n event train with ones at pos. Out-of-range
// positions are ignored.
func Spikes(n int, pos ...int) []float64 {
	out := make([]float64, n)
	for _, p := range pos {
		if p >= 0 && p < n {
			out[p] = 1
		}
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// Ones returns a slice of length n filled with 1.0.
func Ones(n int) []float64 {
	return DC(1.0, n)
}

// GammaKernel samples t^shape·exp(-t/scale) at t = 0, dt, 2dt, ... and
// scales it to a unit peak. It is a cheap stand-in for a response kernel.
func GammaKernel(n int, dt, shape, scale float64) []float64 {
	out := make([]float64, n)
	peak := 0.0
	for i := range out {
		t := float64(i) * dt
		out[i] = math.Pow(t, shape) * math.Exp(-t/scale)
		peak = math.Max(peak, out[i])
	}
	if peak > 0 {
		for i := range out {
			out[i] /= peak
		}
	}
	return out
}

// CausalConvolve returns the first len(x) samples of x convolved with h.
func CausalConvolve(x, h []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if v == 0 {
			continue
		}
		for j, w := range h {
			if i+j >= len(out) {
				break
			}
			out[i+j] += v * w
		}
	}
	return out
}

// SyntheticBOLD convolves an event train with h and adds deterministic
// noise of the given amplitude.
func SyntheticBOLD(seed int64, n int, events []int, h []float64, noise float64) []float64 {
	out := CausalConvolve(Spikes(n, events...), h)
	for i, v := range DeterministicNoise(seed, noise, n) {
		out[i] += v
	}
	return out
}
