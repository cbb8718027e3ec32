// Package synth generates synthetic resting-state BOLD data: sparse
// spontaneous event trains convolved with a canonical HRF plus Gaussian
// noise. Output is deterministic for a given seed.
package synth

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-hrf/dsp/basis"
	"github.com/cwbudde/algo-hrf/dsp/conv"
	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidConfig = errors.New("synth: invalid configuration")
)

// Generator is a seeded random source. It is not safe for concurrent use.
type Generator struct {
	rng   fastrand.RNG
	spare float64
	has   bool
}

// NewGenerator returns a generator seeded with seed. Seed 0 is replaced by
// 1 so every generator is deterministic.
func NewGenerator(seed uint32) *Generator {
	g := &Generator{}
	if seed == 0 {
		seed = 1
	}

	g.rng.Seed(seed)

	return g
}

// Uniform returns a value in [0, 1).
func (g *Generator) Uniform() float64 {
	return float64(g.rng.Uint32()) / (1 << 32)
}

// Intn returns a value in [0, n).
func (g *Generator) Intn(n int) int {
	if n <= 1 {
		return 0
	}

	return int(g.rng.Uint32n(uint32(n)))
}

// Normal returns a standard normal deviate (Box-Muller).
func (g *Generator) Normal() float64 {
	if g.has {
		g.has = false
		return g.spare
	}

	u := g.Uniform()
	for u == 0 {
		u = g.Uniform()
	}

	v := g.Uniform()
	r := math.Sqrt(-2 * math.Log(u))

	g.spare = r * math.Sin(2*math.Pi*v)
	g.has = true

	return r * math.Cos(2*math.Pi*v)
}

// EventTrain returns ascending event scans in [0, n). Gaps between events
// are meanGap ± jitter scans, never below 1.
func (g *Generator) EventTrain(n, meanGap, jitter int) []int {
	if n < 1 || meanGap < 1 {
		return nil
	}

	jitter = max(0, min(jitter, meanGap-1))

	var out []int
	for t := g.Intn(meanGap); t < n; {
		out = append(out, t)
		t += meanGap - jitter + g.Intn(2*jitter+1)
	}

	return out
}

// BOLD convolves the event train with h, truncates to n scans and adds
// Gaussian noise with standard deviation sigma.
func (g *Generator) BOLD(n int, onsets []int, h []float64, amplitude, sigma float64) ([]float64, error) {
	train := make([]float64, n)
	for _, t := range onsets {
		if t >= 0 && t < n {
			train[t] = amplitude
		}
	}

	out, err := conv.ConvolveMode(train, h, conv.ModeSame)
	if err != nil {
		return nil, fmt.Errorf("synth: %w", err)
	}

	for i := range out {
		out[i] += sigma * g.Normal()
	}

	return out, nil
}

// Config describes a synthetic dataset.
type Config struct {
	Scans     int
	Voxels    int
	TR        float64
	MeanGap   int
	Jitter    int
	Amplitude float64
	Noise     float64
	Seed      uint32
}

// DefaultConfig returns 300 scans of 16 voxels at TR 2 s with an event
// roughly every 12 scans.
func DefaultConfig() Config {
	return Config{
		Scans:     300,
		Voxels:    16,
		TR:        2,
		MeanGap:   12,
		Jitter:    3,
		Amplitude: 5,
		Noise:     0.1,
		Seed:      1,
	}
}

func (c Config) validate() error {
	switch {
	case c.Scans < 2:
		return fmt.Errorf("%w: scans %d", ErrInvalidConfig, c.Scans)
	case c.Voxels < 1:
		return fmt.Errorf("%w: voxels %d", ErrInvalidConfig, c.Voxels)
	case !(c.TR > 0):
		return fmt.Errorf("%w: TR %g", ErrInvalidConfig, c.TR)
	case c.MeanGap < 1:
		return fmt.Errorf("%w: mean gap %d", ErrInvalidConfig, c.MeanGap)
	case c.Noise < 0:
		return fmt.Errorf("%w: noise %g", ErrInvalidConfig, c.Noise)
	}

	return nil
}

// Dataset is a generated BOLD matrix with its ground truth.
type Dataset struct {
	// BOLD has one column per voxel.
	BOLD *mat.Dense
	// Events are the true event scans per voxel.
	Events [][]int
	// HRF is the canonical response at TR resolution used for every voxel.
	HRF []float64
}

// Generate builds a dataset from cfg. Voxel v draws from its own generator
// seeded with Seed+v, so columns do not depend on Voxels.
func Generate(cfg Config) (*Dataset, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	h := basis.CanonicalHRF(cfg.TR, 16, basis.DefaultCanonicalParams())
	peak := 0.0
	for _, v := range h {
		peak = max(peak, v)
	}

	if peak > 0 {
		for i := range h {
			h[i] /= peak
		}
	}

	ds := &Dataset{
		BOLD:   mat.NewDense(cfg.Scans, cfg.Voxels, nil),
		Events: make([][]int, cfg.Voxels),
		HRF:    h,
	}

	for v := range cfg.Voxels {
		g := NewGenerator(cfg.Seed + uint32(v))

		ev := g.EventTrain(cfg.Scans, cfg.MeanGap, cfg.Jitter)

		col, err := g.BOLD(cfg.Scans, ev, h, cfg.Amplitude, cfg.Noise)
		if err != nil {
			return nil, err
		}

		ds.BOLD.SetCol(v, col)
		ds.Events[v] = ev
	}

	return ds, nil
}
