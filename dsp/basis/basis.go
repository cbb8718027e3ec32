package basis

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-hrf/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Errors returned by basis construction.
var (
	ErrInvalidDt          = errors.New("basis: sampling interval must be > 0")
	ErrInvalidLength      = errors.New("basis: kernel length must be > 0")
	ErrInvalidOrder       = errors.New("basis: order must be >= 1")
	ErrInvalidDerivatives = errors.New("basis: derivative count must be 0, 1 or 2")
	ErrInvalidResolution  = errors.New("basis: microtime resolution must be >= 1")
	ErrUnknownKind        = errors.New("basis: unknown basis kind")
)

// Kind selects a basis family.
type Kind int

const (
	// KindCanonical is the two-gamma HRF plus optional derivatives.
	KindCanonical Kind = iota
	// KindGamma is a set of gamma densities with shapes 4, 8, 16, ...
	KindGamma
	// KindFourier is a constant column plus sine and cosine pairs.
	KindFourier
	// KindHanning is the Fourier set under a Hann taper.
	KindHanning
)

// String returns the mode name used in configuration.
func (k Kind) String() string {
	switch k {
	case KindCanonical:
		return "canon2dd"
	case KindGamma:
		return "gamma"
	case KindFourier:
		return "fourier"
	case KindHanning:
		return "hanning"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Config describes a basis set.
type Config struct {
	Kind Kind
	// Dt is the basis sampling interval in seconds (TR / Resolution).
	Dt float64
	// Resolution is the microtime resolution; canonical only.
	Resolution int
	// Length is the kernel length in seconds.
	Length float64
	// Order is the number of gamma functions or Fourier harmonics.
	Order int
	// Derivatives adds onset (1) and dispersion (2) derivatives; canonical only.
	Derivatives int
	// Volterra == 2 appends pairwise products of the canonical columns.
	Volterra int
}

// Get builds the basis set described by cfg and orthogonalises it.
// Columns are basis functions, rows are samples at cfg.Dt spacing.
func Get(cfg Config) (*mat.Dense, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var cols [][]float64

	switch cfg.Kind {
	case KindCanonical:
		cols = canonical(cfg.Dt, cfg.Resolution, cfg.Length, cfg.Derivatives)
		if cfg.Volterra == 2 {
			cols = volterra(cols)
		}
	case KindGamma:
		cols = Gamma(postStimulus(cfg.Dt, cfg.Length), cfg.Order)
	case KindFourier, KindHanning:
		pst := postStimulus(cfg.Dt, cfg.Length)
		if last := pst[len(pst)-1]; last > 0 {
			floats.Scale(1/last, pst)
		}

		cols = Fourier(pst, cfg.Order, cfg.Kind == KindHanning)
	}

	return Orthogonalize(columns(cols)), nil
}

func (cfg Config) validate() error {
	if !(cfg.Dt > 0) || math.IsInf(cfg.Dt, 0) {
		return ErrInvalidDt
	}

	if !(cfg.Length > 0) || math.IsInf(cfg.Length, 0) {
		return ErrInvalidLength
	}

	switch cfg.Kind {
	case KindCanonical:
		if cfg.Resolution < 1 {
			return ErrInvalidResolution
		}

		if cfg.Derivatives < 0 || cfg.Derivatives > 2 {
			return ErrInvalidDerivatives
		}
	case KindGamma, KindFourier, KindHanning:
		if cfg.Order < 1 {
			return ErrInvalidOrder
		}
	default:
		return ErrUnknownKind
	}

	return nil
}

// postStimulus returns 0, dt, 2dt, ... up to length (inclusive within 0.01 s).
func postStimulus(dt, length float64) []float64 {
	n := int(math.Ceil((length + 0.01) / dt))
	pst := make([]float64, n)

	for i := range pst {
		pst[i] = float64(i) * dt
	}

	return pst
}

// Gamma returns gamma densities with shape 2^i and unit rate, i = 2..order+1,
// evaluated at post-stimulus times pst.
func Gamma(pst []float64, order int) [][]float64 {
	cols := make([][]float64, 0, order)

	for i := 2; i <= order+1; i++ {
		g := distuv.Gamma{Alpha: math.Exp2(float64(i)), Beta: 1}

		col := make([]float64, len(pst))
		for t, u := range pst {
			col[t] = g.Prob(u)
		}

		cols = append(cols, col)
	}

	return cols
}

// Fourier returns a constant column, order sine columns and order cosine
// columns over normalised times pst in [0, 1]. With hann set every column
// is multiplied by a Hann taper.
func Fourier(pst []float64, order int, hann bool) [][]float64 {
	g := make([]float64, len(pst))
	if hann {
		taper, err := window.Hann(len(pst))
		if err == nil {
			copy(g, taper)
		}
	} else {
		for i := range g {
			g[i] = 1
		}
	}

	cols := [][]float64{g}

	for _, fn := range []func(float64) float64{math.Sin, math.Cos} {
		for k := 1; k <= order; k++ {
			col := make([]float64, len(pst))
			for t, u := range pst {
				col[t] = g[t] * fn(2*math.Pi*float64(k)*u)
			}

			cols = append(cols, col)
		}
	}

	return cols
}

// Orthogonalize applies sequential Gram-Schmidt to the columns of x without
// normalisation. Columns that reduce to zero stay zero.
func Orthogonalize(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)

	cur := make([]float64, r)
	prev := make([][]float64, 0, c)

	for j := range c {
		mat.Col(cur, j, x)

		res := append([]float64(nil), cur...)
		for _, q := range prev {
			qq := floats.Dot(q, q)
			if qq == 0 {
				continue
			}

			floats.AddScaled(res, -floats.Dot(cur, q)/qq, q)
		}

		out.SetCol(j, res)
		prev = append(prev, res)
	}

	return out
}

func columns(cols [][]float64) *mat.Dense {
	r := 0
	for _, col := range cols {
		r = max(r, len(col))
	}

	m := mat.NewDense(r, len(cols), nil)
	for j, col := range cols {
		for i, v := range col {
			m.Set(i, j, v)
		}
	}

	return m
}
