package resample

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidFactor indicates a decimation factor below 1.
	ErrInvalidFactor = errors.New("resample: decimation factor must be >= 1")
	// ErrEmptyInput indicates an empty input sequence.
	ErrEmptyInput = errors.New("resample: empty input")
)

// Default anti-aliasing filter settings: a Kaiser-windowed sinc with
// beta 5 and 10 taps per unit of the factor on each side of the centre.
const (
	DefaultKaiserBeta = 5.0
	DefaultHalfWidth  = 10
)

type config struct {
	kaiserBeta float64
	halfWidth  int
}

// Option configures the decimator.
type Option func(*config)

// WithKaiserBeta overrides the Kaiser window beta parameter.
func WithKaiserBeta(beta float64) Option {
	return func(cfg *config) {
		if beta >= 0 {
			cfg.kaiserBeta = beta
		}
	}
}

// WithHalfWidth sets the filter half length to n·q taps.
func WithHalfWidth(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.halfWidth = n
		}
	}
}

func defaultConfig() config {
	return config{
		kaiserBeta: DefaultKaiserBeta,
		halfWidth:  DefaultHalfWidth,
	}
}

// Decimate low-pass filters x and keeps every q-th sample. The filter is
// zero phase and linear, the signal is zero outside its support, and the
// output has ceil(len(x)/q) samples. q == 1 returns a copy.
func Decimate(x []float64, q int, opts ...Option) ([]float64, error) {
	if q < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFactor, q)
	}

	if len(x) == 0 {
		return nil, ErrEmptyInput
	}

	if q == 1 {
		return append([]float64(nil), x...), nil
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	half := cfg.halfWidth * q
	h := lowpass(q, half, cfg.kaiserBeta)

	return decimate(x, h, q, half), nil
}

// DecimateColumns decimates every column of m by q.
func DecimateColumns(m *mat.Dense, q int, opts ...Option) (*mat.Dense, error) {
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return nil, ErrEmptyInput
	}

	var out *mat.Dense

	col := make([]float64, rows)

	for j := range cols {
		mat.Col(col, j, m)

		d, err := Decimate(col, q, opts...)
		if err != nil {
			return nil, err
		}

		if out == nil {
			out = mat.NewDense(len(d), cols, nil)
		}

		out.SetCol(j, d)
	}

	return out, nil
}

// decimate evaluates y[k] = Σ h[j]·x[k·q + half - j].
func decimate(x, h []float64, q, half int) []float64 {
	n := len(x)
	out := make([]float64, (n+q-1)/q)

	for k := range out {
		c := k*q + half

		var acc float64

		lo := max(0, c-n+1)
		hi := min(len(h)-1, c)

		for j := lo; j <= hi; j++ {
			acc += h[j] * x[c-j]
		}

		out[k] = acc
	}

	return out
}
