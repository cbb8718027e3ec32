package window

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Type identifies a window function.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeTukey
	TypeGauss
)

// Option configures window generation.
type Option func(*config)

type config struct {
	alpha    float64
	periodic bool
}

func defaultConfig() config {
	return config{alpha: 1}
}

// WithAlpha sets the shape parameter: taper fraction for Tukey, standard
// deviation in samples for Gauss.
func WithAlpha(v float64) Option {
	return func(c *config) {
		if v >= 0 {
			c.alpha = v
		}
	}
}

// WithPeriodic configures periodic form (FFT framing) instead of symmetric form.
func WithPeriodic() Option {
	return func(c *config) {
		c.periodic = true
	}
}

// Generate returns window coefficients of the given length.
func Generate(t Type, length int, opts ...Option) []float64 {
	if length <= 0 {
		return nil
	}

	cfg := defaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	out := make([]float64, length)
	for i := range out {
		x := samplePosition(i, length, cfg.periodic)

		switch t {
		case TypeHann:
			out[i] = hannAt(x)
		case TypeTukey:
			out[i] = tukeyAt(x, cfg.alpha)
		case TypeGauss:
			out[i] = gaussAt(i, length, cfg.alpha)
		default:
			out[i] = 1
		}
	}

	return out
}

// Hann returns symmetric Hann coefficients, 0.5*(1-cos(2*pi*n/(size-1))).
func Hann(size int, opts ...Option) ([]float64, error) {
	return Generate(TypeHann, size, opts...), validateLength(size)
}

// Tukey returns Tukey (tapered cosine) coefficients. alpha is the tapered
// fraction: 0 gives a rectangle, 1 a Hann window.
func Tukey(size int, alpha float64, opts ...Option) ([]float64, error) {
	if size <= 0 || alpha < 0 || alpha > 1 {
		return nil, validateTukey(size, alpha)
	}

	return Generate(TypeTukey, size, append(opts, WithAlpha(alpha))...), nil
}

// Gaussian returns a Gaussian window with standard deviation sigma samples,
// centred on (size-1)/2.
func Gaussian(size int, sigma float64) ([]float64, error) {
	if size <= 0 || sigma <= 0 {
		return nil, validateGauss(size, sigma)
	}

	return Generate(TypeGauss, size, WithAlpha(sigma)), nil
}

// ApplyCoefficientsInPlace multiplies samples with coefficients in place.
func ApplyCoefficientsInPlace(samples, coeffs []float64) error {
	if len(samples) != len(coeffs) {
		return errMismatchedLength
	}

	vecmath.MulBlockInPlace(samples, coeffs)

	return nil
}

func samplePosition(n, size int, periodic bool) float64 {
	if size <= 1 {
		return 0
	}

	den := float64(size - 1)
	if periodic {
		den = float64(size)
	}

	return float64(n) / den
}

func hannAt(x float64) float64 {
	return 0.5 * (1 - math.Cos(2*math.Pi*x))
}

func tukeyAt(x, alpha float64) float64 {
	if alpha <= 0 {
		return 1
	}

	if alpha >= 1 {
		return hannAt(x)
	}

	a := alpha / 2
	switch {
	case x < a:
		return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-1)))
	case x <= 1-a:
		return 1
	default:
		return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-2/alpha+1)))
	}
}

func gaussAt(n, size int, sigma float64) float64 {
	d := float64(n) - 0.5*float64(size-1)
	return math.Exp(-0.5 * d * d / (sigma * sigma))
}
