package conv

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-hrf/internal/fftplan"
	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DeconvMethod specifies the deconvolution method.
type DeconvMethod int

const (
	// DeconvIterativeWiener runs [IterativeWiener]. It is the default.
	DeconvIterativeWiener DeconvMethod = iota

	// DeconvRegularized is the one-shot filter
	// output = IFFT(conj(H)·Y / (|H|² + Lambda·mean|H|²)).
	DeconvRegularized
)

// String returns the configuration name of m.
func (m DeconvMethod) String() string {
	switch m {
	case DeconvIterativeWiener:
		return "wiener"
	case DeconvRegularized:
		return "regularized"
	default:
		return fmt.Sprintf("DeconvMethod(%d)", int(m))
	}
}

// ParseDeconvMethod maps a configuration name to a DeconvMethod.
func ParseDeconvMethod(s string) (DeconvMethod, error) {
	switch s {
	case "", "wiener", "iterative-wiener":
		return DeconvIterativeWiener, nil
	case "regularized":
		return DeconvRegularized, nil
	default:
		return 0, fmt.Errorf("conv: unknown deconvolution method %q", s)
	}
}

// DefaultLambda is the relative regularisation of [DeconvRegularized].
const DefaultLambda = 0.1

// DeconvOptions configures [Deconvolve].
type DeconvOptions struct {
	Method DeconvMethod

	// Lambda scales mean|H|² in the regularised denominator; 0 means
	// DefaultLambda.
	Lambda float64

	// Wiener configures DeconvIterativeWiener.
	Wiener IterativeWienerOptions
}

// DefaultDeconvOptions returns default deconvolution options.
func DefaultDeconvOptions() DeconvOptions {
	return DeconvOptions{
		Method: DeconvIterativeWiener,
		Lambda: DefaultLambda,
		Wiener: DefaultIterativeWienerOptions(),
	}
}

// Deconvolve recovers the neural drive x from y = x * kernel. The result has
// the length of signal. An all-zero kernel fails with ErrDegenerateKernel
// for every method.
func Deconvolve(signal, kernel []float64, opts DeconvOptions) ([]float64, error) {
	if len(signal) == 0 {
		return nil, ErrEmptyInput
	}

	if len(kernel) == 0 {
		return nil, ErrEmptyKernel
	}

	if floats.Norm(kernel, math.Inf(1)) <= 1e-8 {
		return nil, ErrDegenerateKernel
	}

	switch opts.Method {
	case DeconvIterativeWiener:
		return IterativeWiener(signal, kernel, opts.Wiener)
	case DeconvRegularized:
		lambda := opts.Lambda
		if lambda <= 0 {
			lambda = DefaultLambda
		}

		return deconvolveRegularized(signal, kernel, lambda)
	default:
		return nil, fmt.Errorf("conv: unknown deconvolution method %v", opts.Method)
	}
}

// deconvolveRegularized divides by the kernel spectrum with a floor
// proportional to its mean power. The kernel is zero-padded or truncated
// to the signal length, so the division is circular.
func deconvolveRegularized(signal, kernel []float64, lambda float64) ([]float64, error) {
	n := len(signal)

	hp := make([]float64, n)
	copy(hp, kernel)

	hf, err := fftplan.ForwardReal(hp)
	if err != nil {
		return nil, err
	}

	yf, err := fftplan.ForwardReal(signal)
	if err != nil {
		return nil, err
	}

	phh := power(hf)
	floor := lambda * stat.Mean(phh, nil)

	out := make([]complex128, n)
	for i := range out {
		out[i] = cmplx.Conj(hf[i]) * yf[i] / complex(phh[i]+floor+tiny, 0)
	}

	return fftplan.InverseReal(out)
}

// power returns |X[k]|² for every bin.
func power(spec []complex128) []float64 {
	re := make([]float64, len(spec))
	im := make([]float64, len(spec))

	for i, c := range spec {
		re[i] = real(c)
		im[i] = imag(c)
	}

	out := make([]float64, len(spec))
	vecmath.Power(out, re, im)

	return out
}

// tiny guards spectral divisions.
const tiny = 1e-18
