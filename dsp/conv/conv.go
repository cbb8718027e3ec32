package conv

import (
	"errors"

	"github.com/cwbudde/algo-hrf/internal/fftplan"
	"gonum.org/v1/gonum/floats"
)

// Errors returned by convolution and deconvolution functions.
var (
	ErrEmptyInput       = errors.New("conv: empty input")
	ErrEmptyKernel      = errors.New("conv: empty kernel")
	ErrLengthMismatch   = errors.New("conv: buffer length mismatch")
	ErrDegenerateKernel = errors.New("conv: kernel is all zeros")
)

// Mode specifies the output mode for convolution.
type Mode int

const (
	// ModeFull returns the full convolution result with length len(a)+len(b)-1.
	ModeFull Mode = iota

	// ModeSame returns the first len(a) samples of the full result, the
	// causal truncation used to build regressors from onset trains.
	ModeSame

	// ModeValid returns only the portion where signals fully overlap,
	// with length max(len(a), len(b)) - min(len(a), len(b)) + 1.
	ModeValid
)

// directThreshold is the kernel length above which Convolve switches to FFT.
const directThreshold = 64

// Direct performs direct time-domain linear convolution of a and b.
// Returns a new slice of length len(a) + len(b) - 1.
//
// This is an O(N*M) algorithm suitable for short kernels.
func Direct(a, b []float64) ([]float64, error) {
	if len(a) == 0 {
		return nil, ErrEmptyInput
	}
	if len(b) == 0 {
		return nil, ErrEmptyKernel
	}

	result := make([]float64, len(a)+len(b)-1)

	DirectTo(result, a, b)
	return result, nil
}

// DirectTo performs direct convolution, writing to a pre-allocated destination.
// dst must have length len(a) + len(b) - 1.
//
// Zero input samples are skipped, so sparse onset trains convolve in
// time proportional to their event count.
func DirectTo(dst, a, b []float64) {
	m := len(b)

	for i := range dst {
		dst[i] = 0
	}

	for i, v := range a {
		if v == 0 {
			continue
		}

		floats.AddScaled(dst[i:i+m], v, b)
	}
}

// Convolve performs linear convolution with automatic algorithm selection.
// Kernels up to 64 samples use direct convolution, longer ones go through
// a zero-padded FFT product.
func Convolve(a, b []float64) ([]float64, error) {
	if len(a) == 0 {
		return nil, ErrEmptyInput
	}
	if len(b) == 0 {
		return nil, ErrEmptyKernel
	}

	if len(b) > len(a) {
		a, b = b, a
	}

	if len(b) <= directThreshold {
		return Direct(a, b)
	}

	return fftConvolve(a, b)
}

// ConvolveMode performs convolution with specified output mode.
func ConvolveMode(a, b []float64, mode Mode) ([]float64, error) {
	full, err := Convolve(a, b)
	if err != nil {
		return nil, err
	}

	return trimToMode(full, len(a), len(b), mode), nil
}

func trimToMode(full []float64, lenA, lenB int, mode Mode) []float64 {
	switch mode {
	case ModeSame:
		return full[:lenA]
	case ModeValid:
		if lenA >= lenB {
			return full[lenB-1 : lenA]
		}
		return full[lenA-1 : lenB]
	default:
		return full
	}
}

func fftConvolve(a, b []float64) ([]float64, error) {
	outLen := len(a) + len(b) - 1
	size := nextPowerOf2(outLen)

	ap := make([]float64, size)
	bp := make([]float64, size)
	copy(ap, a)
	copy(bp, b)

	fa, err := fftplan.ForwardReal(ap)
	if err != nil {
		return nil, err
	}

	fb, err := fftplan.ForwardReal(bp)
	if err != nil {
		return nil, err
	}

	for i := range fa {
		fa[i] *= fb[i]
	}

	out, err := fftplan.InverseReal(fa)
	if err != nil {
		return nil, err
	}

	return out[:outLen], nil
}

// nextPowerOf2 returns the next power of 2 >= n.
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
