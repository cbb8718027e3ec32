// Package fftplan hands out complex FFT transforms of arbitrary length.
//
// Plans are cached per length in pools so concurrent callers never share
// scratch buffers. Power-of-two lengths use algo-fft; every other length
// uses gonum's mixed-radix implementation.
package fftplan

import (
	"errors"
	"sync"

	algofft "github.com/MeKo-Christian/algo-fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrInvalidLength is returned for non-positive transform sizes.
var ErrInvalidLength = errors.New("fftplan: length must be > 0")

// Transform is a forward/inverse complex FFT pair of fixed length.
// Inverse is normalized by 1/n.
type Transform interface {
	Len() int
	Forward(dst, src []complex128) error
	Inverse(dst, src []complex128) error
}

var (
	mu    sync.Mutex
	pools = map[int]*sync.Pool{}
)

// Get returns a transform of length n. Call Put when done.
func Get(n int) (Transform, error) {
	if n <= 0 {
		return nil, ErrInvalidLength
	}

	p := pool(n)
	if t, ok := p.Get().(Transform); ok {
		return t, nil
	}

	return newTransform(n), nil
}

// Put returns t to the cache.
func Put(t Transform) {
	if t == nil {
		return
	}

	pool(t.Len()).Put(t)
}

func pool(n int) *sync.Pool {
	mu.Lock()
	defer mu.Unlock()

	p, ok := pools[n]
	if !ok {
		p = &sync.Pool{}
		pools[n] = p
	}

	return p
}

func newTransform(n int) Transform {
	if isPowerOf2(n) {
		plan, err := algofft.NewPlan64(n)
		if err == nil {
			return &algoTransform{n: n, plan: plan}
		}
	}

	return newGonum(n)
}

func isPowerOf2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func newGonum(n int) *gonumTransform {
	return &gonumTransform{n: n, fft: fourier.NewCmplxFFT(n)}
}

type algoTransform struct {
	n    int
	plan *algofft.Plan[complex128]
}

func (t *algoTransform) Len() int { return t.n }

func (t *algoTransform) Forward(dst, src []complex128) error {
	return t.plan.Forward(dst, src)
}

func (t *algoTransform) Inverse(dst, src []complex128) error {
	return t.plan.Inverse(dst, src)
}

type gonumTransform struct {
	n   int
	fft *fourier.CmplxFFT
}

func (t *gonumTransform) Len() int { return t.n }

func (t *gonumTransform) Forward(dst, src []complex128) error {
	if len(dst) != t.n || len(src) != t.n {
		return ErrInvalidLength
	}

	t.fft.Coefficients(dst, src)

	return nil
}

func (t *gonumTransform) Inverse(dst, src []complex128) error {
	if len(dst) != t.n || len(src) != t.n {
		return ErrInvalidLength
	}

	t.fft.Sequence(dst, src)

	scale := complex(1/float64(t.n), 0)
	for i := range dst {
		dst[i] *= scale
	}

	return nil
}

// ForwardReal transforms a real sequence and returns its complex spectrum.
func ForwardReal(x []float64) ([]complex128, error) {
	t, err := Get(len(x))
	if err != nil {
		return nil, err
	}
	defer Put(t)

	src := make([]complex128, len(x))
	for i, v := range x {
		src[i] = complex(v, 0)
	}

	dst := make([]complex128, len(x))
	if err := t.Forward(dst, src); err != nil {
		return nil, err
	}

	return dst, nil
}

// InverseReal inverts spec and returns the real part of the sequence.
func InverseReal(spec []complex128) ([]float64, error) {
	t, err := Get(len(spec))
	if err != nil {
		return nil, err
	}
	defer Put(t)

	dst := make([]complex128, len(spec))
	if err := t.Inverse(dst, spec); err != nil {
		return nil, err
	}

	out := make([]float64, len(spec))
	for i, v := range dst {
		out[i] = real(v)
	}

	return out, nil
}
