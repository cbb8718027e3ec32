package conv

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-hrf/internal/testutil"
)

func TestDirect(t *testing.T) {
	tests := []struct {
		name     string
		a        []float64
		b        []float64
		expected []float64
	}{
		{
			name:     "simple 3x3",
			a:        []float64{1, 2, 3},
			b:        []float64{1, 1, 1},
			expected: []float64{1, 3, 6, 5, 3},
		},
		{
			name:     "impulse",
			a:        []float64{1, 2, 3, 4, 5},
			b:        []float64{1},
			expected: []float64{1, 2, 3, 4, 5},
		},
		{
			name:     "delayed impulse",
			a:        []float64{1, 2, 3, 4, 5},
			b:        []float64{0, 0, 1},
			expected: []float64{0, 0, 1, 2, 3, 4, 5},
		},
		{
			name:     "symmetric",
			a:        []float64{1, 2, 1},
			b:        []float64{1, 2, 1},
			expected: []float64{1, 4, 6, 4, 1},
		},
		{
			name:     "sparse onsets",
			a:        []float64{0, 1, 0, 0, 1, 0},
			b:        []float64{0.5, 1, 0.25},
			expected: []float64{0, 0.5, 1, 0.25, 0.5, 1, 0.25, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Direct(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			testutil.RequireSliceNearlyEqual(t, result, tt.expected, 1e-12)
		})
	}
}

func TestDirectErrors(t *testing.T) {
	_, err := Direct([]float64{}, []float64{1, 2})
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}

	_, err = Direct([]float64{1, 2}, []float64{})
	if !errors.Is(err, ErrEmptyKernel) {
		t.Errorf("expected ErrEmptyKernel, got %v", err)
	}
}

func TestDirectToClearsDestination(t *testing.T) {
	dst := []float64{9, 9, 9, 9}
	DirectTo(dst, []float64{1, 1}, []float64{1, 2, 3})

	testutil.RequireSliceNearlyEqual(t, dst, []float64{1, 3, 5, 3}, 0)
}

func TestConvolveFFTMatchesDirect(t *testing.T) {
	a := testutil.DeterministicNoise(3, 1, 500)
	b := testutil.DeterministicNoise(4, 1, 130)

	want, err := Direct(a, b)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Convolve(a, b)
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNearlyEqual(t, got, want, 1e-9)

	swapped, err := Convolve(b, a)
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNearlyEqual(t, swapped, want, 1e-9)
}

func TestConvolveMode(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{1, 1}

	tests := []struct {
		mode Mode
		want []float64
	}{
		{ModeFull, []float64{1, 3, 5, 7, 4}},
		{ModeSame, []float64{1, 3, 5, 7}},
		{ModeValid, []float64{3, 5, 7}},
	}

	for _, tt := range tests {
		got, err := ConvolveMode(a, b, tt.mode)
		if err != nil {
			t.Fatal(err)
		}

		testutil.RequireSliceNearlyEqual(t, got, tt.want, 1e-12)
	}
}

func TestNextPowerOf2(t *testing.T) {
	for _, tc := range []struct{ in, want int }{{0, 1}, {1, 1}, {2, 2}, {3, 4}, {17, 32}, {64, 64}} {
		if got := nextPowerOf2(tc.in); got != tc.want {
			t.Errorf("nextPowerOf2(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDeconvolveRegularizedRecoversSpikes(t *testing.T) {
	const n = 128

	x := make([]float64, n)
	x[20] = 1
	x[70] = -0.5

	h := []float64{0.2, 0.6, 1, 0.6, 0.2}

	full, err := Direct(x, h)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Deconvolve(full[:n], h, DeconvOptions{Method: DeconvRegularized, Lambda: 1e-6})
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != n {
		t.Fatalf("len = %d, want %d", len(got), n)
	}

	testutil.RequireFinite(t, got)

	if math.Abs(got[20]-1) > 0.05 || math.Abs(got[70]+0.5) > 0.05 {
		t.Fatalf("spikes = %v, %v; want ~1, ~-0.5", got[20], got[70])
	}
}

func TestDeconvolveErrors(t *testing.T) {
	if _, err := Deconvolve(nil, []float64{1}, DefaultDeconvOptions()); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}

	if _, err := Deconvolve([]float64{1}, nil, DefaultDeconvOptions()); !errors.Is(err, ErrEmptyKernel) {
		t.Errorf("expected ErrEmptyKernel, got %v", err)
	}

	if _, err := Deconvolve([]float64{1}, []float64{1}, DeconvOptions{Method: DeconvMethod(9)}); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestDeconvolveZeroKernel(t *testing.T) {
	y := testutil.DeterministicNoise(4, 1, 64)
	zero := make([]float64, 8)

	for _, m := range []DeconvMethod{DeconvIterativeWiener, DeconvRegularized} {
		got, err := Deconvolve(y, zero, DeconvOptions{Method: m})
		if !errors.Is(err, ErrDegenerateKernel) {
			t.Errorf("%v: expected ErrDegenerateKernel, got %v", m, err)
		}

		if got != nil {
			t.Errorf("%v: expected nil output, got %d samples", m, len(got))
		}
	}
}

func TestParseDeconvMethod(t *testing.T) {
	for name, want := range map[string]DeconvMethod{
		"":            DeconvIterativeWiener,
		"wiener":      DeconvIterativeWiener,
		"regularized": DeconvRegularized,
	} {
		got, err := ParseDeconvMethod(name)
		if err != nil || got != want {
			t.Errorf("ParseDeconvMethod(%q) = %v, %v", name, got, err)
		}
	}

	if _, err := ParseDeconvMethod("naive"); err == nil {
		t.Error("expected error")
	}

	if DeconvRegularized.String() != "regularized" {
		t.Errorf("String() = %q", DeconvRegularized.String())
	}
}
