package events

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-hrf/internal/testutil"
	"github.com/google/go-cmp/cmp"
)

func TestDetectZeroSeries(t *testing.T) {
	got, err := Detect(make([]float64, 50), Scalar(1), 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 0 {
		t.Fatalf("events = %v, want none", got)
	}
}

func TestDetectSingleSpike(t *testing.T) {
	x := testutil.Impulse(40, 17)

	got, err := Detect(x, Scalar(1), 2, nil)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]int{17}, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectEdgesExcluded(t *testing.T) {
	x := make([]float64, 20)
	x[0] = 10
	x[19] = 10

	got, err := Detect(x, Scalar(0.5), 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 0 {
		t.Fatalf("events = %v, want none at series edges", got)
	}
}

func TestDetectStrictDominance(t *testing.T) {
	// A plateau of two equal maxima is not a strict peak.
	x := make([]float64, 20)
	x[8], x[9] = 5, 5
	x[14] = 5

	got, err := Detect(x, Scalar(0.5), 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]int{14}, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectWindowSize(t *testing.T) {
	x := make([]float64, 30)
	x[10], x[12] = 4, 5

	k1, err := Detect(x, Scalar(0.5), 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	k2, err := Detect(x, Scalar(0.5), 2, nil)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]int{10, 12}, k1); diff != "" {
		t.Fatalf("k=1 mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]int{12}, k2); diff != "" {
		t.Fatalf("k=2 mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectUpperBound(t *testing.T) {
	x := make([]float64, 60)
	x[10] = 3
	x[30] = 40

	scalar, err := Detect(x, Scalar(1), 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	inf, err := Detect(x, Threshold{Low: 1, High: math.Inf(1)}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(scalar, inf); diff != "" {
		t.Fatalf("[1, inf] differs from scalar 1 (-scalar +vector):\n%s", diff)
	}

	bounded, err := Detect(x, Threshold{Low: 0, High: 2}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]int{10}, bounded); diff != "" {
		t.Fatalf("bounded mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectMask(t *testing.T) {
	x := make([]float64, 30)
	x[5], x[15], x[25] = 3, 3, 3

	mask := make([]bool, 30)
	for i := range mask {
		mask[i] = i < 20
	}

	mask[5] = false

	got, err := Detect(x, Scalar(1), 1, mask)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]int{15}, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestStandardize(t *testing.T) {
	z, err := Standardize([]float64{1, 2, 3, 4, 5}, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Sample standard deviation of 1..5 is sqrt(2.5).
	testutil.RequireSliceNearlyEqual(t, z, []float64{
		-2 / math.Sqrt(2.5), -1 / math.Sqrt(2.5), 0, 1 / math.Sqrt(2.5), 2 / math.Sqrt(2.5),
	}, 1e-12)

	masked, err := Standardize([]float64{1, 3, 100}, []bool{true, true, false})
	if err != nil {
		t.Fatal(err)
	}

	// Active samples 1 and 3: mean 2, population deviation 1.
	testutil.RequireSliceNearlyEqual(t, masked, []float64{-1, 1, 98}, 1e-12)

	flat, err := Standardize(testutil.DC(7, 4), nil)
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNearlyEqual(t, flat, make([]float64, 4), 0)
}

func TestErrors(t *testing.T) {
	if _, err := Detect([]float64{1, 2, 3}, Scalar(1), 0, nil); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("err = %v, want ErrInvalidWindow", err)
	}

	if _, err := Detect([]float64{1, 2, 3}, Scalar(1), 1, []bool{true}); !errors.Is(err, ErrMaskLength) {
		t.Fatalf("err = %v, want ErrMaskLength", err)
	}
}

func TestIndicatorAndShift(t *testing.T) {
	u := Indicator(6, []int{1, 4, 9, -1})
	testutil.RequireSliceNearlyEqual(t, u, []float64{0, 1, 0, 0, 1, 0}, 0)

	if diff := cmp.Diff([]int{0, 3}, Shift([]int{1, 2, 5}, 2)); diff != "" {
		t.Fatalf("shift mismatch (-want +got):\n%s", diff)
	}
}
