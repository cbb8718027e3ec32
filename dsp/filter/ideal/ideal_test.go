package ideal

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-hrf/internal/testutil"
	"gonum.org/v1/gonum/mat"
)

// halfSampleCos is periodic under mirror extension when f*2n is an integer.
func halfSampleCos(f float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Cos(2 * math.Pi * f * (float64(i) + 0.5))
	}

	return out
}

func TestFullBandIsIdentity(t *testing.T) {
	x := testutil.DeterministicNoise(3, 2, 123)
	for i := range x {
		x[i] += 5
	}

	y, err := BandpassColumn(x, 2, FullBand())
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNearlyEqual(t, y, x, 1e-9)
}

func TestBandpassSeparatesTones(t *testing.T) {
	const n = 200

	low := halfSampleCos(0.05, n)
	high := halfSampleCos(0.3, n)

	x := make([]float64, n)
	for i := range x {
		x[i] = low[i] + high[i] + 1
	}

	y, err := BandpassColumn(x, 1, Band{Low: 0.01, High: 0.1})
	if err != nil {
		t.Fatal(err)
	}

	want := make([]float64, n)
	for i := range want {
		want[i] = low[i] + 1
	}

	testutil.RequireSliceNearlyEqual(t, y, want, 1e-9)
}

func TestConstantSurvivesAnyBand(t *testing.T) {
	y, err := BandpassColumn(testutil.DC(4, 64), 2, Band{Low: 0.01, High: 0.08})
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNearlyEqual(t, y, testutil.DC(4, 64), 1e-12)
}

func TestBandpassMatrixMatchesColumns(t *testing.T) {
	const rows, cols = 60, 5

	x := mat.NewDense(rows, cols, nil)
	for j := range cols {
		x.SetCol(j, testutil.DeterministicNoise(int64(j+1), 1, rows))
	}

	orig := mat.DenseCopyOf(x)
	band := Band{Low: 0.01, High: 0.08}

	out, err := Bandpass(context.Background(), x, 2, band, Options{BlockWidth: 2, Workers: 3})
	if err != nil {
		t.Fatal(err)
	}

	if !mat.Equal(x, orig) {
		t.Fatal("input matrix was modified")
	}

	for j := range cols {
		want, err := BandpassColumn(mat.Col(nil, j, x), 2, band)
		if err != nil {
			t.Fatal(err)
		}

		testutil.RequireSliceNearlyEqual(t, mat.Col(nil, j, out), want, 1e-12)
	}
}

func TestBandpassErrors(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	ctx := context.Background()

	if _, err := Bandpass(ctx, x, 0, FullBand(), DefaultOptions()); !errors.Is(err, ErrInvalidTR) {
		t.Fatalf("err = %v, want ErrInvalidTR", err)
	}

	if _, err := Bandpass(ctx, x, 1, Band{Low: 0.1, High: 0.01}, DefaultOptions()); !errors.Is(err, ErrInvalidBand) {
		t.Fatalf("err = %v, want ErrInvalidBand", err)
	}

	if _, err := Bandpass(ctx, x, 1, Band{Low: -1, High: 1}, DefaultOptions()); !errors.Is(err, ErrInvalidBand) {
		t.Fatalf("err = %v, want ErrInvalidBand", err)
	}

	if _, err := BandpassColumn(nil, 1, FullBand()); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestIsFull(t *testing.T) {
	if !FullBand().IsFull(2) {
		t.Fatal("full band not reported as full")
	}

	if (Band{Low: 0.01, High: 0.08}).IsFull(2) {
		t.Fatal("narrow band reported as full")
	}
}

func TestAutoBlockWidth(t *testing.T) {
	if w := autoBlockWidth(1000); w < 1 {
		t.Fatalf("block width = %d, want >= 1", w)
	}
}
