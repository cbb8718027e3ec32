package ideal

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-hrf/internal/fftplan"
	"github.com/cwbudde/algo-hrf/internal/workpool"
	"github.com/pbnjay/memory"
	"gonum.org/v1/gonum/mat"
)

// Errors returned by the filter.
var (
	ErrEmptyInput  = errors.New("ideal: empty input")
	ErrInvalidTR   = errors.New("ideal: repetition time must be > 0")
	ErrInvalidBand = errors.New("ideal: band edges must be non-negative with low <= high")
)

// DefaultBlockWidth is the number of columns filtered per block.
const DefaultBlockWidth = 5000

// Band is a pass band in Hz. High may be +Inf.
type Band struct {
	Low  float64
	High float64
}

// FullBand passes every frequency.
func FullBand() Band {
	return Band{Low: 0, High: math.Inf(1)}
}

// Validate reports whether the band edges are usable.
func (b Band) Validate() error {
	if math.IsNaN(b.Low) || math.IsNaN(b.High) || b.Low < 0 || b.High < 0 || b.Low > b.High {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidBand, b.Low, b.High)
	}

	return nil
}

// IsFull reports whether b keeps every non-DC bin of a series sampled at tr.
func (b Band) IsFull(tr float64) bool {
	return b.Low <= 0 && b.High*tr > 0.5
}

// Options configures block processing.
type Options struct {
	// BlockWidth caps the columns held in flight. 0 sizes blocks from
	// physical memory.
	BlockWidth int
	// Workers bounds column parallelism inside a block. < 1 means GOMAXPROCS.
	Workers int
}

// DefaultOptions returns 5000-column blocks with GOMAXPROCS workers.
func DefaultOptions() Options {
	return Options{BlockWidth: DefaultBlockWidth}
}

// Bandpass filters every column of x and returns a new matrix; x is not
// modified.
func Bandpass(ctx context.Context, x *mat.Dense, tr float64, band Band, opts Options) (*mat.Dense, error) {
	if x == nil || x.IsEmpty() {
		return nil, ErrEmptyInput
	}

	if !(tr > 0) || math.IsInf(tr, 0) {
		return nil, ErrInvalidTR
	}

	if err := band.Validate(); err != nil {
		return nil, err
	}

	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)

	width := opts.BlockWidth
	if width <= 0 {
		width = autoBlockWidth(rows)
	}

	for start := 0; start < cols; start += width {
		end := min(start+width, cols)

		errs := workpool.Map(ctx, end-start, opts.Workers, func(_ context.Context, i int) error {
			j := start + i

			y, err := BandpassColumn(mat.Col(nil, j, x), tr, band)
			if err != nil {
				return fmt.Errorf("column %d: %w", j, err)
			}

			out.SetCol(j, y)

			return nil
		})

		if err := workpool.FirstError(errs); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// BandpassColumn filters one series sampled every tr seconds.
//
// The series is mirror-extended to 2N samples, bins whose folded index
// f = min(k, 2N-k) lies below low*tr*2N or at/above high*tr*2N are zeroed
// together with DC, and the first N real samples plus the series mean are
// returned.
func BandpassColumn(x []float64, tr float64, band Band) ([]float64, error) {
	n := len(x)
	if n == 0 {
		return nil, ErrEmptyInput
	}

	l := 2 * n
	ext := make([]float64, l)

	var mean float64

	for i, v := range x {
		ext[i] = v
		ext[l-1-i] = v
		mean += v
	}

	mean /= float64(n)

	spec, err := fftplan.ForwardReal(ext)
	if err != nil {
		return nil, err
	}

	lo := band.Low * tr * float64(l)
	hi := band.High * tr * float64(l)

	for k := range spec {
		f := float64(min(k, l-k))
		if k == 0 || f < lo || f >= hi {
			spec[k] = 0
		}
	}

	y, err := fftplan.InverseReal(spec)
	if err != nil {
		return nil, err
	}

	y = y[:n]
	for i := range y {
		y[i] += mean
	}

	return y, nil
}

// autoBlockWidth sizes a block to roughly 1/16 of physical memory, counting
// three 2N-point complex buffers per column.
func autoBlockWidth(rows int) int {
	perColumn := uint64(3 * 2 * max(rows, 1) * 16)

	total := memory.TotalMemory()
	if total == 0 {
		return DefaultBlockWidth
	}

	w := int(total / 16 / perColumn)

	return max(1, min(w, 4*DefaultBlockWidth))
}
