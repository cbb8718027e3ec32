package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/algo-hrf/dsp/conv"
	"github.com/cwbudde/algo-hrf/dsp/filter/ideal"
	"github.com/cwbudde/algo-hrf/dsp/resample"
	"github.com/cwbudde/algo-hrf/internal/workpool"
	"github.com/cwbudde/algo-hrf/measure/hrf"
	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Errors returned by Run.
var (
	ErrEmptyInput      = errors.New("pipeline: empty BOLD matrix")
	ErrAllVoxelsFailed = errors.New("pipeline: every voxel failed")
)

// Stage names used for logging and timing.
const (
	StageStandardize = "standardize"
	StageBandpass    = "bandpass"
	StageEstimate    = "estimate"
	StageResample    = "resample"
	StageDeconvolve  = "deconvolve"
)

// VoxelError reports a failed voxel; see [hrf.VoxelError].
type VoxelError = hrf.VoxelError

// Recorder receives run measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	StageDuration(stage string, d time.Duration)
	VoxelDone(ok bool)
	EventsDetected(n int)
	SelectedLag(lag int)
}

type nopRecorder struct{}

func (nopRecorder) StageDuration(string, time.Duration) {}
func (nopRecorder) VoxelDone(bool)                      {}
func (nopRecorder) EventsDetected(int)                  {}
func (nopRecorder) SelectedLag(int)                     {}

// Options configures Run.
type Options struct {
	// Standardize z-scores every column (sample deviation) before filtering.
	Standardize bool
	// Workers bounds voxel parallelism; < 1 means GOMAXPROCS, 1 is serial.
	Workers int
	// BlockWidth caps the columns the band-pass filter holds in flight;
	// 0 sizes blocks from physical memory.
	BlockWidth int
	// Deconv selects and configures the deconvolution method.
	Deconv conv.DeconvOptions
	// Logger receives stage and failure records; the zero value discards.
	Logger logr.Logger
	// Recorder receives measurements; nil discards.
	Recorder Recorder
}

// DefaultOptions standardises the input, uses every CPU and deconvolves
// with the iterative Wiener filter.
func DefaultOptions() Options {
	return Options{
		Standardize: true,
		BlockWidth:  ideal.DefaultBlockWidth,
		Deconv:      conv.DefaultDeconvOptions(),
		Logger:      logr.Discard(),
	}
}

// Result holds the per-voxel outputs of Run. Columns follow the input
// voxel order; columns of failed voxels are zero.
type Result struct {
	// Params are the normalised parameters the run used.
	Params hrf.Params
	// Preprocessed is the standardised, band-passed estimation input.
	Preprocessed *mat.Dense
	// HRF is the response at scan resolution, one column per voxel.
	HRF *mat.Dense
	// HRFMicrotime is the response at TR/T resolution.
	HRFMicrotime *mat.Dense
	// Shape has rows height, time to peak and FWHM.
	Shape *mat.Dense
	// Deconvolved is the recovered neural drive, N × voxels.
	Deconvolved *mat.Dense
	// Events holds the detected pseudo-event scans per voxel.
	Events [][]int
	// EventCount is len(Events[v]).
	EventCount []int
	// Estimates are the raw fits; nil for failed voxels.
	Estimates []*hrf.Estimate
	// VoxelErrors holds one slot per voxel; nil on success.
	VoxelErrors []error
}

// Failed returns the number of failed voxels.
func (r *Result) Failed() int {
	return workpool.Failed(r.VoxelErrors)
}

// Run estimates the HRF of every column of bold (N scans × V voxels) and
// deconvolves each column with its own HRF. bold is not modified and is
// shared read-only by the workers. Per-voxel failures are reported in
// Result.VoxelErrors; Run itself fails on invalid parameters, on
// cancellation, or when no voxel succeeds.
func Run(ctx context.Context, bold *mat.Dense, params hrf.Params, opts Options) (*Result, error) {
	if bold == nil || bold.IsEmpty() {
		return nil, ErrEmptyInput
	}

	est, err := hrf.NewEstimator(params)
	if err != nil {
		return nil, err
	}

	p := est.Params()
	rows, cols := bold.Dims()

	if p.TemporalMask != nil && len(p.TemporalMask) != rows {
		return nil, fmt.Errorf("%w: %d vs %d scans", hrf.ErrMaskLength, len(p.TemporalMask), rows)
	}

	log := opts.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}

	log.Info("starting run", "mode", p.Estimation, "scans", rows, "voxels", cols, "lags", len(est.Lags()))

	r := &runner{ctx: ctx, p: p, opts: opts, log: log, rec: rec}

	data := bold
	if opts.Standardize {
		r.stage(StageStandardize, func() error {
			data = standardizeColumns(bold)
			return nil
		})
	}

	filtered := data
	if err := r.stage(StageBandpass, func() error {
		filtered, err = r.bandpass(data, p.Passband)
		return err
	}); err != nil {
		return nil, err
	}

	if filtered == bold {
		filtered = mat.DenseCopyOf(bold)
	}

	res := &Result{
		Params:       p,
		Preprocessed: filtered,
		Events:       make([][]int, cols),
		EventCount:   make([]int, cols),
	}

	if err := r.stage(StageEstimate, func() error {
		res.Estimates, res.VoxelErrors = workpool.Collect(ctx, cols, opts.Workers, func(_ context.Context, v int) (*hrf.Estimate, error) {
			return est.Estimate(v, mat.Col(nil, v, filtered))
		})

		return ctx.Err()
	}); err != nil {
		return nil, err
	}

	for v, e := range res.Estimates {
		if err := res.VoxelErrors[v]; err != nil {
			rec.VoxelDone(false)
			log.Error(err, "voxel failed", voxelKeys(v, err)...)

			continue
		}

		rec.VoxelDone(true)
		rec.EventsDetected(len(e.Events))
		rec.SelectedLag(e.Lag)

		res.Events[v] = e.Events
		res.EventCount[v] = len(e.Events)
	}

	if failed := res.Failed(); failed == cols {
		return nil, errors.Join(ErrAllVoxelsFailed, workpool.FirstError(res.VoxelErrors))
	} else if failed > 0 {
		log.Info("some voxels failed", "failed", failed, "voxels", cols)
	}

	res.HRFMicrotime, res.Shape = r.collect(res.Estimates)

	if err := r.stage(StageResample, func() error {
		res.HRF, err = r.toScans(res.HRFMicrotime)
		return err
	}); err != nil {
		return nil, err
	}

	if err := r.stage(StageDeconvolve, func() error {
		res.Deconvolved, err = r.deconvolve(data, res)
		return err
	}); err != nil {
		return nil, err
	}

	if res.Failed() == cols {
		return nil, errors.Join(ErrAllVoxelsFailed, workpool.FirstError(res.VoxelErrors))
	}

	log.Info("run finished", "voxels", cols, "failed", res.Failed())

	return res, nil
}

type runner struct {
	ctx  context.Context
	p    hrf.Params
	opts Options
	log  logr.Logger
	rec  Recorder
}

func (r *runner) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)

	r.rec.StageDuration(name, d)
	r.log.V(1).Info("stage done", "stage", name, "elapsed", d)

	if err != nil {
		return fmt.Errorf("pipeline: %s: %w", name, err)
	}

	return nil
}

func (r *runner) bandpass(x *mat.Dense, band ideal.Band) (*mat.Dense, error) {
	if band.IsFull(r.p.TR) {
		return x, nil
	}

	return ideal.Bandpass(r.ctx, x, r.p.TR, band, ideal.Options{
		BlockWidth: r.opts.BlockWidth,
		Workers:    r.opts.Workers,
	})
}

// collect stacks the microtime HRFs and shape parameters column-wise.
func (r *runner) collect(ests []*hrf.Estimate) (*mat.Dense, *mat.Dense) {
	length := 0
	for _, e := range ests {
		if e != nil {
			length = len(e.HRF)
			break
		}
	}

	curves := mat.NewDense(length, len(ests), nil)
	shape := mat.NewDense(3, len(ests), nil)

	for v, e := range ests {
		if e == nil {
			continue
		}

		curves.SetCol(v, e.HRF)

		s := e.Shape.Array()
		shape.SetCol(v, s[:])
	}

	return curves, shape
}

// toScans decimates the microtime curves by T.
func (r *runner) toScans(micro *mat.Dense) (*mat.Dense, error) {
	if r.p.T <= 1 {
		return mat.DenseCopyOf(micro), nil
	}

	return resample.DecimateColumns(micro, r.p.T)
}

// deconvolve filters the input with the deconvolution passband and
// deconvolves every successful voxel with its scan-rate HRF.
func (r *runner) deconvolve(data *mat.Dense, res *Result) (*mat.Dense, error) {
	src, err := r.bandpass(data, r.p.DeconvPassband)
	if err != nil {
		return nil, err
	}

	rows, cols := src.Dims()
	out := mat.NewDense(rows, cols, nil)

	errs := workpool.Map(r.ctx, cols, r.opts.Workers, func(_ context.Context, v int) error {
		if res.VoxelErrors[v] != nil {
			return nil
		}

		x, err := conv.Deconvolve(mat.Col(nil, v, src), mat.Col(nil, v, res.HRF), r.opts.Deconv)
		if err != nil {
			return &VoxelError{Voxel: v, Lag: -1, Stage: StageDeconvolve, Err: err}
		}

		out.SetCol(v, x)

		return nil
	})

	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	for v, err := range errs {
		if err != nil {
			res.VoxelErrors[v] = err
			res.Estimates[v] = nil
			res.Events[v] = nil
			res.EventCount[v] = 0

			r.log.Error(err, "deconvolution failed", voxelKeys(v, err)...)
		}
	}

	return out, nil
}

// standardizeColumns z-scores every column with the sample deviation.
// Constant columns become zero.
func standardizeColumns(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	col := make([]float64, rows)

	for j := range cols {
		mat.Col(col, j, x)

		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			continue
		}

		for i, v := range col {
			col[i] = (v - mean) / std
		}

		out.SetCol(j, col)
	}

	return out
}

func voxelKeys(v int, err error) []any {
	kv := []any{"voxel", v}

	var ve *VoxelError
	if errors.As(err, &ve) {
		kv = append(kv, "stage", ve.Stage)
		if ve.Lag >= 0 {
			kv = append(kv, "lag", ve.Lag)
		}
	}

	return kv
}
