package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/algo-hrf/dsp/basis"
	"github.com/cwbudde/algo-hrf/dsp/conv"
	"github.com/cwbudde/algo-hrf/dsp/events"
	"github.com/cwbudde/algo-hrf/dsp/filter/ideal"
	"github.com/cwbudde/algo-hrf/internal/testutil"
	"github.com/cwbudde/algo-hrf/measure/hrf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const scans = 240

func voxel(seed int64) []float64 {
	kernel := basis.CanonicalHRF(2, 16, basis.DefaultCanonicalParams())
	for i := range kernel {
		kernel[i] *= 5
	}

	var onsets []int
	for t := 5; t < 230; t += 13 {
		onsets = append(onsets, t+int(seed%3))
	}

	return testutil.SyntheticBOLD(seed, scans, onsets, kernel, 0.05)
}

// boldMatrix stacks synthetic voxels; a negative seed yields a constant
// column.
func boldMatrix(seeds ...int64) *mat.Dense {
	m := mat.NewDense(scans, len(seeds), nil)

	for j, s := range seeds {
		if s < 0 {
			m.SetCol(j, testutil.DC(3, scans))
			continue
		}

		m.SetCol(j, voxel(s))
	}

	return m
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.Deconv = conv.DeconvOptions{Method: conv.DeconvRegularized, Lambda: conv.DefaultLambda}

	return opts
}

func TestRunShapes(t *testing.T) {
	bold := boldMatrix(1, 2, -1)
	before := mat.DenseCopyOf(bold)

	res, err := Run(context.Background(), bold, hrf.DefaultParams(), DefaultOptions())
	require.NoError(t, err)

	assert.True(t, mat.Equal(before, bold), "input modified")

	est, err := hrf.NewEstimator(hrf.DefaultParams())
	require.NoError(t, err)

	microLen, _ := est.Basis().Dims()

	r, c := res.HRFMicrotime.Dims()
	assert.Equal(t, microLen, r)
	assert.Equal(t, 3, c)

	r, c = res.HRF.Dims()
	assert.Equal(t, (microLen+2)/3, r)
	assert.Equal(t, 3, c)

	r, c = res.Shape.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)

	r, c = res.Deconvolved.Dims()
	assert.Equal(t, scans, r)
	assert.Equal(t, 3, c)

	assert.Equal(t, 1, res.Failed())

	for v := range 2 {
		require.NoError(t, res.VoxelErrors[v])
		require.NotNil(t, res.Estimates[v])
		assert.NotEmpty(t, res.Events[v])
		assert.Equal(t, len(res.Events[v]), res.EventCount[v])
		testutil.RequireFinite(t, mat.Col(nil, v, res.Deconvolved))
		assert.Equal(t, res.Estimates[v].Shape.Height, res.Shape.At(0, v))
	}

	require.ErrorIs(t, res.VoxelErrors[2], hrf.ErrNoEvents)

	var ve *hrf.VoxelError
	require.ErrorAs(t, res.VoxelErrors[2], &ve)
	assert.Equal(t, 2, ve.Voxel)

	assert.Nil(t, res.Estimates[2])
	assert.Zero(t, res.EventCount[2])

	for _, m := range []*mat.Dense{res.HRF, res.HRFMicrotime, res.Shape, res.Deconvolved} {
		for _, x := range mat.Col(nil, 2, m) {
			assert.Zero(t, x)
		}
	}
}

func TestRunFIRKeepsScanResolution(t *testing.T) {
	p := hrf.DefaultParams()
	p.Estimation = hrf.ModeSmoothFIR

	res, err := Run(context.Background(), boldMatrix(4), p, fastOptions())
	require.NoError(t, err)

	r, _ := res.HRF.Dims()
	assert.Equal(t, p.Taps(), r)
	assert.True(t, mat.Equal(res.HRF, res.HRFMicrotime))
	assert.Equal(t, 1, res.Params.T)
}

func TestRunAllVoxelsFailed(t *testing.T) {
	_, err := Run(context.Background(), boldMatrix(-1, -1), hrf.DefaultParams(), fastOptions())
	require.ErrorIs(t, err, ErrAllVoxelsFailed)
	require.ErrorIs(t, err, hrf.ErrNoEvents)
}

func TestRunRejectsBadInput(t *testing.T) {
	_, err := Run(context.Background(), nil, hrf.DefaultParams(), fastOptions())
	require.ErrorIs(t, err, ErrEmptyInput)

	p := hrf.DefaultParams()
	p.TR = 0
	_, err = Run(context.Background(), boldMatrix(1), p, fastOptions())
	require.ErrorIs(t, err, hrf.ErrInvalidTR)

	p = hrf.DefaultParams()
	p.TemporalMask = make([]bool, scans-1)
	_, err = Run(context.Background(), boldMatrix(1), p, fastOptions())
	require.ErrorIs(t, err, hrf.ErrMaskLength)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, boldMatrix(1, 2), hrf.DefaultParams(), fastOptions())
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunWorkersAgree(t *testing.T) {
	bold := boldMatrix(1, 2, 3, 5)

	serial := fastOptions()
	serial.Workers = 1

	parallel := fastOptions()
	parallel.Workers = 4

	a, err := Run(context.Background(), bold, hrf.DefaultParams(), serial)
	require.NoError(t, err)

	b, err := Run(context.Background(), bold, hrf.DefaultParams(), parallel)
	require.NoError(t, err)

	assert.True(t, mat.Equal(a.HRF, b.HRF))
	assert.True(t, mat.Equal(a.Shape, b.Shape))
	assert.True(t, mat.Equal(a.Deconvolved, b.Deconvolved))
	assert.Equal(t, a.Events, b.Events)
}

type countingRecorder struct {
	mu     sync.Mutex
	stages map[string]int
	ok     int
	failed int
	events int
	lags   []int
}

func (r *countingRecorder) StageDuration(stage string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stages == nil {
		r.stages = map[string]int{}
	}

	r.stages[stage]++
}

func (r *countingRecorder) VoxelDone(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ok {
		r.ok++
	} else {
		r.failed++
	}
}

func (r *countingRecorder) EventsDetected(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events += n
}

func (r *countingRecorder) SelectedLag(lag int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lags = append(r.lags, lag)
}

func TestRunReportsToRecorder(t *testing.T) {
	rec := &countingRecorder{}

	opts := fastOptions()
	opts.Recorder = rec

	res, err := Run(context.Background(), boldMatrix(1, -1), hrf.DefaultParams(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.ok)
	assert.Equal(t, 1, rec.failed)
	assert.Equal(t, res.EventCount[0], rec.events)
	assert.Equal(t, []int{res.Estimates[0].Lag}, rec.lags)

	for _, stage := range []string{StageStandardize, StageBandpass, StageEstimate, StageResample, StageDeconvolve} {
		assert.Equal(t, 1, rec.stages[stage], stage)
	}
}

func TestStandardizeColumns(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})

	z := standardizeColumns(x)

	col := mat.Col(nil, 0, z)
	mean, std := stat.MeanStdDev(col, nil)
	assert.InDelta(t, 0, mean, 1e-12)
	assert.InDelta(t, 1, std, 1e-12)

	assert.Equal(t, []float64{0, 0, 0, 0}, mat.Col(nil, 1, z))
}

func TestVoxelKeys(t *testing.T) {
	err := &hrf.VoxelError{Voxel: 3, Lag: 7, Stage: hrf.StageFit, Err: errors.New("boom")}
	assert.Equal(t, []any{"voxel", 3, "stage", hrf.StageFit, "lag", 7}, voxelKeys(3, err))

	err.Lag = -1
	assert.Equal(t, []any{"voxel", 3, "stage", hrf.StageFit}, voxelKeys(3, err))

	assert.Equal(t, []any{"voxel", 1}, voxelKeys(1, errors.New("plain")))
}

func TestRunDeconvolutionFailsEveryVoxel(t *testing.T) {
	opts := fastOptions()
	opts.Deconv = conv.DeconvOptions{Method: conv.DeconvMethod(9)}

	res, err := Run(context.Background(), boldMatrix(1, 2), hrf.DefaultParams(), opts)
	require.ErrorIs(t, err, ErrAllVoxelsFailed)
	assert.Nil(t, res)

	var ve *hrf.VoxelError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, StageDeconvolve, ve.Stage)
}

func TestRunCanonicalPeakWithinOneTR(t *testing.T) {
	const n = 200

	p := hrf.DefaultParams()
	p.Estimation = hrf.ModeCanonical
	p.TR = 2
	p.T = 3
	p.T0 = 1
	p.ARLag = 1
	p.Len = 24
	p.Threshold = events.Scalar(1)
	p.Passband = ideal.FullBand()

	kernel := basis.CanonicalHRF(p.TR, 1, basis.DefaultCanonicalParams())
	for i := range kernel {
		kernel[i] *= 5
	}

	var onsets []int
	for s := 4; s < n-10; s += 13 {
		onsets = append(onsets, s)
	}

	bold := mat.NewDense(n, 3, nil)
	for v := range 3 {
		bold.SetCol(v, testutil.SyntheticBOLD(int64(11+v), n, onsets, kernel, 0.05))
	}

	truth := hrf.ShapeParameters(basis.CanonicalHRF(p.Dt(), 1, basis.DefaultCanonicalParams()), p.Dt())

	res, err := Run(context.Background(), bold, p, DefaultOptions())
	require.NoError(t, err)
	require.Zero(t, res.Failed())

	r, c := res.HRFMicrotime.Dims()
	assert.Equal(t, 3, c)
	assert.Greater(t, r, 0)

	for v := range 3 {
		assert.InDelta(t, truth.TimeToPeak, res.Shape.At(1, v), p.TR, "voxel %d time to peak", v)
		assert.Positive(t, res.Shape.At(0, v), "voxel %d height", v)
		testutil.RequireFinite(t, mat.Col(nil, v, res.Deconvolved))
	}
}
