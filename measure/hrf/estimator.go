package hrf

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/cwbudde/algo-hrf/dsp/basis"
	"github.com/cwbudde/algo-hrf/dsp/events"
	"github.com/cwbudde/algo-hrf/stats/knee"
	"github.com/cwbudde/algo-hrf/stats/regress"
	"gonum.org/v1/gonum/mat"
)

// ErrNoEvents is returned when no candidate lag leaves any pseudo-event.
var ErrNoEvents = errors.New("hrf: no events found")

// Stage names reported in a VoxelError.
const (
	StageDetect = "detect"
	StageDesign = "design"
	StageFit    = "fit"
	StageSelect = "select"
)

// VoxelError reports a failed voxel. Lag is the microtime lag being fitted,
// or -1 when the failure is not tied to a lag.
type VoxelError struct {
	Voxel int
	Lag   int
	Stage string
	Err   error
}

func (e *VoxelError) Error() string {
	if e.Lag < 0 {
		return fmt.Sprintf("hrf: voxel %d: %s: %v", e.Voxel, e.Stage, e.Err)
	}

	return fmt.Sprintf("hrf: voxel %d: %s at lag %d: %v", e.Voxel, e.Stage, e.Lag, e.Err)
}

func (e *VoxelError) Unwrap() error { return e.Err }

// Estimate is the per-voxel outcome of [Estimator.Estimate].
type Estimate struct {
	// Coefficients are the basis weights, or the FIR taps.
	Coefficients []float64
	// Intercept is the fitted baseline.
	Intercept float64
	// Lag is the selected onset lag in microtime samples (scans for FIR).
	Lag int
	// LagIndex is the position of Lag in the lag grid.
	LagIndex int
	// Scores holds the residual variance per lag; +Inf marks lags without events.
	Scores []float64
	// Events are the detected pseudo-event scan indices.
	Events []int
	// HRF is the estimated response sampled every Dt seconds.
	HRF []float64
	// Dt is the HRF sampling interval in seconds.
	Dt float64
	// Shape summarises HRF.
	Shape Shape
}

// Beta returns the coefficients with the selected lag appended.
func (e *Estimate) Beta() []float64 {
	out := make([]float64, 0, len(e.Coefficients)+1)
	out = append(out, e.Coefficients...)

	return append(out, float64(e.Lag))
}

// Estimator fits HRFs for one parameter set. It holds no per-voxel state and
// is safe for concurrent use.
type Estimator struct {
	params Params
	lags   []int
	basis  *mat.Dense
	prior  *mat.Dense
	taps   int
}

// NewEstimator validates p and precomputes the basis set or FIR prior.
func NewEstimator(p Params) (*Estimator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	p = p.Normalize()

	e := &Estimator{
		params: p,
		lags:   p.LagGrid(),
	}

	if p.Estimation.IsFIR() {
		e.taps = p.Taps()

		if p.Estimation == ModeSmoothFIR {
			prior, err := SmoothnessPrior(e.taps, p.TR)
			if err != nil {
				return nil, err
			}

			e.prior = prior
		}

		return e, nil
	}

	cfg, err := p.BasisConfig()
	if err != nil {
		return nil, err
	}

	bf, err := basis.Get(cfg)
	if err != nil {
		return nil, fmt.Errorf("hrf: basis set: %w", err)
	}

	e.basis = bf

	return e, nil
}

// Params returns the normalised parameters.
func (e *Estimator) Params() Params { return e.params }

// Basis returns the basis set, or nil in FIR modes.
func (e *Estimator) Basis() *mat.Dense { return e.basis }

// Lags returns the candidate lag grid.
func (e *Estimator) Lags() []int { return append([]int(nil), e.lags...) }

// Estimate detects pseudo-events in series, fits the model at every
// candidate lag and keeps the fit at the knee of the residual variance
// curve. Errors are *VoxelError values tagged with voxel.
func (e *Estimator) Estimate(voxel int, series []float64) (*Estimate, error) {
	p := e.params

	if p.TemporalMask != nil && len(p.TemporalMask) != len(series) {
		return nil, &VoxelError{Voxel: voxel, Lag: -1, Stage: StageDetect,
			Err: fmt.Errorf("%w: %d vs %d", ErrMaskLength, len(p.TemporalMask), len(series))}
	}

	thr := p.Threshold
	if !p.Estimation.IsFIR() {
		thr = events.Scalar(thr.Low)
	}

	ev, err := events.Detect(series, thr, p.LocalK, p.TemporalMask)
	if err != nil {
		return nil, &VoxelError{Voxel: voxel, Lag: -1, Stage: StageDetect, Err: err}
	}

	var fits []regress.ARResult
	if p.Estimation.IsFIR() {
		fits, err = e.fitFIR(voxel, series, ev)
	} else {
		fits, err = e.fitBasis(voxel, series, ev)
	}

	if err != nil {
		return nil, err
	}

	found := slices.ContainsFunc(fits, func(f regress.ARResult) bool { return f.Beta != nil })
	if !found {
		return nil, &VoxelError{Voxel: voxel, Lag: -1, Stage: StageSelect, Err: ErrNoEvents}
	}

	sel, scores, err := knee.SelectBy(len(fits), func(i int) float64 {
		if fits[i].Beta == nil {
			return math.Inf(1)
		}

		return fits[i].Variance
	})
	if err != nil {
		return nil, &VoxelError{Voxel: voxel, Lag: -1, Stage: StageSelect, Err: err}
	}

	idx := sel.Index
	if fits[idx].Beta == nil {
		idx = sel.MinIndex
	}

	return e.finish(ev, scores, idx, fits[idx].Beta), nil
}

// fitBasis fits the basis-set model at every lag. Lags without events
// leave a zero ARResult.
func (e *Estimator) fitBasis(voxel int, series []float64, ev []int) ([]regress.ARResult, error) {
	p := e.params
	n := len(series)
	bins := n * p.T

	fits := make([]regress.ARResult, len(e.lags))
	u := make([]float64, bins)

	for i, lag := range e.lags {
		clear(u)

		hit := false
		for _, t := range ev {
			if pos := t*p.T - lag; pos >= 0 && pos < bins {
				u[pos] = 1
				hit = true
			}
		}

		if !hit {
			continue
		}

		x, err := OnsetDesign(u, e.basis, p.T, p.T0, n)
		if err != nil {
			return nil, &VoxelError{Voxel: voxel, Lag: lag, Stage: StageDesign, Err: err}
		}

		res, err := regress.SolveAR(WithIntercept(x), series, regress.ARConfig{Lag: p.ARLag})
		if err != nil {
			return nil, &VoxelError{Voxel: voxel, Lag: lag, Stage: StageFit, Err: err}
		}

		fits[i] = res
	}

	return fits, nil
}

// fitFIR fits the stick-function model at every lag, with the smoothness
// prior in sFIR mode.
func (e *Estimator) fitFIR(voxel int, series []float64, ev []int) ([]regress.ARResult, error) {
	p := e.params
	fits := make([]regress.ARResult, len(e.lags))

	for i, lag := range e.lags {
		onsets := events.Shift(ev, lag)
		if len(onsets) == 0 {
			continue
		}

		x := StickDesign(onsets, len(series), e.taps)

		res, err := regress.SolveAR(x, series, regress.ARConfig{Lag: p.ARLag, Ridge: e.prior})
		if err != nil {
			return nil, &VoxelError{Voxel: voxel, Lag: lag, Stage: StageFit, Err: err}
		}

		fits[i] = res
	}

	return fits, nil
}

func (e *Estimator) finish(ev []int, scores []float64, idx int, beta []float64) *Estimate {
	p := e.params
	k := len(beta) - 1

	est := &Estimate{
		Coefficients: append([]float64(nil), beta[:k]...),
		Intercept:    beta[k],
		Lag:          e.lags[idx],
		LagIndex:     idx,
		Scores:       scores,
		Events:       ev,
		Dt:           p.Dt(),
	}

	if e.basis == nil {
		est.HRF = append([]float64(nil), est.Coefficients...)
	} else {
		var curve mat.VecDense
		curve.MulVec(e.basis, mat.NewVecDense(k, est.Coefficients))
		est.HRF = append([]float64(nil), curve.RawVector().Data...)
	}

	est.Shape = ShapeParameters(est.HRF, est.Dt)

	return est
}
