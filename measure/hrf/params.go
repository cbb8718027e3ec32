package hrf

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-hrf/dsp/basis"
	"github.com/cwbudde/algo-hrf/dsp/events"
	"github.com/cwbudde/algo-hrf/dsp/filter/ideal"
)

// Parameter validation errors.
var (
	ErrUnknownMode         = errors.New("hrf: unknown estimation mode")
	ErrInvalidTR           = errors.New("hrf: BOLD repetition time must be greater than 0")
	ErrInvalidMicrotime    = errors.New("hrf: microtime resolution T must not be less than 1")
	ErrInvalidOnset        = errors.New("hrf: microtime onset T0 must lie in [1, T]")
	ErrInvalidDerivatives  = errors.New("hrf: TD_DD can only take one of these values: 0, 1, 2")
	ErrInvalidOrder        = errors.New("hrf: order must lie in [1, 60]")
	ErrInvalidKernelLength = errors.New("hrf: kernel length must be positive")
	ErrInvalidOnsetSearch  = errors.New("hrf: onset search bounds must be non-negative with min <= max")
	ErrInvalidARLag        = errors.New("hrf: AR_lag must not be negative")
	ErrInvalidLocalK       = errors.New("hrf: localK must be greater than 0")
	ErrInvalidThreshold    = errors.New("hrf: threshold low bound must be below the high bound")
	ErrEmptyLagGrid        = errors.New("hrf: onset lag grid is empty")
	ErrMaskLength          = errors.New("hrf: temporal mask length does not match the series")
)

// Mode selects the HRF model.
type Mode string

const (
	ModeCanonical Mode = "canon2dd"
	ModeGamma     Mode = "gamma"
	ModeFourier   Mode = "fourier"
	ModeHanning   Mode = "hanning"
	ModeFIR       Mode = "FIR"
	ModeSmoothFIR Mode = "sFIR"
)

// ParseMode maps a configuration string to a Mode. Matching ignores case
// and accepts "canon" and "fourier_hanning" as aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "canon2dd", "canon", "canonical":
		return ModeCanonical, nil
	case "gamma":
		return ModeGamma, nil
	case "fourier":
		return ModeFourier, nil
	case "hanning", "fourier_hanning", "fourier-hanning":
		return ModeHanning, nil
	case "fir":
		return ModeFIR, nil
	case "sfir":
		return ModeSmoothFIR, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// IsFIR reports whether m estimates free tap weights.
func (m Mode) IsFIR() bool {
	return m == ModeFIR || m == ModeSmoothFIR
}

// Params configures a run. A Params value is read-only once estimation
// starts.
type Params struct {
	Estimation Mode
	// TR is the repetition time in seconds.
	TR float64
	// T is the microtime resolution (bins per scan); forced to 1 for FIR modes.
	T int
	// T0 is the 1-based microtime reference bin.
	T0 int
	// TDDD selects canonical derivatives: 0 none, 1 onset, 2 onset and dispersion.
	TDDD int
	// Volterra == 2 adds second-order canonical terms.
	Volterra int
	// Order is the gamma/Fourier basis order.
	Order int
	// Len is the kernel length in seconds.
	Len float64
	// MinOnsetSearch and MaxOnsetSearch bound the lag search in seconds.
	MinOnsetSearch float64
	MaxOnsetSearch float64
	// ARLag is the autoregressive order of the noise model.
	ARLag int
	// Threshold bounds the standardised event amplitude. Basis modes only
	// use Low; a zero High is unbounded.
	Threshold events.Threshold
	// LocalK is the half-width of the local-maximum window; 0 derives it
	// from TR (1 when TR <= 2, else 2).
	LocalK int
	// TemporalMask marks usable samples; nil uses every sample.
	TemporalMask []bool
	// Passband filters the series before estimation.
	Passband ideal.Band
	// DeconvPassband filters the series before deconvolution.
	DeconvPassband ideal.Band
}

// DefaultParams returns the canonical-with-derivatives configuration.
func DefaultParams() Params {
	return Params{
		Estimation:     ModeCanonical,
		TR:             2,
		T:              3,
		T0:             1,
		TDDD:           2,
		Order:          3,
		Len:            24,
		MinOnsetSearch: 4,
		MaxOnsetSearch: 8,
		ARLag:          1,
		Threshold:      events.Scalar(1),
		Passband:       ideal.Band{Low: 0.01, High: 0.08},
		DeconvPassband: ideal.FullBand(),
	}
}

// Normalize returns a copy with derived values filled in: FIR modes get
// T = T0 = 1, LocalK is resolved from TR when unset and a zero upper
// threshold means unbounded.
func (p Params) Normalize() Params {
	if p.Estimation.IsFIR() {
		p.T = 1
		p.T0 = 1
	}

	if p.LocalK == 0 {
		p.LocalK = 1
		if p.TR > 2 {
			p.LocalK = 2
		}
	}

	if p.Threshold.High == 0 {
		p.Threshold.High = math.Inf(1)
	}

	return p
}

// Validate checks p after normalisation and fails on the first problem.
func (p Params) Validate() error {
	p = p.Normalize()

	if _, err := ParseMode(string(p.Estimation)); err != nil {
		return err
	}

	if !(p.TR > 0) || math.IsInf(p.TR, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidTR, p.TR)
	}

	if p.T < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMicrotime, p.T)
	}

	if p.T0 < 1 || p.T0 > p.T {
		return fmt.Errorf("%w: %d", ErrInvalidOnset, p.T0)
	}

	if !(p.Len > 0) || math.IsInf(p.Len, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidKernelLength, p.Len)
	}

	if p.MinOnsetSearch < 0 || p.MaxOnsetSearch < p.MinOnsetSearch || math.IsNaN(p.MinOnsetSearch) || math.IsNaN(p.MaxOnsetSearch) {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidOnsetSearch, p.MinOnsetSearch, p.MaxOnsetSearch)
	}

	if p.ARLag < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidARLag, p.ARLag)
	}

	if p.LocalK < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidLocalK, p.LocalK)
	}

	if !(p.Threshold.Low < p.Threshold.High) {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidThreshold, p.Threshold.Low, p.Threshold.High)
	}

	switch p.Estimation {
	case ModeCanonical:
		if p.TDDD < 0 || p.TDDD > 2 {
			return fmt.Errorf("%w: %d", ErrInvalidDerivatives, p.TDDD)
		}
	case ModeGamma, ModeFourier, ModeHanning:
		if p.Order < 1 || p.Order > 60 {
			return fmt.Errorf("%w: %d", ErrInvalidOrder, p.Order)
		}
	}

	if p.Estimation.IsFIR() && p.Taps() < 1 {
		return fmt.Errorf("%w: %g s at TR %g s", ErrInvalidKernelLength, p.Len, p.TR)
	}

	if err := p.Passband.Validate(); err != nil {
		return fmt.Errorf("hrf: passband: %w", err)
	}

	if err := p.DeconvPassband.Validate(); err != nil {
		return fmt.Errorf("hrf: deconvolution passband: %w", err)
	}

	if len(p.LagGrid()) == 0 {
		return ErrEmptyLagGrid
	}

	return nil
}

// Dt is the microtime step TR/T in seconds.
func (p Params) Dt() float64 {
	p = p.Normalize()
	return p.TR / float64(p.T)
}

// LagGrid returns the candidate onset lags in microtime samples:
// fix(min/dt) through fix(max/dt) inclusive.
func (p Params) LagGrid() []int {
	dt := p.Dt()
	if !(dt > 0) {
		return nil
	}

	lo := int(math.Trunc(p.MinOnsetSearch / dt))
	hi := int(math.Trunc(p.MaxOnsetSearch / dt))

	if hi < lo {
		return nil
	}

	grid := make([]int, 0, hi-lo+1)
	for l := lo; l <= hi; l++ {
		grid = append(grid, l)
	}

	return grid
}

// Taps is the number of FIR kernel samples, floor(Len/TR).
func (p Params) Taps() int {
	if !(p.TR > 0) {
		return 0
	}

	return int(math.Floor(p.Len / p.TR))
}

// BasisConfig describes the basis set for the basis modes.
func (p Params) BasisConfig() (basis.Config, error) {
	p = p.Normalize()

	cfg := basis.Config{
		Dt:          p.Dt(),
		Resolution:  p.T,
		Length:      p.Len,
		Order:       p.Order,
		Derivatives: p.TDDD,
		Volterra:    p.Volterra,
	}

	switch p.Estimation {
	case ModeCanonical:
		cfg.Kind = basis.KindCanonical
	case ModeGamma:
		cfg.Kind = basis.KindGamma
	case ModeFourier:
		cfg.Kind = basis.KindFourier
	case ModeHanning:
		cfg.Kind = basis.KindHanning
	default:
		return basis.Config{}, fmt.Errorf("%w: %q has no basis set", ErrUnknownMode, p.Estimation)
	}

	return cfg, nil
}
