package hrf

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-hrf/dsp/basis"
	"github.com/cwbudde/algo-hrf/dsp/events"
	"github.com/google/go-cmp/cmp"
)

func TestDefaultParamsValid(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestLagGrid(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Params)
		want []int
	}{
		{"defaults", func(*Params) {}, []int{6, 7, 8, 9, 10, 11, 12}},
		{"fir uses TR steps", func(p *Params) { p.Estimation = ModeFIR }, []int{2, 3, 4}},
		{"single lag", func(p *Params) { p.MinOnsetSearch, p.MaxOnsetSearch = 0, 0 }, []int{0}},
		{"fractional bounds truncate", func(p *Params) { p.T = 1; p.MinOnsetSearch, p.MaxOnsetSearch = 3, 7.9 }, []int{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mod(&p)

			if diff := cmp.Diff(tt.want, p.LagGrid()); diff != "" {
				t.Fatalf("LagGrid() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	p := DefaultParams()
	p.Estimation = ModeSmoothFIR
	p.Threshold = events.Threshold{Low: 1}

	n := p.Normalize()
	if n.T != 1 || n.T0 != 1 {
		t.Fatalf("T, T0 = %d, %d; want 1, 1", n.T, n.T0)
	}

	if n.LocalK != 1 {
		t.Fatalf("LocalK = %d, want 1 at TR 2", n.LocalK)
	}

	if !math.IsInf(n.Threshold.High, 1) {
		t.Fatalf("Threshold.High = %v, want +Inf", n.Threshold.High)
	}

	p.Threshold = events.Threshold{Low: -0.5}
	if high := p.Normalize().Threshold.High; !math.IsInf(high, 1) {
		t.Fatalf("negative Low: Threshold.High = %v, want +Inf", high)
	}

	if err := p.Validate(); err != nil {
		t.Fatalf("negative Low with unset High: %v", err)
	}

	p.TR = 2.5
	if k := p.Normalize().LocalK; k != 2 {
		t.Fatalf("LocalK = %d, want 2 at TR 2.5", k)
	}

	if p.T != 3 {
		t.Fatal("Normalize modified its receiver")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Params)
		want error
	}{
		{"mode", func(p *Params) { p.Estimation = "spline" }, ErrUnknownMode},
		{"zero TR", func(p *Params) { p.TR = 0 }, ErrInvalidTR},
		{"NaN TR", func(p *Params) { p.TR = math.NaN() }, ErrInvalidTR},
		{"microtime", func(p *Params) { p.T = 0 }, ErrInvalidMicrotime},
		{"onset bin", func(p *Params) { p.T0 = 4 }, ErrInvalidOnset},
		{"derivatives", func(p *Params) { p.TDDD = 3 }, ErrInvalidDerivatives},
		{"order", func(p *Params) { p.Estimation = ModeGamma; p.Order = 0 }, ErrInvalidOrder},
		{"kernel length", func(p *Params) { p.Len = -1 }, ErrInvalidKernelLength},
		{"fir taps", func(p *Params) { p.Estimation = ModeFIR; p.Len = 1 }, ErrInvalidKernelLength},
		{"onset search order", func(p *Params) { p.MinOnsetSearch = 9 }, ErrInvalidOnsetSearch},
		{"negative onset", func(p *Params) { p.MinOnsetSearch = -1 }, ErrInvalidOnsetSearch},
		{"AR lag", func(p *Params) { p.ARLag = -1 }, ErrInvalidARLag},
		{"local K", func(p *Params) { p.LocalK = -2 }, ErrInvalidLocalK},
		{"threshold", func(p *Params) { p.Threshold = events.Threshold{Low: 2, High: 1} }, ErrInvalidThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mod(&p)

			if err := p.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"canon2dd":        ModeCanonical,
		"Canon":           ModeCanonical,
		"gamma":           ModeGamma,
		"fourier":         ModeFourier,
		"fourier_hanning": ModeHanning,
		"FIR":             ModeFIR,
		"sfir":            ModeSmoothFIR,
	} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	if _, err := ParseMode("bspline"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("err = %v, want ErrUnknownMode", err)
	}
}

func TestBasisConfig(t *testing.T) {
	cfg, err := DefaultParams().BasisConfig()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Kind != basis.KindCanonical || cfg.Resolution != 3 || cfg.Derivatives != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}

	if math.Abs(cfg.Dt-2.0/3) > 1e-15 {
		t.Fatalf("Dt = %v, want 2/3", cfg.Dt)
	}

	p := DefaultParams()
	p.Estimation = ModeFIR

	if _, err := p.BasisConfig(); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("FIR BasisConfig err = %v", err)
	}
}

func TestTaps(t *testing.T) {
	p := DefaultParams()
	if got := p.Taps(); got != 12 {
		t.Fatalf("Taps() = %d, want 12", got)
	}

	p.TR = 0.72
	if got := p.Taps(); got != 33 {
		t.Fatalf("Taps() = %d, want 33", got)
	}
}
