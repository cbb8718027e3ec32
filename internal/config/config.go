// Package config resolves command line configuration with precedence
// flags > environment (RSHRF_*) > YAML file (--config) > defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/cwbudde/algo-hrf/dsp/conv"
	"github.com/cwbudde/algo-hrf/dsp/events"
	"github.com/cwbudde/algo-hrf/dsp/filter/ideal"
	"github.com/cwbudde/algo-hrf/measure/hrf"
	"github.com/cwbudde/algo-hrf/pipeline"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: RSHRF_TR, RSHRF_AR_LAG, ...
const EnvPrefix = "RSHRF"

var (
	ErrNoInput       = errors.New("config: either --ts or --simulate is required")
	ErrInvalidConfig = errors.New("config: invalid value")
)

// Keys double as flag names, YAML keys and (upper-cased, '-' → '_')
// environment variable suffixes.
const (
	KeyConfig = "config"

	KeyEstimation     = "estimation"
	KeyTR             = "tr"
	KeyT              = "t"
	KeyT0             = "t0"
	KeyTDDD           = "tddd"
	KeyVolterra       = "volterra"
	KeyOrder          = "order"
	KeyLen            = "len"
	KeyMinOnset       = "min-onset-search"
	KeyMaxOnset       = "max-onset-search"
	KeyARLag          = "ar-lag"
	KeyThr            = "thr"
	KeyThrHigh        = "thr-high"
	KeyLocalK         = "localk"
	KeyPassLow        = "passband-low"
	KeyPassHigh       = "passband-high"
	KeyDeconvPassLow  = "passband-deconvolve-low"
	KeyDeconvPassHigh = "passband-deconvolve-high"

	KeyInput       = "ts"
	KeyMask        = "temporal-mask"
	KeyOutputDir   = "output-dir"
	KeyName        = "name"
	KeyStandardize = "standardize"
	KeyWorkers     = "workers"
	KeyBlockWidth  = "block-width"
	KeyLogLevel    = "log-level"
	KeyLogDev      = "log-dev"
	KeyMetricsFile = "metrics-file"

	KeyDeconvMethod = "deconv-method"
	KeyMaxIter      = "max-iterations"
	KeyTolerance    = "tolerance"
	KeyIterNoise    = "iter-noise"
	KeySmoothSigma  = "post-smooth-sigma"

	KeySimulate  = "simulate"
	KeySimScans  = "sim-scans"
	KeySimVoxels = "sim-voxels"
	KeySimNoise  = "sim-noise"
	KeySimSeed   = "sim-seed"
)

// RunConfig holds everything outside the estimation parameters.
type RunConfig struct {
	Input       string `yaml:"ts,omitempty"`
	MaskFile    string `yaml:"temporal-mask,omitempty"`
	OutputDir   string `yaml:"output-dir"`
	Name        string `yaml:"name"`
	Standardize bool   `yaml:"standardize"`
	Workers     int    `yaml:"workers"`
	BlockWidth  int    `yaml:"block-width"`
	LogLevel    string `yaml:"log-level"`
	LogDev      bool   `yaml:"log-dev"`
	MetricsFile string `yaml:"metrics-file,omitempty"`

	DeconvMethod    string  `yaml:"deconv-method"`
	MaxIterations   int     `yaml:"max-iterations"`
	Tolerance       float64 `yaml:"tolerance"`
	IterNoise       bool    `yaml:"iter-noise"`
	PostSmoothSigma float64 `yaml:"post-smooth-sigma"`

	Simulate  bool    `yaml:"simulate"`
	SimScans  int     `yaml:"sim-scans"`
	SimVoxels int     `yaml:"sim-voxels"`
	SimNoise  float64 `yaml:"sim-noise"`
	SimSeed   uint32  `yaml:"sim-seed"`
}

// Config is the resolved configuration.
type Config struct {
	Params hrf.Params
	Run    RunConfig
}

func setDefaults(v *viper.Viper) {
	p := hrf.DefaultParams()
	w := conv.DefaultIterativeWienerOptions()

	v.SetDefault(KeyEstimation, string(p.Estimation))
	v.SetDefault(KeyTR, p.TR)
	v.SetDefault(KeyT, p.T)
	v.SetDefault(KeyT0, p.T0)
	v.SetDefault(KeyTDDD, p.TDDD)
	v.SetDefault(KeyVolterra, p.Volterra)
	v.SetDefault(KeyOrder, p.Order)
	v.SetDefault(KeyLen, p.Len)
	v.SetDefault(KeyMinOnset, p.MinOnsetSearch)
	v.SetDefault(KeyMaxOnset, p.MaxOnsetSearch)
	v.SetDefault(KeyARLag, p.ARLag)
	v.SetDefault(KeyThr, p.Threshold.Low)
	v.SetDefault(KeyThrHigh, math.Inf(1))
	v.SetDefault(KeyLocalK, 0)
	v.SetDefault(KeyPassLow, p.Passband.Low)
	v.SetDefault(KeyPassHigh, p.Passband.High)
	v.SetDefault(KeyDeconvPassLow, p.DeconvPassband.Low)
	v.SetDefault(KeyDeconvPassHigh, p.DeconvPassband.High)

	v.SetDefault(KeyOutputDir, ".")
	v.SetDefault(KeyName, "rshrf")
	v.SetDefault(KeyStandardize, true)
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyBlockWidth, ideal.DefaultBlockWidth)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogDev, false)

	v.SetDefault(KeyDeconvMethod, conv.DeconvIterativeWiener.String())
	v.SetDefault(KeyMaxIter, w.MaxIterations)
	v.SetDefault(KeyTolerance, w.Tolerance)
	v.SetDefault(KeyIterNoise, w.IterNoise)
	v.SetDefault(KeySmoothSigma, w.PostSmoothSigma)

	v.SetDefault(KeySimulate, false)
	v.SetDefault(KeySimScans, 300)
	v.SetDefault(KeySimVoxels, 16)
	v.SetDefault(KeySimNoise, 0.1)
	v.SetDefault(KeySimSeed, 1)
}

// Flags returns the command line flag set. Flag defaults mirror the
// resolved defaults so --help is accurate.
func Flags(name string) *flag.FlagSet {
	p := hrf.DefaultParams()
	w := conv.DefaultIterativeWienerOptions()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	fs.String(KeyConfig, "", "YAML configuration file")

	fs.String(KeyEstimation, string(p.Estimation), "HRF model: canon2dd, gamma, fourier, hanning, FIR, sFIR")
	fs.Float64(KeyTR, p.TR, "BOLD repetition time in seconds")
	fs.Int(KeyT, p.T, "microtime resolution (bins per scan)")
	fs.Int(KeyT0, p.T0, "microtime reference bin in [1, T]")
	fs.Int(KeyTDDD, p.TDDD, "canonical derivatives: 0 none, 1 temporal, 2 temporal and dispersion")
	fs.Int(KeyVolterra, p.Volterra, "2 adds second-order Volterra terms to the canonical basis")
	fs.Int(KeyOrder, p.Order, "gamma/Fourier basis order")
	fs.Float64(KeyLen, p.Len, "HRF length in seconds")
	fs.Float64(KeyMinOnset, p.MinOnsetSearch, "minimum onset lag in seconds")
	fs.Float64(KeyMaxOnset, p.MaxOnsetSearch, "maximum onset lag in seconds")
	fs.Int(KeyARLag, p.ARLag, "autoregressive order of the noise model")
	fs.Float64(KeyThr, p.Threshold.Low, "pseudo-event threshold in standard deviations")
	fs.Float64(KeyThrHigh, math.Inf(1), "upper event bound (FIR modes)")
	fs.Int(KeyLocalK, 0, "local-maximum half window; 0 derives it from TR")
	fs.Float64(KeyPassLow, p.Passband.Low, "estimation passband low edge in Hz")
	fs.Float64(KeyPassHigh, p.Passband.High, "estimation passband high edge in Hz")
	fs.Float64(KeyDeconvPassLow, p.DeconvPassband.Low, "deconvolution passband low edge in Hz")
	fs.Float64(KeyDeconvPassHigh, p.DeconvPassband.High, "deconvolution passband high edge in Hz")

	fs.String(KeyInput, "", "whitespace-delimited time series file (scans x voxels)")
	fs.String(KeyMask, "", "temporal mask file, one 0/1 value per scan")
	fs.String(KeyOutputDir, ".", "directory for the results bundle")
	fs.String(KeyName, "rshrf", "file name prefix of the results bundle")
	fs.Bool(KeyStandardize, true, "z-score every voxel before filtering")
	fs.Int(KeyWorkers, 0, "voxel workers; 0 uses every CPU")
	fs.Int(KeyBlockWidth, ideal.DefaultBlockWidth, "columns per band-pass block; 0 sizes from memory")
	fs.String(KeyLogLevel, "info", "log level: error, warn, info, debug, trace")
	fs.Bool(KeyLogDev, false, "human-readable console logs")
	fs.String(KeyMetricsFile, "", "write Prometheus metrics to this textfile")

	fs.String(KeyDeconvMethod, conv.DeconvIterativeWiener.String(), "deconvolution: wiener or regularized")
	fs.Int(KeyMaxIter, w.MaxIterations, "iterative Wiener iteration cap")
	fs.Float64(KeyTolerance, w.Tolerance, "iterative Wiener early-stop tolerance; negative disables")
	fs.Bool(KeyIterNoise, w.IterNoise, "re-estimate noise every Wiener iteration")
	fs.Float64(KeySmoothSigma, w.PostSmoothSigma, "Gaussian post-smoothing width in samples")

	fs.Bool(KeySimulate, false, "run on synthetic data instead of --ts")
	fs.Int(KeySimScans, 300, "synthetic scans")
	fs.Int(KeySimVoxels, 16, "synthetic voxels")
	fs.Float64(KeySimNoise, 0.1, "synthetic noise standard deviation")
	fs.Uint32(KeySimSeed, 1, "synthetic data seed")

	return fs
}

// Load resolves the configuration. fs may be nil, in which case only the
// environment, an RSHRF_CONFIG file and defaults apply.
func Load(fs *flag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		var bindErr error

		fs.VisitAll(func(f *flag.Flag) {
			if err := v.BindPFlag(f.Name, f); err != nil {
				bindErr = errors.Join(bindErr, err)
			}
		})

		if bindErr != nil {
			return nil, fmt.Errorf("config: binding flags: %w", bindErr)
		}
	}

	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	mode, err := hrf.ParseMode(v.GetString(KeyEstimation))
	if err != nil {
		return nil, err
	}

	p := hrf.Params{
		Estimation:     mode,
		TR:             v.GetFloat64(KeyTR),
		T:              v.GetInt(KeyT),
		T0:             v.GetInt(KeyT0),
		TDDD:           v.GetInt(KeyTDDD),
		Volterra:       v.GetInt(KeyVolterra),
		Order:          v.GetInt(KeyOrder),
		Len:            v.GetFloat64(KeyLen),
		MinOnsetSearch: v.GetFloat64(KeyMinOnset),
		MaxOnsetSearch: v.GetFloat64(KeyMaxOnset),
		ARLag:          v.GetInt(KeyARLag),
		Threshold:      events.Threshold{Low: v.GetFloat64(KeyThr), High: v.GetFloat64(KeyThrHigh)},
		LocalK:         v.GetInt(KeyLocalK),
		Passband:       ideal.Band{Low: v.GetFloat64(KeyPassLow), High: v.GetFloat64(KeyPassHigh)},
		DeconvPassband: ideal.Band{Low: v.GetFloat64(KeyDeconvPassLow), High: v.GetFloat64(KeyDeconvPassHigh)},
	}

	run := RunConfig{
		Input:           v.GetString(KeyInput),
		MaskFile:        v.GetString(KeyMask),
		OutputDir:       v.GetString(KeyOutputDir),
		Name:            v.GetString(KeyName),
		Standardize:     v.GetBool(KeyStandardize),
		Workers:         v.GetInt(KeyWorkers),
		BlockWidth:      v.GetInt(KeyBlockWidth),
		LogLevel:        v.GetString(KeyLogLevel),
		LogDev:          v.GetBool(KeyLogDev),
		MetricsFile:     v.GetString(KeyMetricsFile),
		DeconvMethod:    v.GetString(KeyDeconvMethod),
		MaxIterations:   v.GetInt(KeyMaxIter),
		Tolerance:       v.GetFloat64(KeyTolerance),
		IterNoise:       v.GetBool(KeyIterNoise),
		PostSmoothSigma: v.GetFloat64(KeySmoothSigma),
		Simulate:        v.GetBool(KeySimulate),
		SimScans:        v.GetInt(KeySimScans),
		SimVoxels:       v.GetInt(KeySimVoxels),
		SimNoise:        v.GetFloat64(KeySimNoise),
		SimSeed:         v.GetUint32(KeySimSeed),
	}

	return &Config{Params: p, Run: run}, nil
}

// Validate checks the estimation parameters and the run settings.
func (c *Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}

	r := c.Run

	if r.Input == "" && !r.Simulate {
		return ErrNoInput
	}

	if _, err := conv.ParseDeconvMethod(r.DeconvMethod); err != nil {
		return err
	}

	switch {
	case r.Workers < 0:
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, r.Workers)
	case r.BlockWidth < 0:
		return fmt.Errorf("%w: block width %d", ErrInvalidConfig, r.BlockWidth)
	case r.MaxIterations < 0:
		return fmt.Errorf("%w: max iterations %d", ErrInvalidConfig, r.MaxIterations)
	case r.Name == "":
		return fmt.Errorf("%w: empty output name", ErrInvalidConfig)
	case r.Simulate && (r.SimScans < 2 || r.SimVoxels < 1):
		return fmt.Errorf("%w: simulation %d scans x %d voxels", ErrInvalidConfig, r.SimScans, r.SimVoxels)
	}

	return nil
}

// PipelineOptions maps the run settings onto pipeline options. The logger
// and recorder are left for the caller.
func (c *Config) PipelineOptions() (pipeline.Options, error) {
	method, err := conv.ParseDeconvMethod(c.Run.DeconvMethod)
	if err != nil {
		return pipeline.Options{}, err
	}

	opts := pipeline.DefaultOptions()
	opts.Standardize = c.Run.Standardize
	opts.Workers = c.Run.Workers
	opts.BlockWidth = c.Run.BlockWidth

	opts.Deconv.Method = method
	opts.Deconv.Wiener.MaxIterations = c.Run.MaxIterations
	opts.Deconv.Wiener.Tolerance = c.Run.Tolerance
	opts.Deconv.Wiener.IterNoise = c.Run.IterNoise
	opts.Deconv.Wiener.PostSmoothSigma = c.Run.PostSmoothSigma

	return opts, nil
}

// File is the YAML layout read via --config and written by Dump.
type File struct {
	Estimation     string  `yaml:"estimation"`
	TR             float64 `yaml:"tr"`
	T              int     `yaml:"t"`
	T0             int     `yaml:"t0"`
	TDDD           int     `yaml:"tddd"`
	Volterra       int     `yaml:"volterra"`
	Order          int     `yaml:"order"`
	Len            float64 `yaml:"len"`
	MinOnsetSearch float64 `yaml:"min-onset-search"`
	MaxOnsetSearch float64 `yaml:"max-onset-search"`
	ARLag          int     `yaml:"ar-lag"`
	Thr            float64 `yaml:"thr"`
	ThrHigh        float64 `yaml:"thr-high"`
	LocalK         int     `yaml:"localk"`
	PassLow        float64 `yaml:"passband-low"`
	PassHigh       float64 `yaml:"passband-high"`
	DeconvPassLow  float64 `yaml:"passband-deconvolve-low"`
	DeconvPassHigh float64 `yaml:"passband-deconvolve-high"`

	RunConfig `yaml:",inline"`
}

// ToFile flattens c into the YAML layout.
func (c *Config) ToFile() File {
	p := c.Params

	return File{
		Estimation:     string(p.Estimation),
		TR:             p.TR,
		T:              p.T,
		T0:             p.T0,
		TDDD:           p.TDDD,
		Volterra:       p.Volterra,
		Order:          p.Order,
		Len:            p.Len,
		MinOnsetSearch: p.MinOnsetSearch,
		MaxOnsetSearch: p.MaxOnsetSearch,
		ARLag:          p.ARLag,
		Thr:            p.Threshold.Low,
		ThrHigh:        p.Threshold.High,
		LocalK:         p.LocalK,
		PassLow:        p.Passband.Low,
		PassHigh:       p.Passband.High,
		DeconvPassLow:  p.DeconvPassband.Low,
		DeconvPassHigh: p.DeconvPassband.High,
		RunConfig:      c.Run,
	}
}

// Dump writes c as YAML that Load accepts back through --config.
func Dump(w io.Writer, c *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(c.ToFile()); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return enc.Close()
}
