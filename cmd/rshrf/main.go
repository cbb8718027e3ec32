// Command rshrf estimates voxel-wise haemodynamic response functions from
// resting-state BOLD time series and deconvolves every voxel with its own
// response.
//
// Usage:
//
//	rshrf [flags]
//
// Input is a whitespace-delimited text matrix with one row per scan and
// one column per voxel (--ts), or synthetic data (--simulate). Results are
// written to --output-dir as <name>_hrf.txt, <name>_hrf_microtime.txt,
// <name>_shape.txt, <name>_deconv.txt, <name>_events.txt,
// <name>_event_number.txt and <name>_summary.yaml.
//
// Every flag may also be set through a YAML file (--config) or an
// RSHRF_<FLAG> environment variable; flags win over the environment,
// which wins over the file.
//
// Examples:
//
//	rshrf --ts bold.txt --tr 2 --estimation canon2dd
//	rshrf --ts bold.txt --estimation sFIR --len 24 --output-dir out
//	rshrf --simulate --sim-voxels 64 --deconv-method regularized
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/cwbudde/algo-hrf/internal/config"
	"github.com/cwbudde/algo-hrf/internal/logging"
	"github.com/cwbudde/algo-hrf/internal/metrics"
	"github.com/cwbudde/algo-hrf/internal/store"
	"github.com/cwbudde/algo-hrf/internal/synth"
	"github.com/cwbudde/algo-hrf/internal/tsio"
	"github.com/cwbudde/algo-hrf/pipeline"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
	"gonum.org/v1/gonum/mat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stderr)

	stop()
	os.Exit(code)
}

// run returns the process exit code: 0 on success, 1 when the run fails,
// 2 on usage or configuration errors.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := config.Flags("rshrf")
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: rshrf [flags]\n\n")
		fmt.Fprintf(stderr, "Estimates voxel-wise HRFs from resting-state BOLD and deconvolves each voxel.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  rshrf --ts bold.txt --tr 2\n")
		fmt.Fprintf(stderr, "  rshrf --simulate --estimation sFIR\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}

		return 2
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	log, zl, err := logging.New(cfg.Run.LogLevel, cfg.Run.LogDev)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	defer func() { _ = zl.Sync() }()

	runID := uuid.New().String()
	log = log.WithValues("run", runID)

	if err := execute(ctx, cfg, runID, log); err != nil {
		log.Error(err, "run failed")
		return 1
	}

	return 0
}

func execute(ctx context.Context, cfg *config.Config, runID string, log logr.Logger) error {
	host := detectHost()
	log.V(1).Info("host", host.keysAndValues()...)

	bold, source, err := loadInput(cfg)
	if err != nil {
		return err
	}

	params := cfg.Params

	if cfg.Run.MaskFile != "" {
		params.TemporalMask, err = loadMask(cfg.Run.MaskFile)
		if err != nil {
			return err
		}
	}

	opts, err := cfg.PipelineOptions()
	if err != nil {
		return err
	}

	rec := metrics.NewRecorder()
	rec.SetRunInfo(runID, string(params.Estimation))

	opts.Logger = log
	opts.Recorder = rec

	subject := cfg.Run.Name
	st := store.New()

	boldKey, err := st.Put(subject, store.KindBOLD, bold, store.Key{}, map[string]string{"source": source})
	if err != nil {
		return err
	}

	started := time.Now()

	res, err := pipeline.Run(ctx, bold, params, opts)
	if err != nil {
		return err
	}

	elapsed := time.Since(started)

	preKey, err := st.Put(subject, store.KindPreprocessed, res.Preprocessed, boldKey, nil)
	if err != nil {
		return err
	}

	meta := map[string]string{"run": runID, "estimation": string(res.Params.Estimation)}

	if _, err := st.Put(subject, store.KindHRF, res.HRF, preKey, meta); err != nil {
		return err
	}

	if _, err := st.Put(subject, store.KindDeconvolved, res.Deconvolved, preKey, meta); err != nil {
		return err
	}

	rows, cols := bold.Dims()

	written, err := writeBundle(cfg.Run.OutputDir, subject, st, res, summary{
		RunID:   runID,
		Started: started.UTC(),
		Elapsed: elapsed.String(),
		Scans:   rows,
		Voxels:  cols,
		Failed:  res.Failed(),
		Host:    host,
		Config:  cfg.ToFile(),
	})
	if err != nil {
		return err
	}

	if cfg.Run.MetricsFile != "" {
		if err := rec.WriteTextfile(cfg.Run.MetricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	log.Info("results written", "dir", cfg.Run.OutputDir, "files", len(written),
		"voxels", cols, "failed", res.Failed(), "elapsed", elapsed)

	return nil
}

// loadInput reads the BOLD matrix or generates a synthetic one.
func loadInput(cfg *config.Config) (*mat.Dense, string, error) {
	if !cfg.Run.Simulate {
		m, err := tsio.ReadFile(cfg.Run.Input)
		if err != nil {
			return nil, "", fmt.Errorf("reading time series: %w", err)
		}

		return m, cfg.Run.Input, nil
	}

	sc := synth.DefaultConfig()
	sc.Scans = cfg.Run.SimScans
	sc.Voxels = cfg.Run.SimVoxels
	sc.Noise = cfg.Run.SimNoise
	sc.Seed = cfg.Run.SimSeed
	sc.TR = cfg.Params.TR

	ds, err := synth.Generate(sc)
	if err != nil {
		return nil, "", err
	}

	return ds.BOLD, "synthetic", nil
}

// loadMask reads a single row or column of 0/1 values.
func loadMask(path string) ([]bool, error) {
	m, err := tsio.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading temporal mask: %w", err)
	}

	r, c := m.Dims()
	if r != 1 && c != 1 {
		return nil, fmt.Errorf("temporal mask must be a single row or column, got %dx%d", r, c)
	}

	mask := make([]bool, r*c)
	for i := range mask {
		if r == 1 {
			mask[i] = m.At(0, i) != 0
		} else {
			mask[i] = m.At(i, 0) != 0
		}
	}

	return mask, nil
}
