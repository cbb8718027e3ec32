// Command hrfinfo prints the model dimensions each HRF estimation mode
// produces for a given acquisition: sampling step, basis size, regressor
// count and the onset lag grid searched per voxel.
//
// Usage:
//
//	hrfinfo [flags] [mode ...]
//
// Without arguments it prints every mode.
//
// Examples:
//
//	hrfinfo canon2dd
//	hrfinfo --tr 0.72 --t 5 gamma fourier
//	hrfinfo --len 32 sFIR
//	hrfinfo --list
package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/algo-hrf/measure/hrf"
	flag "github.com/spf13/pflag"
	"gonum.org/v1/gonum/mat"
)

var modes = []hrf.Mode{
	hrf.ModeCanonical,
	hrf.ModeGamma,
	hrf.ModeFourier,
	hrf.ModeHanning,
	hrf.ModeFIR,
	hrf.ModeSmoothFIR,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	d := hrf.DefaultParams()

	fs := flag.NewFlagSet("hrfinfo", flag.ContinueOnError)
	fs.SetOutput(stderr)

	tr := fs.Float64("tr", d.TR, "repetition time in seconds")
	t := fs.Int("t", d.T, "microtime resolution")
	length := fs.Float64("len", d.Len, "HRF length in seconds")
	order := fs.Int("order", d.Order, "gamma/Fourier order")
	tddd := fs.Int("tddd", d.TDDD, "canonical derivatives (0, 1, 2)")
	minOnset := fs.Float64("min-onset-search", d.MinOnsetSearch, "minimum onset lag in seconds")
	maxOnset := fs.Float64("max-onset-search", d.MaxOnsetSearch, "maximum onset lag in seconds")
	list := fs.Bool("list", false, "list mode names")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: hrfinfo [flags] [mode ...]\n\n")
		fmt.Fprintf(stderr, "Prints basis and lag-grid dimensions of HRF estimation modes.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}

		return 2
	}

	if *list {
		for _, m := range modes {
			fmt.Fprintln(stdout, m)
		}

		return 0
	}

	selected := modes
	if fs.NArg() > 0 {
		selected = nil

		for _, name := range fs.Args() {
			m, err := hrf.ParseMode(name)
			if err != nil {
				fmt.Fprintf(stderr, "warning: %v (use --list to see available)\n", err)
				continue
			}

			selected = append(selected, m)
		}
	}

	if len(selected) == 0 {
		fmt.Fprintf(stderr, "error: no matching modes\n")
		return 1
	}

	base := d
	base.TR = *tr
	base.T = *t
	base.Len = *length
	base.Order = *order
	base.TDDD = *tddd
	base.MinOnsetSearch = *minOnset
	base.MaxOnsetSearch = *maxOnset

	if err := printModes(stdout, base, selected); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	return 0
}

type modeInfo struct {
	mode       hrf.Mode
	dt         float64
	samples    int
	regressors int
	lags       []int
	peak       float64
	fwhm       float64
}

func describe(base hrf.Params, m hrf.Mode) (modeInfo, error) {
	p := base
	p.Estimation = m

	est, err := hrf.NewEstimator(p)
	if err != nil {
		return modeInfo{}, err
	}

	p = est.Params()
	info := modeInfo{mode: m, dt: p.Dt(), lags: est.Lags()}

	if bf := est.Basis(); bf != nil {
		rows, cols := bf.Dims()
		info.samples = rows
		info.regressors = cols + 1

		s := hrf.ShapeParameters(mat.Col(nil, 0, bf), info.dt)
		info.peak, info.fwhm = s.TimeToPeak, s.FWHM
	} else {
		info.samples = p.Taps()
		info.regressors = p.Taps() + 1
	}

	return info, nil
}

func printModes(w io.Writer, base hrf.Params, selected []hrf.Mode) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Mode\tDt [s]\tSamples\tRegressors\tLags\tLag range [s]\tPeak [s]\tFWHM [s]\n")
	fmt.Fprintf(tw, "----\t------\t-------\t----------\t----\t-------------\t--------\t--------\n")

	for _, m := range selected {
		info, err := describe(base, m)
		if err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}

		lo := float64(info.lags[0]) * info.dt
		hi := float64(info.lags[len(info.lags)-1]) * info.dt

		peak, fwhm := "-", "-"
		if !m.IsFIR() {
			peak = fmt.Sprintf("%.2f", info.peak)
			fwhm = fmt.Sprintf("%.2f", info.fwhm)
		}

		fmt.Fprintf(tw, "%s\t%.4f\t%d\t%d\t%d\t%.2f-%.2f\t%s\t%s\n",
			info.mode, info.dt, info.samples, info.regressors, len(info.lags), lo, hi, peak, fwhm)
	}

	return tw.Flush()
}
