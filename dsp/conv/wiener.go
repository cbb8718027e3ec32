package conv

import (
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-hrf/dsp/wavelet"
	"github.com/cwbudde/algo-hrf/dsp/window"
	"github.com/cwbudde/algo-hrf/internal/fftplan"
	"github.com/cwbudde/algo-hrf/stats/knee"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// IterativeWienerOptions configures [IterativeWiener].
type IterativeWienerOptions struct {
	// MaxIterations bounds the spectrum refinement; 0 means 1000.
	MaxIterations int
	// Tolerance stops early once the relative change of the cropped
	// estimate falls below it. Negative disables early stopping.
	Tolerance float64
	// PadFactor sets the reflect padding to max(len(h), PadFactor·len(y)).
	PadFactor float64
	// TukeyAlpha tapers the output edges; 0 disables the taper.
	TukeyAlpha float64
	// IterNoise re-estimates the noise level from the residual after every
	// iteration.
	IterNoise bool
	// PostSmoothSigma applies a Gaussian smoother of that width in
	// samples; 0 disables it.
	PostSmoothSigma float64
}

// DefaultIterativeWienerOptions returns the standard settings.
func DefaultIterativeWienerOptions() IterativeWienerOptions {
	return IterativeWienerOptions{
		MaxIterations: 1000,
		Tolerance:     1e-6,
		PadFactor:     2,
		TukeyAlpha:    0.15,
	}
}

// minSigma floors the noise estimate.
const minSigma = 1e-8

// IterativeWiener estimates x from y = x * h with a Wiener filter whose
// signal power spectrum is refined iteratively.
//
// y is mean-centred and reflect-padded, h is L1-normalised and zero-padded
// to the padded length. The noise level comes from a wavelet MAD estimate.
// Each iteration updates the signal spectrum from the current Wiener
// estimate; the spectrum used for the final filter is picked at the knee of
// the mean-squared spectral change, falling back to the step with the
// smallest change when the knee disagrees with it by more than half the
// score range. The result has len(y) samples.
func IterativeWiener(y, h []float64, opts IterativeWienerOptions) ([]float64, error) {
	if len(y) == 0 {
		return nil, ErrEmptyInput
	}

	if len(h) == 0 {
		return nil, ErrEmptyKernel
	}

	if floats.Norm(h, math.Inf(1)) <= 1e-8 {
		return nil, ErrDegenerateKernel
	}

	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 1000
	}

	if opts.PadFactor < 0 {
		opts.PadFactor = 0
	}

	n := len(y)
	k := len(h)

	yc := make([]float64, n)
	copy(yc, y)
	floats.AddConst(-stat.Mean(yc, nil), yc)

	hn := make([]float64, k)
	copy(hn, h)
	floats.Scale(1/(floats.Norm(hn, 1)+1e-12), hn)

	pad := int(math.Max(float64(k), opts.PadFactor*float64(n)))
	total := n + 2*pad

	hp := make([]float64, total)
	copy(hp, hn)

	yf, err := fftplan.ForwardReal(reflectPad(yc, pad))
	if err != nil {
		return nil, err
	}

	hf, err := fftplan.ForwardReal(hp)
	if err != nil {
		return nil, err
	}

	phh := power(hf)

	sigma, err := noiseSigma(yc)
	if err != nil {
		return nil, err
	}

	nf := sigma * sigma * float64(total)

	pxx := initialSpectrum(yf, hf, phh, yc, hn, sigma, nf)
	start := append([]float64(nil), pxx...)

	// Noise level in force at each step, replayed when the chosen spectrum
	// is rebuilt.
	noise := make([]float64, 0, opts.MaxIterations)
	scores := make([]float64, 0, opts.MaxIterations)

	est := make([]complex128, total)
	next := make([]float64, total)

	var prevMid []float64

	for range opts.MaxIterations {
		noise = append(noise, nf)
		wienerStep(next, est, pxx, phh, hf, yf, nf)

		var mse float64
		for i := range next {
			d := next[i] - pxx[i]
			mse += d * d
		}

		scores = append(scores, mse/float64(total))
		pxx, next = next, pxx

		full, err := fftplan.InverseReal(est)
		if err != nil {
			return nil, err
		}

		mid := full[pad : pad+n]

		if prevMid != nil {
			rel := floats.Distance(mid, prevMid, 2) / (floats.Norm(prevMid, 2) + 1e-12)
			if rel < opts.Tolerance {
				break
			}
		}

		prevMid = mid

		if opts.IterNoise {
			sigma, err = residualSigma(yc, mid, hn)
			if err != nil {
				return nil, err
			}

			nf = sigma * sigma * float64(total)
		}
	}

	sel, err := knee.Select(scores,
		knee.WithGlobalMinGuard(0.5),
		knee.WithOffset(1),
		knee.WithCandidates(len(scores)+1),
	)
	if err != nil {
		return nil, err
	}

	chosen := start
	for step := range sel.Index {
		wienerStep(next, est, chosen, phh, hf, yf, noise[step])
		chosen, next = next, chosen
	}

	for i := range est {
		est[i] = cmplx.Conj(hf[i]) * complex(chosen[i], 0) * yf[i] /
			complex(math.Max(phh[i]*chosen[i]+nf, tiny), 0)
	}

	full, err := fftplan.InverseReal(est)
	if err != nil {
		return nil, err
	}

	x := append([]float64(nil), full[pad:pad+n]...)

	if opts.TukeyAlpha > 0 && n > 1 {
		taper, err := window.Tukey(n, math.Min(opts.TukeyAlpha, 1))
		if err != nil {
			return nil, err
		}

		if err := window.ApplyCoefficientsInPlace(x, taper); err != nil {
			return nil, err
		}
	}

	if opts.PostSmoothSigma > 0 {
		x = gaussianSmooth(x, opts.PostSmoothSigma)
	}

	return x, nil
}

// wienerStep writes the Wiener estimate X = W·Y into est and the updated
// signal spectrum into dst.
func wienerStep(dst []float64, est []complex128, pxx, phh []float64, hf, yf []complex128, nf float64) {
	for i := range dst {
		denom := math.Max(phh[i]*pxx[i]+nf, tiny)
		w := cmplx.Conj(hf[i]) * complex(pxx[i]/denom, 0)
		est[i] = w * yf[i]

		a := cmplx.Abs(est[i])
		dst[i] = math.Max(pxx[i]*nf/denom+a*a, tiny)
	}
}

// initialSpectrum blends |Y|² with a regularised inverse-filter estimate.
func initialSpectrum(yf, hf []complex128, phh, yc, hn []float64, sigma, nf float64) []float64 {
	total := float64(len(yf))

	energy := floats.Dot(yc, yc) - math.Max(float64(len(yc)-1), 1)*sigma*sigma
	l1 := floats.Norm(hn, 1)
	norm := energy / (l1*l1 + tiny)
	reg := nf / (norm + tiny)

	out := make([]float64, len(yf))
	for i := range out {
		inv := yf[i] * cmplx.Conj(hf[i]) / complex(phh[i]+total*reg, 0)
		a := cmplx.Abs(inv)
		y := cmplx.Abs(yf[i])

		out[i] = 0.5*math.Max(y*y, tiny) + 0.5*math.Max(a*a, tiny)
	}

	return out
}

// noiseSigma is the larger of the wavelet-detail MAD and the MAD of the
// first difference, floored at minSigma.
func noiseSigma(x []float64) (float64, error) {
	sw, err := wavelet.NoiseSigma(x, wavelet.DB2)
	if err != nil {
		return 0, err
	}

	var sd float64
	if len(x) > 1 {
		diff := make([]float64, len(x)-1)
		for i := range diff {
			diff[i] = x[i+1] - x[i]
		}

		med := wavelet.Median(diff)
		floats.AddConst(-med, diff)
		sd = 1.4826 * wavelet.MAD(diff) / 0.6745
	}

	return math.Max(math.Max(sw, sd), minSigma), nil
}

func residualSigma(y, x, h []float64) (float64, error) {
	pred, err := Direct(x, h)
	if err != nil {
		return 0, err
	}

	resid := make([]float64, len(y))
	floats.SubTo(resid, y, pred[:len(y)])

	return noiseSigma(resid)
}

// reflectPad extends x by pad samples on both sides, mirroring about the
// edge samples without repeating them.
func reflectPad(x []float64, pad int) []float64 {
	n := len(x)
	out := make([]float64, n+2*pad)

	for i := range out {
		out[i] = x[reflect(i-pad, n)]
	}

	return out
}

func reflect(i, n int) int {
	if n == 1 {
		return 0
	}

	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}

	if i >= n {
		i = period - i
	}

	return i
}

// gaussianSmooth filters x with a normalised Gaussian truncated at four
// standard deviations, holding the edge samples constant beyond the ends.
func gaussianSmooth(x []float64, sigma float64) []float64 {
	radius := int(4*sigma + 0.5)

	kernel, err := window.Gaussian(2*radius+1, sigma)
	if err != nil {
		return x
	}

	floats.Scale(1/floats.Sum(kernel), kernel)

	n := len(x)
	out := make([]float64, n)

	for i := range out {
		var acc float64
		for j, w := range kernel {
			idx := min(max(i+j-radius, 0), n-1)
			acc += w * x[idx]
		}

		out[i] = acc
	}

	return out
}
