package regress

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Errors returned by the solvers.
var (
	ErrEmptyDesign       = errors.New("regress: empty design matrix")
	ErrDimensionMismatch = errors.New("regress: design rows and response length differ")
	ErrInvalidARLag      = errors.New("regress: AR lag must be >= 0")
	ErrTooFewSamples     = errors.New("regress: too few samples for the AR lag")
	ErrRidgeShape        = errors.New("regress: ridge matrix must be square with one row per column of X")
)

// DefaultMaxIter bounds the Cochrane-Orcutt iterations.
const DefaultMaxIter = 20

// maxCond is the LU condition number above which Solve switches to the
// rank-revealing path.
const maxCond = 1e12

// Solve returns the least-squares solution of X·beta = y.
//
// Square, well-conditioned systems are solved by LU. Everything else goes
// through QR with column pivoting: columns whose pivot falls below
// max(m,n)·eps·|R00| are treated as dependent and get a zero coefficient,
// so rank-deficient designs still yield finite coefficients.
func Solve(x mat.Matrix, y []float64) ([]float64, error) {
	m, n := x.Dims()
	if m == 0 || n == 0 {
		return nil, ErrEmptyDesign
	}

	if len(y) != m {
		return nil, fmt.Errorf("%w: %d rows, %d values", ErrDimensionMismatch, m, len(y))
	}

	if m == n {
		if beta, ok := solveLU(x, y); ok {
			return beta, nil
		}
	}

	return solveQR(x, y), nil
}

func solveLU(x mat.Matrix, y []float64) ([]float64, bool) {
	var lu mat.LU
	lu.Factorize(x)

	if c := lu.Cond(); math.IsInf(c, 0) || math.IsNaN(c) || c > maxCond {
		return nil, false
	}

	var dst mat.VecDense
	if err := lu.SolveVecTo(&dst, false, mat.NewVecDense(len(y), append([]float64(nil), y...))); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, false
		}
	}

	beta := make([]float64, dst.Len())
	for i := range beta {
		beta[i] = dst.AtVec(i)
	}

	if !allFinite(beta) {
		return nil, false
	}

	return beta, true
}

func solveQR(x mat.Matrix, y []float64) []float64 {
	m, n := x.Dims()
	k := min(m, n)

	a := mat.DenseCopyOf(x).RawMatrix()

	jpvt := make([]int, n)
	for i := range jpvt {
		jpvt[i] = -1
	}

	tau := make([]float64, k)

	work := make([]float64, 1)
	lapack64.Geqp3(a, jpvt, tau, work, -1)
	work = make([]float64, max(int(work[0]), 3*n+1))
	lapack64.Geqp3(a, jpvt, tau, work, len(work))

	beta := make([]float64, n)

	r00 := math.Abs(a.Data[0])
	if r00 == 0 {
		return beta
	}

	tol := float64(max(m, n)) * eps * r00
	rank := 0

	for i := range k {
		if math.Abs(a.Data[i*a.Stride+i]) <= tol {
			break
		}

		rank++
	}

	c := blas64.General{Rows: m, Cols: 1, Stride: 1, Data: append([]float64(nil), y...)}
	q := blas64.General{Rows: m, Cols: k, Stride: a.Stride, Data: a.Data}

	work = make([]float64, 1)
	lapack64.Ormqr(blas.Left, blas.Trans, q, tau, c, work, -1)
	work = make([]float64, max(int(work[0]), 1))
	lapack64.Ormqr(blas.Left, blas.Trans, q, tau, c, work, len(work))

	z := c.Data[:rank]
	blas64.Trsv(blas.NoTrans, blas64.Triangular{
		Uplo:   blas.Upper,
		Diag:   blas.NonUnit,
		N:      rank,
		Stride: a.Stride,
		Data:   a.Data,
	}, blas64.Vector{N: rank, Inc: 1, Data: z})

	for i := range rank {
		beta[jpvt[i]] = z[i]
	}

	return beta
}

// ARResult is the outcome of [SolveAR].
type ARResult struct {
	// Variance is the sample variance (n-1) of the final residual.
	Variance float64
	// Beta holds one coefficient per design column.
	Beta []float64
	// AR holds the last fitted autoregressive coefficients.
	AR []float64
	// Iterations is the number of Cochrane-Orcutt refits performed.
	Iterations int
}

// ARConfig configures [SolveAR].
type ARConfig struct {
	// Lag is the AR order p; 0 returns the plain (or ridge) fit.
	Lag int
	// Ridge, when set, is added to XᵀX so beta solves (XᵀX + Ridge)·beta = Xᵀy.
	Ridge *mat.Dense
	// MaxIter bounds the refits; 0 means DefaultMaxIter.
	MaxIter int
}

// SolveAR fits y = X·beta + u where u follows an AR(p) process, using
// Cochrane-Orcutt iterated feasible GLS.
//
// Each iteration regresses the residual on its p lags, whitens X and y
// with the fitted coefficients, refits beta, and recomputes the residual
// over samples p..n-1. Iteration stops once no coefficient moves by more
// than min(1e-6, max|beta|/1000).
func SolveAR(x *mat.Dense, y []float64, cfg ARConfig) (ARResult, error) {
	nobs, nvar := x.Dims()
	if nobs == 0 || nvar == 0 {
		return ARResult{}, ErrEmptyDesign
	}

	if len(y) != nobs {
		return ARResult{}, fmt.Errorf("%w: %d rows, %d values", ErrDimensionMismatch, nobs, len(y))
	}

	p := cfg.Lag
	if p < 0 {
		return ARResult{}, ErrInvalidARLag
	}

	if cfg.Ridge != nil {
		if r, c := cfg.Ridge.Dims(); r != nvar || c != nvar {
			return ARResult{}, ErrRidgeShape
		}
	}

	maxIter := cfg.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}

	beta, err := fit(x, y, cfg.Ridge)
	if err != nil {
		return ARResult{}, err
	}

	resid := residual(x, y, beta)
	if p == 0 {
		return ARResult{Variance: stat.Variance(resid, nil), Beta: beta}, nil
	}

	rows := nobs - 2*p
	if rows < 1 {
		return ARResult{}, fmt.Errorf("%w: %d samples, lag %d", ErrTooFewSamples, nobs, p)
	}

	tol := math.Min(1e-6, floats.Norm(beta, math.Inf(1))/1000)

	var (
		ar    []float64
		iters int
	)

	tail := x.Slice(p, nobs, 0, nvar).(*mat.Dense)

	for iters < maxIter {
		iters++

		prev := beta

		lagged := mat.NewDense(rows, p, nil)
		for m := range p {
			for i := range rows {
				lagged.Set(i, m, resid[p-m-1+i])
			}
		}

		ar, err = Solve(lagged, resid[p:p+rows])
		if err != nil {
			return ARResult{}, err
		}

		xw := mat.DenseCopyOf(tail)
		yw := append([]float64(nil), y[p:]...)

		for m := range p {
			shifted := x.Slice(p-m-1, nobs-m-1, 0, nvar)

			var scaled mat.Dense
			scaled.Scale(ar[m], shifted)
			xw.Sub(xw, &scaled)

			floats.AddScaled(yw, -ar[m], y[p-m-1:nobs-m-1])
		}

		beta, err = fit(xw, yw, cfg.Ridge)
		if err != nil {
			return ARResult{}, err
		}

		resid = residual(tail, y[p:], beta)

		if maxAbsDiff(beta, prev) < tol {
			break
		}
	}

	return ARResult{
		Variance:   stat.Variance(resid, nil),
		Beta:       beta,
		AR:         ar,
		Iterations: iters,
	}, nil
}

// fit solves the plain or ridge-regularised normal problem.
func fit(x *mat.Dense, y []float64, ridge *mat.Dense) ([]float64, error) {
	if ridge == nil {
		return Solve(x, y)
	}

	var a mat.Dense
	a.Mul(x.T(), x)
	a.Add(&a, ridge)

	var b mat.VecDense
	b.MulVec(x.T(), mat.NewVecDense(len(y), append([]float64(nil), y...)))

	return Solve(&a, b.RawVector().Data)
}

func residual(x mat.Matrix, y, beta []float64) []float64 {
	var fitted mat.VecDense
	fitted.MulVec(x, mat.NewVecDense(len(beta), append([]float64(nil), beta...)))

	out := make([]float64, len(y))
	for i := range out {
		out[i] = y[i] - fitted.AtVec(i)
	}

	return out
}

func maxAbsDiff(a, b []float64) float64 {
	var d float64
	for i := range a {
		d = math.Max(d, math.Abs(a[i]-b[i]))
	}

	return d
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}

const eps = 0x1p-52
