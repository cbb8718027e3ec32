// Package regress solves the linear models behind HRF fitting: plain
// least squares that tolerates rank-deficient designs, and
// Cochrane-Orcutt feasible GLS for regressions whose disturbances follow
// an AR(p) process, with an optional ridge prior on the coefficients.
//
// # Usage
//
//	beta, err := regress.Solve(x, y)
//
//	res, err := regress.SolveAR(x, y, regress.ARConfig{Lag: 1})
//	fmt.Println(res.Variance, res.Beta)
package regress
