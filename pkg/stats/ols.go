// Package stats holds the numeric routines behind the cointegration screen:
// ordinary least squares, the augmented Dickey-Fuller regression and MacKinnon
// response-surface p-values.
package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrDegenerate marks inputs whose regression is singular or fits exactly.
	ErrDegenerate = errors.New("degenerate regression")
	// ErrTooShort marks series too short for the requested regression.
	ErrTooShort = errors.New("series too short")
	// ErrLengthMismatch marks paired series of different lengths.
	ErrLengthMismatch = errors.New("series length mismatch")
)

// OLSResult is the outcome of a least squares fit.
type OLSResult struct {
	Params  []float64
	StdErr  []float64
	TValues []float64
	Resid   []float64
	SSR     float64
	NObs    int
	LogLik  float64
	AIC     float64
}

// OLS fits y = X·β by least squares. X has one row per observation and must
// include an explicit constant column if an intercept is wanted.
func OLS(y []float64, X *mat.Dense) (OLSResult, error) {
	n, k := X.Dims()
	if n != len(y) {
		return OLSResult{}, fmt.Errorf("%w: %d rows vs %d observations", ErrLengthMismatch, n, len(y))
	}
	if n <= k {
		return OLSResult{}, fmt.Errorf("%w: %d observations for %d regressors", ErrTooShort, n, k)
	}

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return OLSResult{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}

	yv := mat.NewVecDense(n, y)
	var xty, beta, fitted, resid mat.VecDense
	xty.MulVec(X.T(), yv)
	beta.MulVec(&inv, &xty)
	fitted.MulVec(X, &beta)
	resid.SubVec(yv, &fitted)

	ssr := mat.Dot(&resid, &resid)
	if ssr <= 1e-20*mat.Dot(yv, yv) || math.IsNaN(ssr) {
		return OLSResult{}, fmt.Errorf("%w: zero residual variance", ErrDegenerate)
	}
	sigma2 := ssr / float64(n-k)

	res := OLSResult{
		Params:  make([]float64, k),
		StdErr:  make([]float64, k),
		TValues: make([]float64, k),
		Resid:   make([]float64, n),
		SSR:     ssr,
		NObs:    n,
	}
	for i := 0; i < k; i++ {
		res.Params[i] = beta.AtVec(i)
		v := sigma2 * inv.At(i, i)
		if v <= 0 || math.IsNaN(v) {
			return OLSResult{}, fmt.Errorf("%w: non-positive coefficient variance", ErrDegenerate)
		}
		res.StdErr[i] = math.Sqrt(v)
		res.TValues[i] = res.Params[i] / res.StdErr[i]
	}
	for i := 0; i < n; i++ {
		res.Resid[i] = resid.AtVec(i)
	}

	// Gaussian log-likelihood and AIC with k estimated parameters.
	nf := float64(n)
	res.LogLik = -nf / 2 * (math.Log(2*math.Pi) + math.Log(ssr/nf) + 1)
	res.AIC = -2*res.LogLik + 2*float64(k)
	return res, nil
}

// HedgeRatio regresses y on x with an intercept and returns the slope.
func HedgeRatio(y, x []float64) (float64, error) {
	if len(y) != len(x) {
		return 0, ErrLengthMismatch
	}
	if len(y) < 3 {
		return 0, ErrTooShort
	}
	if _, sx := stat.MeanStdDev(x, nil); sx == 0 || math.IsNaN(sx) {
		return 0, fmt.Errorf("%w: regressor has zero variance", ErrDegenerate)
	}
	_, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0, fmt.Errorf("%w: hedge ratio not finite", ErrDegenerate)
	}
	return beta, nil
}

// SpreadStats returns y − β·x together with its sample mean and standard deviation.
func SpreadStats(y, x []float64, beta float64) (spread []float64, mean, std float64) {
	spread = make([]float64, len(y))
	for i := range y {
		spread[i] = y[i] - beta*x[i]
	}
	mean, std = stat.MeanStdDev(spread, nil)
	return spread, mean, std
}
