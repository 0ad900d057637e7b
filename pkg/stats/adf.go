package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ADFResult is the outcome of an augmented Dickey-Fuller regression without
// deterministic terms.
type ADFResult struct {
	Stat    float64 // t-value of the lagged level coefficient
	UsedLag int
	NObs    int
}

// MaxLag is the Schwert rule ceil(12·(n/100)^¼), capped at n/2−1.
func MaxLag(n int) int {
	lag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	if limit := n/2 - 1; lag > limit {
		lag = limit
	}
	return lag
}

// ADF runs the Dickey-Fuller regression Δe_t = γ·e_{t-1} + Σ φ_i·Δe_{t-i} on e,
// choosing the number of lagged differences in [0, maxLag] by minimum AIC over a
// common sample, then refitting the chosen lag on its full sample.
func ADF(e []float64, maxLag int) (ADFResult, error) {
	if maxLag < 0 {
		return ADFResult{}, fmt.Errorf("%w: %d observations", ErrTooShort, len(e))
	}
	if len(e)-1-maxLag < maxLag+2 {
		return ADFResult{}, fmt.Errorf("%w: %d observations for %d lags", ErrTooShort, len(e), maxLag)
	}

	diff := make([]float64, len(e)-1)
	for i := range diff {
		diff[i] = e[i+1] - e[i]
	}

	bestLag, bestAIC := -1, math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		res, err := adfRegression(e, diff, lag, maxLag)
		if err != nil {
			return ADFResult{}, err
		}
		if res.AIC < bestAIC {
			bestLag, bestAIC = lag, res.AIC
		}
	}

	res, err := adfRegression(e, diff, bestLag, bestLag)
	if err != nil {
		return ADFResult{}, err
	}
	return ADFResult{Stat: res.TValues[0], UsedLag: bestLag, NObs: res.NObs}, nil
}

// adfRegression fits Δe on the lagged level and lag lagged differences, using
// rows t = start..len(diff)-1 so different lag counts can share a sample.
func adfRegression(e, diff []float64, lag, start int) (OLSResult, error) {
	rows := len(diff) - start
	cols := lag + 1
	X := mat.NewDense(rows, cols, nil)
	y := make([]float64, rows)
	for r := 0; r < rows; r++ {
		t := start + r
		y[r] = diff[t]
		X.Set(r, 0, e[t])
		for j := 1; j <= lag; j++ {
			X.Set(r, j, diff[t-j])
		}
	}
	return OLS(y, X)
}
