package stats

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CointResult is the outcome of an Engle-Granger two-step test.
type CointResult struct {
	Stat    float64
	PValue  float64
	Crit    [3]float64 // 1%, 5%, 10%
	UsedLag int
	NObs    int
}

// Tier classifies the statistic against the critical values.
type Tier int

const (
	TierNone Tier = iota
	Tier10
	Tier5
	Tier1
)

func (t Tier) String() string {
	switch t {
	case Tier1:
		return "1%"
	case Tier5:
		return "5%"
	case Tier10:
		return "10%"
	default:
		return "none"
	}
}

// Tier returns the strongest significance level the statistic clears.
func (r CointResult) Tier() Tier {
	switch {
	case r.Stat < r.Crit[0]:
		return Tier1
	case r.Stat < r.Crit[1]:
		return Tier5
	case r.Stat < r.Crit[2]:
		return Tier10
	default:
		return TierNone
	}
}

// Coint tests y and x for cointegration: regress y on a constant and x, then
// run an ADF test without deterministic terms on the residuals with the lag
// order chosen by AIC.
func Coint(y, x []float64) (CointResult, error) {
	if len(y) != len(x) {
		return CointResult{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(y), len(x))
	}
	n := len(y)
	if n < 10 {
		return CointResult{}, fmt.Errorf("%w: %d observations", ErrTooShort, n)
	}

	if floats.Min(x) == floats.Max(x) || floats.Min(y) == floats.Max(y) {
		return CointResult{}, fmt.Errorf("%w: constant series", ErrDegenerate)
	}

	X := mat.NewDense(n, 2, nil)
	for i := range x {
		X.Set(i, 0, 1)
		X.Set(i, 1, x[i])
	}
	fit, err := OLS(y, X)
	if err != nil {
		return CointResult{}, fmt.Errorf("cointegrating regression: %w", err)
	}

	adf, err := ADF(fit.Resid, MaxLag(n))
	if err != nil {
		return CointResult{}, fmt.Errorf("residual unit root: %w", err)
	}

	return CointResult{
		Stat:    adf.Stat,
		PValue:  EngleGrangerPValue(adf.Stat),
		Crit:    EngleGrangerCritical(n - 1),
		UsedLag: adf.UsedLag,
		NObs:    adf.NObs,
	}, nil
}
