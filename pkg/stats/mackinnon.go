package stats

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// Response surface coefficients for the Engle-Granger test with a constant and
// two variables (one regressor). MacKinnon (1994) for p-values, MacKinnon (2010)
// for finite-sample critical values.
const (
	egTauMax  = 0.92
	egTauMin  = -18.86
	egTauStar = -2.62
)

var (
	egSmallP = [3]float64{2.92, 1.5012, 0.039796}
	egLargeP = [4]float64{2.1945, 0.64695, -0.29198, -0.042377}

	// rows: 1%, 5%, 10%; columns: τ∞, 1/T, 1/T², 1/T³
	egCritSurface = [3][4]float64{
		{-3.89644, -10.9519, -33.527, 0},
		{-3.33613, -6.1101, -6.823, 0},
		{-3.04445, -4.2412, -2.720, 0},
	}
)

// EngleGrangerPValue is the asymptotic p-value of an Engle-Granger τ statistic
// for two series with a constant in the cointegrating regression.
func EngleGrangerPValue(tau float64) float64 {
	if tau > egTauMax {
		return 1
	}
	if tau < egTauMin {
		return 0
	}
	var z float64
	if tau <= egTauStar {
		z = polyval(egSmallP[:], tau)
	} else {
		z = polyval(egLargeP[:], tau)
	}
	return distuv.UnitNormal.CDF(z)
}

// EngleGrangerCritical returns the 1%, 5% and 10% critical values for nobs observations.
func EngleGrangerCritical(nobs int) [3]float64 {
	inv := 1 / float64(nobs)
	var out [3]float64
	for i, c := range egCritSurface {
		out[i] = c[0] + c[1]*inv + c[2]*inv*inv + c[3]*inv*inv*inv
	}
	return out
}

// polyval evaluates c[0] + c[1]·x + c[2]·x² + ...
func polyval(c []float64, x float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		v = v*x + c[i]
	}
	return v
}
