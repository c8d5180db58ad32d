// Newton solver that recentres a normal distribution so its truncated mean hits a target
// Used by the truncated builds of the normalized generators
package model

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	solverPatience      = 10
	solverResetPatience = 100
)

// SolveTruncated returns the centre avg of N(avg, sigma²) such that the mean of
// its samples clamped to [lower, upper] equals x.
//
// A nil lower bound means 0 and a nil upper bound means +Inf. When sigma is
// negligible x is returned unchanged; when a bound already lies on the far side
// of x the bound is returned.
func SolveTruncated(x, sigma float64, lower, upper *float64) float64 {
	if math.Abs(sigma) <= epsilon {
		return x
	}
	if lower != nil && *lower >= x*(1+epsilon) {
		return *lower
	}
	if lower == nil && x <= epsilon {
		return 0
	}
	if upper != nil && *upper*(1+epsilon) <= x {
		return *upper
	}

	lo := 0.0
	if lower != nil && *lower > 0 {
		lo = *lower
	}

	result := x
	lastDiff := math.MaxFloat64
	for remaining := solverPatience; remaining > 0; {
		fx := truncatedMean(result, sigma, lo, upper)
		diff := math.Abs(fx - x)
		if diff < lastDiff {
			lastDiff = diff
			remaining = solverResetPatience
		} else {
			remaining--
		}

		deriv := truncatedMeanDerivative(result, sigma, lo, upper)
		if deriv == 0 || math.IsNaN(deriv) || math.IsInf(deriv, 0) {
			break
		}
		next := result - (fx-x)/deriv
		if math.IsNaN(next) || math.IsInf(next, 0) {
			break
		}
		result = next
	}
	return result
}

const epsilon = 0x1p-52

// partialMean is the antiderivative of t·pdf(t) for N(avg, sigma²), shifted so
// that it is zero at t = avg.
func partialMean(avg, t, sigma float64) float64 {
	n := distuv.Normal{Mu: avg, Sigma: sigma}
	return avg*(n.CDF(t)-0.5) - sigma*sigma*n.Prob(t)
}

// partialMeanDerivative is d/d(avg) of partialMean.
func partialMeanDerivative(avg, t, sigma float64) float64 {
	n := distuv.Normal{Mu: avg, Sigma: sigma}
	return (n.CDF(t) - 0.5) - t*n.Prob(t)
}

// cdfDerivative is d/d(avg) of the normal CDF evaluated at t.
func cdfDerivative(t, avg, sigma float64) float64 {
	return -distuv.Normal{Mu: avg, Sigma: sigma}.Prob(t)
}

func truncatedMean(avg, sigma, lower float64, upper *float64) float64 {
	n := distuv.Normal{Mu: avg, Sigma: sigma}

	upperIntegral := avg * 0.5
	upperTail := 0.0
	if upper != nil {
		upperIntegral = partialMean(avg, *upper, sigma)
		upperTail = *upper * (1 - n.CDF(*upper))
	}

	lowerIntegral := partialMean(avg, lower, sigma)
	lowerTail := lower * n.CDF(lower)

	return upperIntegral - lowerIntegral + lowerTail + upperTail
}

func truncatedMeanDerivative(avg, sigma, lower float64, upper *float64) float64 {
	upperIntegral := 0.5
	upperTail := 0.0
	if upper != nil {
		upperIntegral = partialMeanDerivative(avg, *upper, sigma)
		upperTail = -*upper * cdfDerivative(*upper, avg, sigma)
	}

	lowerIntegral := partialMeanDerivative(avg, lower, sigma)
	lowerTail := lower * cdfDerivative(lower, avg, sigma)

	return upperIntegral - lowerIntegral + lowerTail + upperTail
}
