// Package score ranks proportions (clicks per impression, engagements per
// view) so that small samples do not outrank large ones by luck.
package score

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultConfidence is the confidence level used for adjusted rates.
const DefaultConfidence = 0.95

// LowerBound returns the lower bound of the Wilson score interval for pos
// successes out of n trials at the given confidence. It is 0 when n is 0 or
// pos is not below n.
func LowerBound(pos, n, confidence float64) float64 {
	if n <= 0 || pos >= n {
		return 0
	}
	z := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	phat := pos / n
	z2 := z * z
	return (phat + z2/(2*n) - z*math.Sqrt((phat*(1-phat)+z2/(4*n))/n)) / (1 + z2/n)
}

// AdjustedPercent is LowerBound scaled to a percentage at DefaultConfidence.
func AdjustedPercent(pos, n float64) float64 {
	return LowerBound(pos, n, DefaultConfidence) * 100
}
