package measure

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Confidence scores a set of converted distances from 0 to 100 as 100 minus
// the population coefficient of variation in percent.
//
// Fewer than two values, a non-positive mean or non-finite input score 0:
// there is no spread to measure in the first case and no legitimate surface
// at or behind the sensor in the others. The score is clamped to [0, 100].
func Confidence(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if !(mean > 0) || math.IsInf(mean, 0) {
		return 0
	}
	score := 100 - (std/mean)*100
	if math.IsNaN(score) {
		return 0
	}
	return min(100, max(0, score))
}
