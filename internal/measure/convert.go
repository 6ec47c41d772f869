package measure

import (
	"math"
	"slices"
)

// DefaultResolutionCM is the physical resolution of the ultrasonic sensor.
const DefaultResolutionCM = 0.3

// RoundToNearest snaps x to the nearest multiple of step. Ties round away
// from zero (math.Round semantics).
func RoundToNearest(x, step float64) float64 {
	return math.Round(x/step) * step
}

// ToDistance converts one round-trip time in seconds into a one-way distance
// in centimetres at the given speed of sound (cm/s), snapped to resolution.
func ToDistance(roundTrip, speed, resolution float64) float64 {
	return RoundToNearest(roundTrip*speed/2, resolution)
}

// ConvertDistances applies ToDistance to every filtered sample with a single
// shared speed of sound.
func ConvertDistances(filtered []float64, speed, resolution float64) []float64 {
	out := make([]float64, len(filtered))
	for i, t := range filtered {
		out[i] = ToDistance(t, speed, resolution)
	}
	return out
}

// Median returns the element at index len/2 of the ascending-sorted values.
// For even lengths that is the upper of the two middle elements; no
// averaging takes place. Empty input yields 0.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return sorted[len(sorted)/2]
}
