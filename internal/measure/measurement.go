package measure

import (
	"fmt"
	"math"
	"time"
)

const (
	DefaultMinDistanceCM = 2.0
	DefaultMaxDistanceCM = 200.0

	// DefaultTemperatureC is the degraded-mode ambient temperature used when
	// no recent reading is available. 0 °C keeps the speed-of-sound error
	// within a few percent across a typical winter range, which is the
	// season the sensor is deployed for.
	DefaultTemperatureC = 0.0
)

// Measurement is a validated distance (cm) and confidence (0-100).
type Measurement struct {
	Distance   float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
}

// String is the reply sent to clients. Both values carry one decimal, which
// is exact for distances on the 0.3 cm step.
func (m Measurement) String() string {
	return fmt.Sprintf("Distance: %.1f cm | Confidence: %.1f%%", m.Distance, m.Confidence)
}

// StoredMeasurement is a Measurement read back from a store.
type StoredMeasurement struct {
	Measurement
	RecordedAt time.Time `json:"recorded_at"`
}

// Bounds is the plausible distance window of the installation.
type Bounds struct {
	MinCM float64
	MaxCM float64
}

// NewMeasurement validates a computed distance and confidence. Confidence is
// checked first: a score outside [0,100] means the scorer is broken, which
// matters more than an implausible distance.
func NewMeasurement(distance, confidence float64, bounds Bounds) (Measurement, error) {
	if math.IsNaN(confidence) || confidence < 0 || confidence > 100 {
		return Measurement{}, newError(CodeInvalidConfidence, "invalid confidence value %v", confidence)
	}
	if math.IsNaN(distance) || distance < bounds.MinCM || distance > bounds.MaxCM {
		return Measurement{}, newError(CodeOutOfRange, "invalid distance value %.1f cm, expected %.1f-%.1f cm", distance, bounds.MinCM, bounds.MaxCM)
	}
	return Measurement{Distance: distance, Confidence: confidence}, nil
}

func validateSamples(samples []float64) error {
	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return newError(CodeMalformedPayload, "sample %d is not a finite number", i)
		}
		if v < 0 {
			return newError(CodeMalformedPayload, "sample %d is negative (%v)", i, v)
		}
	}
	return nil
}
