package measure

import "math"

// AbsoluteZeroC is the offset used by the speed-of-sound model. Inputs below
// -AbsoluteZeroC have no real speed.
const AbsoluteZeroC = 273.16

// SpeedOfSound returns the speed of sound in air in cm/s for the given
// ambient temperature, using the ideal-gas approximation
// 20.05 * sqrt(T + 273.16) m/s.
func SpeedOfSound(tempC float64) (float64, error) {
	if math.IsNaN(tempC) || math.IsInf(tempC, 0) {
		return 0, newError(CodeInvalidTemperature, "temperature %v is not a finite number", tempC)
	}
	kelvin := AbsoluteZeroC + tempC
	if kelvin < 0 {
		return 0, newError(CodeInvalidTemperature, "temperature %.2f °C is below absolute zero", tempC)
	}
	return 20.05 * math.Sqrt(kelvin) * 100, nil
}
