package measure

import "slices"

const (
	// SampleCount is the number of time-of-flight readings the device sends
	// per batch.
	SampleCount = 10
	// FilteredCount is what remains after one minimum and one maximum are
	// dropped.
	FilteredCount = SampleCount - 2
)

// FilterSamples sorts a batch ascending and drops a single minimum and a
// single maximum reading. Duplicate extremes lose only one instance each.
// The input slice is left untouched.
func FilterSamples(raw []float64) ([]float64, error) {
	if len(raw) != SampleCount {
		return nil, newError(CodeWrongSampleCount, "%d samples received, expected %d", len(raw), SampleCount)
	}
	sorted := slices.Clone(raw)
	slices.Sort(sorted)
	return slices.Clip(sorted[1 : len(sorted)-1]), nil
}
