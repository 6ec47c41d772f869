package measure

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundToNearest(t *testing.T) {
	tests := []struct {
		x, step, want float64
	}{
		{0.1, 0.3, 0},
		{0.2, 0.3, 0.3},
		{1.0, 0.3, 0.9},
		{17160, 0.3, 17160},
		// ties round away from zero
		{2.5, 1, 3},
		{-2.5, 1, -3},
		{0.25, 0.5, 0.5},
		{0.75, 0.5, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, RoundToNearest(tt.x, tt.step), 1e-9, "RoundToNearest(%v, %v)", tt.x, tt.step)
	}
}

func TestRoundToNearest_Idempotent(t *testing.T) {
	for x := -50.0; x < 250; x += 0.137 {
		once := RoundToNearest(x, DefaultResolutionCM)
		twice := RoundToNearest(once, DefaultResolutionCM)
		assert.Equal(t, once, twice, "x=%v", x)
	}
}

func TestConvertDistances(t *testing.T) {
	speed, err := SpeedOfSound(20)
	assert.NoError(t, err)

	filtered := []float64{0.001, 0.002, 0.003}
	got := ConvertDistances(filtered, speed, DefaultResolutionCM)
	assert.Len(t, got, len(filtered))
	for i, d := range got {
		want := math.Round(filtered[i]*speed/2/0.3) * 0.3
		assert.Equal(t, want, d)
		assert.InDelta(t, filtered[i]*speed/2, d, DefaultResolutionCM/2+1e-9)
	}
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 7.0, Median([]float64{7}))
	// even length picks the upper-middle element
	assert.Equal(t, 5.0, Median([]float64{1, 2, 3, 4, 5, 6, 7, 8}))
	assert.Equal(t, 5.0, Median([]float64{8, 7, 6, 5, 4, 3, 2, 1}))
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
}
