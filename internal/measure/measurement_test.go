package measure

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMeasurement(t *testing.T) {
	bounds := Bounds{MinCM: DefaultMinDistanceCM, MaxCM: DefaultMaxDistanceCM}

	tests := []struct {
		name       string
		distance   float64
		confidence float64
		wantCode   Code
	}{
		{"valid", 100, 95, ""},
		{"lower bound inclusive", 2, 50, ""},
		{"upper bound inclusive", 200, 50, ""},
		{"too close", 1.8, 50, CodeOutOfRange},
		{"too far", 200.1, 50, CodeOutOfRange},
		{"NaN distance", math.NaN(), 50, CodeOutOfRange},
		{"negative confidence", 100, -0.1, CodeInvalidConfidence},
		{"confidence above 100", 100, 100.5, CodeInvalidConfidence},
		{"NaN confidence", 100, math.NaN(), CodeInvalidConfidence},
		{"confidence checked before distance", 500, 101, CodeInvalidConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMeasurement(tt.distance, tt.confidence, bounds)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, Measurement{Distance: tt.distance, Confidence: tt.confidence}, m)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, CodeOf(err))
			assert.Equal(t, Measurement{}, m)
		})
	}
}

func TestMeasurementString(t *testing.T) {
	tests := []struct {
		m    Measurement
		want string
	}{
		{Measurement{Distance: 123.30000000000001, Confidence: 97.64}, "Distance: 123.3 cm | Confidence: 97.6%"},
		{Measurement{Distance: 42, Confidence: 100}, "Distance: 42.0 cm | Confidence: 100.0%"},
		{Measurement{Distance: 2.1, Confidence: 99.99999999999999}, "Distance: 2.1 cm | Confidence: 100.0%"},
		{Measurement{Distance: 199.8, Confidence: 0}, "Distance: 199.8 cm | Confidence: 0.0%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.m.String())
	}
}

func TestErrorIsByCode(t *testing.T) {
	cause := errors.New("disk full")
	err := wrapError(CodeStoreFailure, "database insert failed", cause)

	assert.True(t, errors.Is(err, &Error{Code: CodeStoreFailure}))
	assert.False(t, errors.Is(err, &Error{Code: CodeOutOfRange}))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "database insert failed: disk full", err.Error())
	assert.Equal(t, Code(""), CodeOf(cause))
}
