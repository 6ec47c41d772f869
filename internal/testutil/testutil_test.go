package testutil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/snowdepth/internal/measure"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	s.Now = func() time.Time { n++; return base.Add(time.Duration(n) * time.Minute) }

	ctx := context.Background()
	require.NoError(t, s.RecordMeasurement(ctx, measure.Measurement{Distance: 1, Confidence: 90}))
	require.NoError(t, s.RecordMeasurement(ctx, measure.Measurement{Distance: 2, Confidence: 91}))
	require.NoError(t, s.RecordMeasurement(ctx, measure.Measurement{Distance: 3, Confidence: 92}))

	assert.Len(t, s.Saved(), 3)
	recent, err := s.RecentMeasurements(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 3.0, recent[0].Distance)
	assert.Equal(t, base.Add(3*time.Minute), recent[0].RecordedAt)

	s.Err = errors.New("disk full")
	assert.Error(t, s.RecordMeasurement(ctx, measure.Measurement{}))
	assert.Len(t, s.Saved(), 3)
}

func TestFixedTemperature(t *testing.T) {
	v, err := FixedTemperature{Value: -7}.LatestTemperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -7.0, v)

	_, err = FixedTemperature{Err: errors.New("offline")}.LatestTemperature(context.Background())
	assert.Error(t, err)
}

func TestEchoBatchRoundTrips(t *testing.T) {
	batch := EchoBatch(t, 120, 15)
	require.Len(t, batch, measure.SampleCount)

	speed, err := measure.SpeedOfSound(15)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, measure.ToDistance(batch[0], speed, measure.DefaultResolutionCM), 1e-9)
}

func TestNewIngestRequest(t *testing.T) {
	req := NewIngestRequest(BatchJSON(t, []float64{0.001}))
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/data", req.URL.Path)
	b, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[0.001]}`, string(b))
}

func TestAssertStatusCode(t *testing.T) {
	fakeT := &testing.T{}
	AssertStatusCode(fakeT, http.StatusOK, http.StatusOK)
	assert.False(t, fakeT.Failed())
}
