// Package testutil provides shared fixtures for packages that drive the
// measurement pipeline from the outside: stores, temperature sources and
// request builders.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/snowdepth/internal/measure"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// MemoryStore is an in-memory measure.MeasurementStore.
type MemoryStore struct {
	mu    sync.Mutex
	saved []measure.StoredMeasurement
	// Err, when set, is returned by every RecordMeasurement call.
	Err error
	// Now stamps stored rows; time.Now when nil.
	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) RecordMeasurement(ctx context.Context, m measure.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	s.saved = append(s.saved, measure.StoredMeasurement{Measurement: m, RecordedAt: now()})
	return nil
}

// RecentMeasurements returns up to limit rows, newest first.
func (s *MemoryStore) RecentMeasurements(ctx context.Context, limit int) ([]measure.StoredMeasurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.saved)
	slices.Reverse(out)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Saved returns every stored measurement in insertion order.
func (s *MemoryStore) Saved() []measure.Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]measure.Measurement, 0, len(s.saved))
	for _, r := range s.saved {
		out = append(out, r.Measurement)
	}
	return out
}

// FixedTemperature is a measure.TemperatureSource returning Value, or Err
// when set.
type FixedTemperature struct {
	Value float64
	Err   error
}

func (f FixedTemperature) LatestTemperature(context.Context) (float64, error) {
	return f.Value, f.Err
}

// EchoBatch returns ten identical round-trip times that convert to
// distanceCM at tempC.
func EchoBatch(t testing.TB, distanceCM, tempC float64) []float64 {
	t.Helper()
	speed, err := measure.SpeedOfSound(tempC)
	if err != nil {
		t.Fatalf("speed of sound at %v°C: %v", tempC, err)
	}
	echo := 2 * distanceCM / speed
	batch := make([]float64, measure.SampleCount)
	for i := range batch {
		batch[i] = echo
	}
	return batch
}

// BatchJSON encodes samples as the ingestion payload {"data": [...]}.
func BatchJSON(t testing.TB, samples []float64) []byte {
	t.Helper()
	b, err := json.Marshal(measure.Batch{Data: samples})
	if err != nil {
		t.Fatalf("marshal batch: %v", err)
	}
	return b
}

// NewIngestRequest builds a POST /data request carrying body.
func NewIngestRequest(body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/data", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}
