package serialmux

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/snowdepth/internal/measure"
	"github.com/banshee-data/snowdepth/internal/testutil"
)

func testPipeline(store measure.MeasurementStore) *measure.Pipeline {
	return measure.NewPipeline(testutil.FixedTemperature{Value: 0}, store, measure.DefaultTuning(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func csvLine(samples []float64) string {
	fields := make([]string, len(samples))
	for i, v := range samples {
		fields[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(fields, ",")
}

func TestHandleLine(t *testing.T) {
	batch := testutil.EchoBatch(t, 64.2, 0)

	tests := []struct {
		name     string
		line     string
		wantCode measure.Code
		wantNil  bool
		wantCM   float64
	}{
		{name: "csv", line: csvLine(batch), wantCM: 64.2},
		{name: "csv with spaces", line: " " + strings.ReplaceAll(csvLine(batch), ",", ", ") + "\r", wantCM: 64.2},
		{name: "json", line: string(testutil.BatchJSON(t, batch)), wantCM: 64.2},
		{name: "blank", line: "   ", wantNil: true},
		{name: "comment", line: "# sensor booted", wantNil: true},
		{name: "garbage", line: "hello,world", wantCode: measure.CodeMalformedPayload},
		{name: "short batch", line: "0.001,0.002", wantCode: measure.CodeWrongSampleCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMemoryStore()
			res, err := HandleLine(context.Background(), testPipeline(store), tt.line)
			switch {
			case tt.wantCode != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, measure.CodeOf(err))
				assert.Empty(t, store.Saved())
			case tt.wantNil:
				assert.NoError(t, err)
				assert.Nil(t, res)
			default:
				require.NoError(t, err)
				assert.InDelta(t, tt.wantCM, res.Measurement.Distance, 1e-9)
				assert.Len(t, store.Saved(), 1)
			}
		})
	}
}

func TestConsume(t *testing.T) {
	port := NewTestableSerialPort()
	m := NewSerialMux(port)
	store := testutil.NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumed := make(chan struct{})
	go func() {
		Consume(ctx, m, testPipeline(store), slog.New(slog.NewTextHandler(io.Discard, nil)))
		close(consumed)
	}()
	// Consume subscribes asynchronously; wait until it is registered.
	require.Eventually(t, func() bool {
		m.subscriberMu.Lock()
		defer m.subscriberMu.Unlock()
		return len(m.subscribers) == 1
	}, 2*time.Second, 5*time.Millisecond)

	go m.Monitor(ctx)

	good := csvLine(testutil.EchoBatch(t, 150, 0))
	port.AddReadData("not,a,batch\n" + good + "\n\n")

	require.Eventually(t, func() bool { return len(store.Saved()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.InDelta(t, 150.0, store.Saved()[0].Distance, 1e-9)

	require.NoError(t, m.Close())
	select {
	case <-consumed:
	case <-time.After(2 * time.Second):
		t.Fatal("Consume did not return after Close")
	}
}

func TestSyntheticBatch(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	line := SyntheticBatch(rng, 120, 0.5, -3)

	samples, err := measure.ParseLine(line)
	require.NoError(t, err)
	require.Len(t, samples, measure.SampleCount)

	res, err := testPipeline(testutil.NewMemoryStore()).Ingest(context.Background(), samples)
	require.NoError(t, err)
	// Pipeline runs at 0°C while the batch was made at -3°C, so allow a
	// little slack on top of the jitter.
	assert.InDelta(t, 120.0, res.Measurement.Distance, 2.0)
	assert.Greater(t, res.Measurement.Confidence, 95.0)
}

func TestNewMockSerialMux(t *testing.T) {
	m := NewMockSerialMux(10*time.Millisecond, func() string { return "0.001" })
	_, ch := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Monitor(ctx) }()

	assert.Equal(t, "0.001", recv(t, ch))
	assert.Equal(t, "0.001", recv(t, ch))

	require.NoError(t, m.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after Close")
	}
}
