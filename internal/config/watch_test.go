package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "tuning.json", `{"max_distance_cm": 200}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *TuningConfig, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *TuningConfig) { changes <- cfg })
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	// An invalid file is skipped.
	require.NoError(t, os.WriteFile(path, []byte(`{"resolution_cm": -1}`), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(`{"max_distance_cm": 150}`), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.GetMaxDistanceCM() == 150 {
				cancel()
				assert.NoError(t, <-done)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), "/nonexistent/dir/tuning.json", func(*TuningConfig) {})
	assert.Error(t, err)
}
