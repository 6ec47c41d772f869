package serialmux

import (
	"context"
	"log/slog"
	"strings"

	"github.com/banshee-data/snowdepth/internal/measure"
	"github.com/banshee-data/snowdepth/internal/monitoring"
)

// Ingester runs one batch of round-trip times through the pipeline.
type Ingester interface {
	Ingest(ctx context.Context, samples []float64) (*measure.Result, error)
}

// HandleLine parses one serial line and ingests it. Blank lines and lines
// starting with '#' are device chatter and are skipped without error.
func HandleLine(ctx context.Context, ing Ingester, line string) (*measure.Result, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}
	samples, err := measure.ParseLine(line)
	if err != nil {
		return nil, err
	}
	return ing.Ingest(ctx, samples)
}

// Consume subscribes to m and ingests every line until ctx is cancelled or
// the mux closes. Failed lines are logged and never stop the loop.
func Consume(ctx context.Context, m SerialMuxInterface, ing Ingester, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	id, lines := m.Subscribe()
	defer m.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			lineCtx := monitoring.WithIngestID(ctx, "serial-"+randomID())
			res, err := HandleLine(lineCtx, ing, line)
			switch {
			case err != nil:
				logger.WarnContext(lineCtx, "serial line rejected", "line", line, "err", err)
			case res != nil:
				monitoring.Logf("serial: %s", res.Measurement)
			}
		}
	}
}
