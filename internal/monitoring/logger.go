// Package monitoring sets up the service's structured logger and tracing.
package monitoring

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LoggerName is attached to every record so the service's lines can be
// picked out of a shared log stream.
const LoggerName = "snowdepth"

// Logf is the package-level printf-style logger used by code that predates
// structured logging (serial port handling, admin helpers). It writes INFO
// records through the default slog logger and may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = func(format string, v ...interface{}) {
	slog.Default().Info(fmt.Sprintf(format, v...))
}

// SetLogger replaces Logf. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// ParseLevel maps debug|info|warn|error to a slog level. Anything else is
// an error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger returns a JSON logger writing to w at the given level. Records
// logged with a context carrying an ingestion id (see WithIngestID) are
// tagged with it.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(contextHandler{h}).With("logger", LoggerName)
}

type ingestIDKey struct{}

// WithIngestID returns a context tagged with the id of the batch being
// processed.
func WithIngestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ingestIDKey{}, id)
}

// IngestID returns the id stored by WithIngestID, or "".
func IngestID(ctx context.Context) string {
	id, _ := ctx.Value(ingestIDKey{}).(string)
	return id
}

type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := IngestID(ctx); id != "" {
		r.AddAttrs(slog.String("ingest_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
