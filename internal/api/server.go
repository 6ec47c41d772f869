package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/snowdepth/internal/httputil"
	"github.com/banshee-data/snowdepth/internal/measure"
	"github.com/banshee-data/snowdepth/internal/monitoring"
)

// MaxBodyBytes caps the ingestion payload. Ten numbers fit many times over.
const MaxBodyBytes = 64 << 10

// IngestIDHeader carries the id assigned to every accepted request.
const IngestIDHeader = "X-Ingest-Id"

// StoreWarning is appended to the measurement line when persistence failed.
const StoreWarning = "Warning: measurement not stored"

// Ingester runs a raw payload through the measurement pipeline.
type Ingester interface {
	IngestPayload(ctx context.Context, body []byte) (*measure.Result, error)
}

type Server struct {
	pipeline     Ingester
	logger       *slog.Logger
	legacyStatus bool
}

// NewServer returns a server for p. With legacyStatus set every rejection is
// answered with 500 and a store failure with 200, matching the behaviour
// deployed sensors were written against.
func NewServer(p Ingester, logger *slog.Logger, legacyStatus bool) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{pipeline: p, logger: logger, legacyStatus: legacyStatus}
}

// ServeMux exposes POST /data. Every other path or method is a 404.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.route)
	return mux
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/data" || r.Method != http.MethodPost {
		httputil.NotFound(w)
		return
	}
	s.handleData(w, r)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	w.Header().Set(IngestIDHeader, id)
	ctx := monitoring.WithIngestID(r.Context(), id)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		msg := "failed to read request body"
		if errors.As(err, &tooLarge) {
			msg = "request body too large"
		}
		s.logger.WarnContext(ctx, "rejected batch", "code", measure.CodeMalformedPayload, "err", err)
		s.reject(w, measure.CodeMalformedPayload, msg)
		return
	}

	res, err := s.pipeline.IngestPayload(ctx, body)
	if err != nil {
		s.reject(w, measure.CodeOf(err), err.Error())
		return
	}

	line := res.Measurement.String()
	if res.Stored() {
		httputil.WriteText(w, http.StatusOK, line)
		return
	}
	if s.legacyStatus {
		httputil.WriteText(w, http.StatusOK, line)
		return
	}
	httputil.WriteText(w, http.StatusBadGateway, line+"\n"+StoreWarning)
}

func (s *Server) reject(w http.ResponseWriter, code measure.Code, msg string) {
	status := http.StatusInternalServerError
	if !s.legacyStatus {
		status = StatusFor(code)
	}
	httputil.WriteText(w, status, msg)
}

// StatusFor maps a rejection code to its HTTP status.
func StatusFor(code measure.Code) int {
	switch code {
	case measure.CodeMalformedPayload, measure.CodeWrongSampleCount:
		return http.StatusBadRequest
	case measure.CodeOutOfRange:
		return http.StatusUnprocessableEntity
	case measure.CodeStoreFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logger.LogAttrs(r.Context(), levelForStatus(lrw.statusCode), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", lrw.statusCode),
			slog.Float64("duration_ms", float64(time.Since(start).Nanoseconds())/1e6),
			slog.String("ingest_id", lrw.Header().Get(IngestIDHeader)),
		)
	})
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
