package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/banshee-data/snowdepth/internal/httputil"
	"github.com/banshee-data/snowdepth/internal/measure"
)

// DefaultHistoryLimit is used when ?limit is absent.
const DefaultHistoryLimit = 100

const maxHistoryLimit = 10000

// HistoryStore lists stored measurements, newest first.
type HistoryStore interface {
	RecentMeasurements(ctx context.Context, limit int) ([]measure.StoredMeasurement, error)
}

type historyRow struct {
	Distance   float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
	RecordedAt string  `json:"recorded_at"`
}

// HistoryHandler serves recent measurements as JSON. It is mounted on the
// admin debug mux, not the public one.
func HistoryHandler(store HistoryStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		limit := DefaultHistoryLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > maxHistoryLimit {
				httputil.WriteJSONError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxHistoryLimit))
				return
			}
			limit = n
		}

		rows, err := store.RecentMeasurements(r.Context(), limit)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]historyRow, 0, len(rows))
		for _, m := range rows {
			out = append(out, historyRow{
				Distance:   m.Distance,
				Confidence: m.Confidence,
				RecordedAt: m.RecordedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			})
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	})
}
