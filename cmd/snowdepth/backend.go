package main

import (
	"context"
	"fmt"

	"github.com/banshee-data/snowdepth/internal/api"
	"github.com/banshee-data/snowdepth/internal/config"
	"github.com/banshee-data/snowdepth/internal/db"
	"github.com/banshee-data/snowdepth/internal/measure"
	"github.com/banshee-data/snowdepth/internal/pgstore"
)

// backend is what both storage implementations provide.
type backend interface {
	measure.TemperatureSource
	measure.MeasurementStore
	api.HistoryStore
	Close() error
}

// openBackend opens the store selected by env. The SQLite handle is also
// returned, nil for postgres, since only it carries admin routes.
func openBackend(env *config.Env) (backend, *db.DB, error) {
	switch env.Backend {
	case config.BackendPostgres:
		s, err := pgstore.Open(env.Postgres(), env.PostgresMigrate)
		if err != nil {
			return nil, nil, err
		}
		s.TemperatureTag = env.TemperatureTag
		s.TemperatureWindow = env.TemperatureWindow
		return s, nil, nil
	case config.BackendSQLite:
		d, err := db.NewDB(env.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		d.TemperatureTag = env.TemperatureTag
		d.TemperatureWindow = env.TemperatureWindow
		return d, d, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", env.Backend)
	}
}

// seedDevTemperature writes a current outdoor reading so dev runs exercise
// the temperature lookup rather than the fallback.
func seedDevTemperature(ctx context.Context, d *db.DB, tempC float64) error {
	return d.RecordTemperature(ctx, d.TemperatureTag, tempC, d.Clock.Now())
}
