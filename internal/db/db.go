package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/snowdepth/internal/measure"
	"github.com/banshee-data/snowdepth/internal/timeutil"
)

const (
	// DefaultTemperatureTag is the tagname of the outdoor temperature series
	// in the raw table.
	DefaultTemperatureTag = "ute_temp"
	// DefaultTemperatureWindow is how old a temperature reading may be and
	// still be used.
	DefaultTemperatureWindow = 2 * time.Hour
)

// ErrNoTemperature is returned when no reading exists inside the window.
var ErrNoTemperature = errors.New("no recent temperature reading")

// pragmas are applied to every pooled connection by the modernc driver.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(ON)",
}

const schema = `
	CREATE TABLE IF NOT EXISTS snowdepth (
		measurement_id    INTEGER PRIMARY KEY AUTOINCREMENT,
		distance          DOUBLE NOT NULL,
		confidence        DOUBLE NOT NULL,
		write_timestamp   DOUBLE NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snowdepth_write_timestamp ON snowdepth (write_timestamp);
	CREATE TABLE IF NOT EXISTS raw (
		tagname           TEXT NOT NULL,
		value             DOUBLE NOT NULL,
		timestamp         DOUBLE NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_raw_tagname_timestamp ON raw (tagname, timestamp);
`

// DB is the SQLite backend. It stores measurements and serves as the
// temperature source for the pipeline.
type DB struct {
	*sql.DB
	path string

	// TemperatureTag selects the raw series read by LatestTemperature.
	TemperatureTag string
	// TemperatureWindow bounds how old a reading may be.
	TemperatureWindow time.Duration
	// Clock supplies "now" for timestamps and the temperature window.
	Clock timeutil.Clock
}

// NewDB opens (creating if needed) the SQLite database at path and ensures
// the schema exists.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{
		DB:                db,
		path:              path,
		TemperatureTag:    DefaultTemperatureTag,
		TemperatureWindow: DefaultTemperatureWindow,
		Clock:             timeutil.RealClock{},
	}, nil
}

func dsn(path string) string {
	q := make([]string, len(pragmas))
	for i, p := range pragmas {
		q[i] = "_pragma=" + p
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(q, "&")
}

// RecordMeasurement inserts a validated measurement.
func (db *DB) RecordMeasurement(ctx context.Context, m measure.Measurement) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO snowdepth (distance, confidence, write_timestamp) VALUES (?, ?, ?)`,
		m.Distance, m.Confidence, unixSeconds(db.Clock.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}
	return nil
}

// RecentMeasurements returns up to limit stored measurements, newest first.
func (db *DB) RecentMeasurements(ctx context.Context, limit int) ([]measure.StoredMeasurement, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT distance, confidence, write_timestamp FROM snowdepth
		 ORDER BY write_timestamp DESC, measurement_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []measure.StoredMeasurement
	for rows.Next() {
		var (
			distance, confidence float64
			written              float64
		)
		if err := rows.Scan(&distance, &confidence, &written); err != nil {
			return nil, err
		}
		out = append(out, measure.StoredMeasurement{
			Measurement: measure.Measurement{Distance: distance, Confidence: confidence},
			RecordedAt:  fromUnixSeconds(written),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordTemperature stores a reading for tag taken at the given time.
func (db *DB) RecordTemperature(ctx context.Context, tag string, value float64, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO raw (tagname, value, timestamp) VALUES (?, ?, ?)`,
		tag, value, unixSeconds(at),
	)
	if err != nil {
		return fmt.Errorf("failed to insert temperature: %w", err)
	}
	return nil
}

// LatestTemperature returns the newest TemperatureTag reading taken within
// TemperatureWindow of now. ErrNoTemperature is returned when there is none.
func (db *DB) LatestTemperature(ctx context.Context) (float64, error) {
	now := db.Clock.Now()
	var value float64
	err := db.QueryRowContext(ctx,
		`SELECT value FROM raw
		 WHERE tagname = ? AND timestamp BETWEEN ? AND ?
		 ORDER BY timestamp DESC LIMIT 1`,
		db.TemperatureTag,
		unixSeconds(timeutil.WindowStart(db.Clock, db.TemperatureWindow)),
		unixSeconds(now),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w for %q in the last %s", ErrNoTemperature, db.TemperatureTag, db.TemperatureWindow)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read temperature: %w", err)
	}
	return value, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*1e9)).UTC()
}
