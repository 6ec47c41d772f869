// Package pgstore persists measurements to PostgreSQL and reads the most
// recent outdoor temperature from the station's raw tag table.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/banshee-data/snowdepth/internal/measure"
	"github.com/banshee-data/snowdepth/internal/timeutil"
)

// ErrNoTemperature is returned when no reading for the tag falls inside the
// lookup window.
var ErrNoTemperature = errors.New("no temperature reading in window")

// Config holds the connection settings, normally populated from
// POSTGRES_* environment variables.
type Config struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	SSLMode  string
}

// DSN renders the connection string in URL form so that credentials with
// spaces or quotes survive unchanged.
func (c Config) DSN() string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	switch {
	case c.Host == "":
		return errors.New("postgres host is required")
	case c.User == "":
		return errors.New("postgres user is required")
	case c.Database == "":
		return errors.New("postgres database is required")
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("postgres port %d out of range", c.Port)
	}
	return nil
}

// SnowDepthRow maps onto the snowdepth table. RecordMeasurement stamps
// write_timestamp from the store's clock; gorm's autoCreateTime fills it when
// a row is created with a zero timestamp.
type SnowDepthRow struct {
	MeasurementID  int64     `gorm:"column:measurement_id;primaryKey;autoIncrement"`
	Distance       float64   `gorm:"column:distance;not null"`
	Confidence     float64   `gorm:"column:confidence;not null"`
	WriteTimestamp time.Time `gorm:"column:write_timestamp;autoCreateTime"`
}

func (SnowDepthRow) TableName() string { return "snowdepth" }

// RawRow maps onto the station's raw tag table.
type RawRow struct {
	Tagname   string    `gorm:"column:tagname;index:idx_raw_tag_time,priority:1"`
	Value     float64   `gorm:"column:value"`
	Timestamp time.Time `gorm:"column:timestamp;index:idx_raw_tag_time,priority:2"`
}

func (RawRow) TableName() string { return "raw" }

// Store implements measure.MeasurementStore and measure.TemperatureSource.
type Store struct {
	DB                *gorm.DB
	TemperatureTag    string
	TemperatureWindow time.Duration
	Clock             timeutil.Clock
}

// Open connects to PostgreSQL. When migrate is set the snowdepth and raw
// tables are created if missing.
func Open(cfg Config, migrate bool) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if migrate {
		if err := db.AutoMigrate(&SnowDepthRow{}, &RawRow{}); err != nil {
			return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
		}
	}
	return New(db), nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{
		DB:                db,
		TemperatureTag:    "ute_temp",
		TemperatureWindow: 2 * time.Hour,
		Clock:             timeutil.RealClock{},
	}
}

func (s *Store) RecordMeasurement(ctx context.Context, m measure.Measurement) error {
	row := &SnowDepthRow{
		Distance:       m.Distance,
		Confidence:     m.Confidence,
		WriteTimestamp: s.Clock.Now().UTC(),
	}
	if err := s.DB.WithContext(ctx).Select("Distance", "Confidence", "WriteTimestamp").Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}
	return nil
}

// RecentMeasurements returns up to limit rows, newest first.
func (s *Store) RecentMeasurements(ctx context.Context, limit int) ([]measure.StoredMeasurement, error) {
	var rows []SnowDepthRow
	err := s.DB.WithContext(ctx).
		Order("write_timestamp DESC, measurement_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	out := make([]measure.StoredMeasurement, 0, len(rows))
	for _, r := range rows {
		out = append(out, measure.StoredMeasurement{
			Measurement: measure.Measurement{Distance: r.Distance, Confidence: r.Confidence},
			RecordedAt:  r.WriteTimestamp,
		})
	}
	return out, nil
}

func (s *Store) LatestTemperature(ctx context.Context) (float64, error) {
	now := s.Clock.Now()
	var row RawRow
	err := s.DB.WithContext(ctx).
		Where("tagname = ? AND timestamp BETWEEN ? AND ?", s.TemperatureTag,
			timeutil.WindowStart(s.Clock, s.TemperatureWindow), now).
		Order("timestamp DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("tag %q: %w", s.TemperatureTag, ErrNoTemperature)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query temperature: %w", err)
	}
	return row.Value, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
