package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/banshee-data/snowdepth/internal/pgstore"
)

// Backend names accepted by SNOWDEPTH_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Env is the deployment configuration read from the process environment.
type Env struct {
	Backend    string `env:"SNOWDEPTH_BACKEND" envDefault:"sqlite"`
	SQLitePath string `env:"SNOWDEPTH_SQLITE_PATH" envDefault:"snowdepth.db"`

	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASS"`
	PostgresHost     string `env:"POSTGRES_HOST"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresDB       string `env:"POSTGRES_DB"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	// PostgresMigrate creates the snowdepth and raw tables when missing.
	PostgresMigrate bool `env:"SNOWDEPTH_POSTGRES_MIGRATE"`

	TemperatureTag    string        `env:"SNOWDEPTH_TEMPERATURE_TAG" envDefault:"ute_temp"`
	TemperatureWindow time.Duration `env:"SNOWDEPTH_TEMPERATURE_WINDOW" envDefault:"2h"`

	OTelEndpoint string `env:"SNOWDEPTH_OTEL_ENDPOINT"`
	LogLevel     string `env:"SNOWDEPTH_LOG_LEVEL" envDefault:"info"`
}

// LoadEnv merges envFile into the process environment, without overriding
// variables that are already set, and parses the result. A missing envFile
// is not an error.
func LoadEnv(envFile string) (*Env, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg := &Env{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the backend selection and the settings it needs.
func (e *Env) Validate() error {
	switch e.Backend {
	case BackendSQLite:
		if e.SQLitePath == "" {
			return errors.New("SNOWDEPTH_SQLITE_PATH must not be empty")
		}
	case BackendPostgres:
		if err := e.Postgres().Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown SNOWDEPTH_BACKEND %q (want %s or %s)", e.Backend, BackendSQLite, BackendPostgres)
	}
	if e.TemperatureTag == "" {
		return errors.New("SNOWDEPTH_TEMPERATURE_TAG must not be empty")
	}
	if e.TemperatureWindow <= 0 {
		return fmt.Errorf("SNOWDEPTH_TEMPERATURE_WINDOW must be positive, got %s", e.TemperatureWindow)
	}
	return nil
}

// Postgres returns the connection settings for the postgres backend.
func (e *Env) Postgres() pgstore.Config {
	return pgstore.Config{
		User:     e.PostgresUser,
		Password: e.PostgresPassword,
		Host:     e.PostgresHost,
		Port:     e.PostgresPort,
		Database: e.PostgresDB,
		SSLMode:  e.PostgresSSLMode,
	}
}
