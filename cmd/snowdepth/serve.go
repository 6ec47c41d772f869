package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/snowdepth/internal/api"
	"github.com/banshee-data/snowdepth/internal/config"
	"github.com/banshee-data/snowdepth/internal/db"
	"github.com/banshee-data/snowdepth/internal/measure"
	"github.com/banshee-data/snowdepth/internal/monitoring"
	"github.com/banshee-data/snowdepth/internal/serialmux"
)

const (
	devDistanceCM    = 120.0
	devJitterCM      = 0.6
	devTemperatureC  = -4.0
	shutdownDeadline = 5 * time.Second
)

type serveOptions struct {
	listen       string
	configPath   string
	envFile      string
	devMode      bool
	admin        bool
	serialPath   string
	serialBaud   int
	legacyStatus bool
	showVersion  bool
}

func parseServeFlags(args []string, stderr io.Writer) (*serveOptions, error) {
	opts := &serveOptions{}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.listen, "listen", ":4321", "Listen address")
	fs.StringVar(&opts.configPath, "config", "", "Tuning file (.json, .yaml or .yml), reloaded on change")
	fs.StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before reading settings (ignored if missing)")
	fs.BoolVar(&opts.devMode, "dev", false, "Run in dev mode: synthetic serial sensor and a seeded temperature")
	fs.BoolVar(&opts.admin, "admin", false, "Mount /debug/ admin routes (loopback and tailnet only)")
	fs.StringVar(&opts.serialPath, "serial", "", "Serial port of a directly attached sensor; empty disables")
	fs.IntVar(&opts.serialBaud, "serial-baud", serialmux.DefaultBaudRate, "Serial baud rate")
	fs.BoolVar(&opts.legacyStatus, "legacy-status", false, "Answer every rejection with 500 and store failures with 200")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return nil, errUsage
	}
	if opts.listen == "" {
		return nil, errors.New("listen address is required")
	}
	return opts, nil
}

func runServe(ctx context.Context, opts *serveOptions, stderr io.Writer) error {
	env, err := config.LoadEnv(opts.envFile)
	if err != nil {
		return err
	}
	level, err := monitoring.ParseLevel(env.LogLevel)
	if err != nil {
		return err
	}
	logger := monitoring.NewLogger(stderr, level)
	slog.SetDefault(logger)

	shutdownTracing, err := monitoring.SetupTracing(ctx, monitoring.LoggerName, env.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error("tracing shutdown", "err", err)
		}
	}()

	tuning := measure.DefaultTuning()
	if opts.configPath != "" {
		cfg, err := config.LoadTuningConfig(opts.configPath)
		if err != nil {
			return err
		}
		tuning = cfg.ToTuning()
	}

	store, sqliteDB, err := openBackend(env)
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.devMode && sqliteDB != nil {
		if err := seedDevTemperature(ctx, sqliteDB, devTemperatureC); err != nil {
			logger.Warn("failed to seed dev temperature", "err", err)
		}
	}

	pipeline := measure.NewPipeline(store, store, tuning, logger)

	m, err := openSerial(opts)
	if err != nil {
		return err
	}
	defer m.Close()

	var wg sync.WaitGroup

	if opts.configPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := config.Watch(ctx, opts.configPath, func(cfg *config.TuningConfig) {
				pipeline.SetTuning(cfg.ToTuning())
			})
			if err != nil {
				logger.Error("config watch stopped", "path", opts.configPath, "err", err)
			}
		}()
	}

	if _, disabled := m.(*serialmux.DisabledSerialMux); !disabled {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := m.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("failed to monitor serial port", "err", err)
			}
			monitoring.Logf("monitor routine terminated")
		}()
		go func() {
			defer wg.Done()
			serialmux.Consume(ctx, m, pipeline, logger)
		}()
	}

	handler, err := newHandler(opts, logger, pipeline, store, sqliteDB, m)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              opts.listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", opts.listen, "backend", env.Backend, "legacy_status", opts.legacyStatus)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("failed to start server: %w", err)
		}
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}

	// Closing the mux unblocks Consume when serve stopped on its own.
	m.Close()
	wg.Wait()
	logger.Info("graceful shutdown complete")
	return runErr
}

func openSerial(opts *serveOptions) (serialmux.SerialMuxInterface, error) {
	switch {
	case opts.serialPath != "":
		m, err := serialmux.NewRealSerialMux(opts.serialPath, serialmux.PortOptions{BaudRate: opts.serialBaud})
		if err != nil {
			return nil, err
		}
		return m, nil
	case opts.devMode:
		rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
		return serialmux.NewMockSerialMux(serialmux.DevInterval, func() string {
			return serialmux.SyntheticBatch(rng, devDistanceCM, devJitterCM, devTemperatureC)
		}), nil
	default:
		return serialmux.NewDisabledSerialMux(), nil
	}
}

// newHandler assembles the public ingestion routes and, when enabled, the
// admin routes under /debug/.
func newHandler(opts *serveOptions, logger *slog.Logger, pipeline api.Ingester, history api.HistoryStore, sqliteDB *db.DB, m serialmux.SerialMuxInterface) (http.Handler, error) {
	mux := http.NewServeMux()
	if opts.admin {
		if sqliteDB != nil {
			if err := sqliteDB.AttachAdminRoutes(mux); err != nil {
				return nil, err
			}
		}
		m.AttachAdminRoutes(mux)
		tsweb.Debugger(mux).Handle("recent", "Recent measurements (JSON, ?limit=N)", api.HistoryHandler(history))
	}
	mux.Handle("/", api.NewServer(pipeline, logger, opts.legacyStatus).ServeMux())
	return api.LoggingMiddleware(logger, mux), nil
}
