package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/snowdepth/internal/config"
	"github.com/banshee-data/snowdepth/internal/report"
)

type reportOptions struct {
	envFile string
	format  report.Format
	limit   int
	output  string
}

func parseReportFlags(args []string, stderr io.Writer) (*reportOptions, error) {
	opts := &reportOptions{}
	var format string
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.envFile, "env-file", ".env", "Environment file selecting the backend")
	fs.StringVar(&format, "format", "html", "Output format: png or html")
	fs.IntVar(&opts.limit, "limit", 500, "Number of most recent measurements to chart")
	fs.StringVar(&opts.output, "o", "", "Output file; defaults to snowdepth.<format>, - for stdout")
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	f, err := report.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	opts.format = f
	if opts.limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", opts.limit)
	}
	if opts.output == "" {
		opts.output = "snowdepth." + string(f)
	}
	return opts, nil
}

func runReport(ctx context.Context, opts *reportOptions, stdout io.Writer) error {
	env, err := config.LoadEnv(opts.envFile)
	if err != nil {
		return err
	}
	store, _, err := openBackend(env)
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.RecentMeasurements(ctx, opts.limit)
	if err != nil {
		return err
	}

	if opts.output == "-" {
		return report.Render(stdout, opts.format, rows)
	}
	f, err := os.Create(opts.output)
	if err != nil {
		return err
	}
	if err := report.Render(f, opts.format, rows); err != nil {
		f.Close()
		os.Remove(opts.output)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d measurements to %s\n", len(rows), opts.output)
	return nil
}
