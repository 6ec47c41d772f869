// Command snowdepth runs the snow depth ingestion service and its helper
// commands.
//
//	snowdepth [serve] [flags]   run the HTTP (and optional serial) ingestion service
//	snowdepth send [flags] ...  post one batch of round-trip times to a server
//	snowdepth report [flags]    chart recent stored measurements
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/banshee-data/snowdepth/internal/httputil"
	"github.com/banshee-data/snowdepth/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		var opts *serveOptions
		opts, err = parseServeFlags(args, stderr)
		if err == nil && opts.showVersion {
			fmt.Fprintln(stdout, version.String())
			return 0
		}
		if err == nil {
			err = runServe(ctx, opts, stderr)
		}
	case "send":
		var opts *sendOptions
		opts, err = parseSendFlags(args, stderr)
		if err == nil {
			err = runSend(ctx, httputil.NewStandardClient(nil), opts, stdin, stdout)
		}
	case "report":
		var opts *reportOptions
		opts, err = parseReportFlags(args, stderr)
		if err == nil {
			err = runReport(ctx, opts, stdout)
		}
	case "version":
		fmt.Fprintln(stdout, version.String())
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q (want serve, send, report or version)\n", cmd)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		fmt.Fprintf(stderr, "snowdepth %s: %v\n", cmd, err)
		return 1
	}
}

// errUsage marks flag parsing failures; the flag package has already
// printed the details.
var errUsage = errors.New("usage")

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}
