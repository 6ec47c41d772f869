package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/banshee-data/snowdepth/internal/httputil"
	"github.com/banshee-data/snowdepth/internal/measure"
)

type sendOptions struct {
	url     string
	timeout time.Duration
	args    []string
}

func parseSendFlags(args []string, stderr io.Writer) (*sendOptions, error) {
	opts := &sendOptions{}
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.url, "url", "http://localhost:4321", "Base URL of the snowdepth server")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: snowdepth send [flags] [t1 t2 ... t10 | \"t1,...,t10\" | '{\"data\":[...]}']")
		fmt.Fprintln(stderr, "With no arguments one batch line is read from stdin.")
		fs.PrintDefaults()
	}
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	opts.args = fs.Args()
	return opts, nil
}

// runSend posts one batch to <url>/data and prints the server's reply.
// Sample count is left for the server to judge.
func runSend(ctx context.Context, client httputil.HTTPClient, opts *sendOptions, stdin io.Reader, stdout io.Writer) error {
	line, err := batchLine(opts.args, stdin)
	if err != nil {
		return err
	}
	samples, err := measure.ParseLine(line)
	if err != nil {
		return err
	}
	body, err := json.Marshal(measure.Batch{Data: samples})
	if err != nil {
		return err
	}

	endpoint, err := url.JoinPath(opts.url, "data")
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", opts.url, err)
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	fmt.Fprintln(stdout, strings.TrimRight(string(reply), "\n"))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}

// batchLine turns the positional arguments, or the first stdin line when
// there are none, into a single CSV or JSON batch line.
func batchLine(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if len(args) > 1 {
		return strings.Join(args, ","), nil
	}
	if stdin == nil {
		return "", errors.New("no samples given")
	}
	b, err := io.ReadAll(io.LimitReader(stdin, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	first, _, _ := strings.Cut(string(b), "\n")
	if strings.TrimSpace(first) == "" {
		return "", errors.New("no samples given")
	}
	return first, nil
}
