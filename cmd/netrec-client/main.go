// Command netrec-client sends one recommendation request to a netrec provider
// and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/specialistvlad/netrec/internal/cli"
	"github.com/specialistvlad/netrec/internal/client"
	"github.com/specialistvlad/netrec/internal/ctxlog"
	"github.com/specialistvlad/netrec/internal/recommendation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:])
	stop()

	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	url         string
	requestPath string
	event       string
	timeout     time.Duration
	insecure    bool
	verbose     bool
}

func parseFlags(args []string, output io.Writer) (*options, bool, error) {
	flagSet := flag.NewFlagSet("netrec-client", flag.ContinueOnError)
	flagSet.SetOutput(output)

	opts := &options{}
	flagSet.StringVar(&opts.url, "url", "http://localhost:8080/socket.io/", "Provider URL including the socket.io path.")
	flagSet.StringVar(&opts.requestPath, "request", "-", "JSON request file, '-' reads stdin.")
	flagSet.StringVar(&opts.event, "event", client.DefaultOptions().Event, "Event name the provider listens on.")
	flagSet.DurationVar(&opts.timeout, "timeout", 30*time.Second, "How long to wait for the connection and the reply.")
	flagSet.BoolVar(&opts.insecure, "insecure", false, "Skip TLS certificate verification.")
	flagSet.BoolVar(&opts.verbose, "v", false, "Log debug output to stderr.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &cli.ExitError{Code: 2, Message: err.Error()}
	}
	if opts.timeout <= 0 {
		return nil, false, &cli.ExitError{Code: 2, Message: "timeout must be positive"}
	}
	return opts, false, nil
}

func readRequest(path string, stdin io.Reader) (recommendation.Request, error) {
	var req recommendation.Request

	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return req, fmt.Errorf("failed to open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("failed to decode request: %w", err)
	}
	return req, nil
}

func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	opts, shouldExit, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	ctx = ctxlog.WithLogger(ctx, slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	req, err := readRequest(opts.requestPath, stdin)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	c, err := client.Dial(ctx, opts.url, client.Options{
		Namespace:          "/",
		Event:              opts.event,
		DialTimeout:        opts.timeout,
		InsecureSkipVerify: opts.insecure,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.Request(ctx, req)
	if err != nil {
		return fmt.Errorf("recommendation request failed: %w", err)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
