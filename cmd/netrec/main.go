package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/specialistvlad/netrec/internal/app"
	"github.com/specialistvlad/netrec/internal/cli"
	"github.com/specialistvlad/netrec/internal/config"
	"github.com/specialistvlad/netrec/internal/hcl_adapter"
	"github.com/specialistvlad/netrec/internal/yaml_adapter"
)

// main is the entrypoint for the netrec service.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
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

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// The app panics on critical config errors.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	netrecApp := app.NewApp(outW, appConfig, loaderFor(appConfig.ConfigPaths))
	return netrecApp.Run(ctx)
}

// loaderFor picks the YAML loader when any path names a YAML file and the
// HCL loader otherwise.
func loaderFor(paths []string) config.Loader {
	for _, p := range paths {
		ext := strings.ToLower(filepath.Ext(p))
		for _, yamlExt := range yaml_adapter.Extensions {
			if ext == yamlExt {
				return yaml_adapter.NewLoader()
			}
		}
	}
	return hcl_adapter.NewLoader()
}
