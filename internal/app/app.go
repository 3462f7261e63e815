package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/specialistvlad/netrec/internal/config"
	"github.com/specialistvlad/netrec/internal/ctxlog"
	"github.com/specialistvlad/netrec/internal/provider"
	"github.com/specialistvlad/netrec/internal/scorer"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	ctx    context.Context
	config *config.Model

	newEvaluator func(config.Scoring) (provider.Evaluator, error)

	httpServer *http.Server
	ready      chan struct{}
	addr       net.Addr
}

// NewApp is the constructor for the main application. It loads and validates
// the configuration and panics when that fails, since the service cannot
// start without it.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	cfgModel, err := loader.Load(ctx, appConfig.ConfigPaths...)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}

	if appConfig.Listen != "" {
		cfgModel.Apply(config.Overrides{Listen: &appConfig.Listen})
		if err := cfgModel.Validate(); err != nil {
			panic(fmt.Errorf("invalid configuration: %w", err))
		}
	}
	logger.Debug("Configuration loaded.", "files", len(appConfig.ConfigPaths), "listen", cfgModel.Transport.Listen)

	return &App{
		outW:   outW,
		logger: logger,
		ctx:    ctx,
		config: cfgModel,
		ready:  make(chan struct{}),

		newEvaluator: newScorer,
	}
}

// newScorer builds the bundled evaluator.
func newScorer(cfg config.Scoring) (provider.Evaluator, error) {
	s, err := scorer.New(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the loaded configuration model. This is primarily for testing.
func (a *App) Config() *config.Model {
	return a.config
}

// Ready is closed once the HTTP listener is bound.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the bound listener address. Only valid after Ready is closed.
func (a *App) Addr() net.Addr {
	return a.addr
}
