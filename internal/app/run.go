package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/specialistvlad/netrec/internal/ctxlog"
	"github.com/specialistvlad/netrec/internal/dispatcher"
	"github.com/specialistvlad/netrec/internal/looper"
	"github.com/specialistvlad/netrec/internal/metrics"
	"github.com/specialistvlad/netrec/internal/provider"
	"github.com/specialistvlad/netrec/internal/transport/socketio"
)

const shutdownTimeout = 5 * time.Second

// Run starts the provider and serves it until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")
	cfg := a.config

	l, err := looper.New(ctx, cfg.Provider.Looper)
	if err != nil {
		return fmt.Errorf("failed to start looper: %w", err)
	}
	stopLooper := sync.OnceFunc(func() { a.stopLooper(l) })
	defer stopLooper()

	eval, err := a.newEvaluator(cfg.Scoring)
	if err != nil {
		return fmt.Errorf("failed to build scorer: %w", err)
	}

	reg := prometheus.NewRegistry()
	var opts []dispatcher.Option
	if cfg.Metrics.Enabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		obs, err := metrics.New(reg, l)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		opts = append(opts, dispatcher.WithObserver(obs))
	}

	p, err := provider.New(ctx, l, eval, opts...)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	transport := socketio.New(ctx, p.Binder(), cfg.Transport)
	// Peers stay connected until the looper has finished, so drained
	// requests can still be delivered.
	defer func() {
		stopLooper()
		transport.Close()
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
	}
	mux.Handle(transport.Path(), transport.Handler())

	ln, err := net.Listen("tcp", cfg.Transport.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Transport.Listen, err)
	}
	a.addr = ln.Addr()
	a.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.httpServer.Serve(ln)
	}()
	close(a.ready)

	a.logger.Info("🚀 Recommendation provider listening.",
		"address", a.addr.String(),
		"looper", l.Name(),
		"transport", cfg.Transport.Kind,
		"path", transport.Path(),
		"event", cfg.Transport.Event,
		"metrics", cfg.Metrics.Enabled,
	)

	select {
	case <-ctx.Done():
		a.logger.Info("🏁 Shutdown requested.")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	if err := a.closeHTTPServer(ctx); err != nil {
		return err
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

func (a *App) closeHTTPServer(ctx context.Context) error {
	a.logger.Debug("Closing HTTP server...")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("HTTP server shutdown failed", "error", err)
		return err
	}
	a.logger.Debug("HTTP server shut down gracefully.")
	return nil
}

func (a *App) stopLooper(l *looper.Looper) {
	if a.config.Provider.DrainOnShutdown {
		a.logger.Info("Draining queued requests...", "queued", l.Len())
		l.QuitSafely()
	} else {
		l.Quit()
	}
	<-l.Done()
}
