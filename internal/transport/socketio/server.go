// Package socketio binds the recommendation provider to a socket.io endpoint.
//
// A peer emits the configured event with two arguments and an ack:
//
//	socket.emit("request_recommendation", request, sequence, (bundle) => { ... })
//
// The ack is the callback handle: it is invoked once with the result bundle,
// or never when the request cannot be completed.
package socketio

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/specialistvlad/netrec/internal/config"
	"github.com/specialistvlad/netrec/internal/ctxlog"
	"github.com/specialistvlad/netrec/internal/provider"
	"github.com/specialistvlad/netrec/internal/ratelimiter"
	"github.com/zishang520/socket.io/v2/socket"
)

// Server accepts recommendation calls over socket.io.
type Server struct {
	ctx     context.Context
	io      *socket.Server
	handler http.Handler
	binder  provider.Binder
	event   string
	path    string
	limiter *ratelimiter.MapLimiter
	now     func() time.Time
}

// New creates the socket.io server. Nothing listens until Handler is mounted
// on an HTTP server.
func New(ctx context.Context, binder provider.Binder, cfg config.Transport) *Server {
	opts := socket.DefaultServerOptions()
	opts.SetPath(cfg.Path)
	opts.SetServeClient(false)

	s := &Server{
		ctx:    ctxlog.With(ctx, "transport", config.TransportSocketIO),
		io:     socket.NewServer(nil, opts),
		binder: binder,
		event:  cfg.Event,
		path:   strings.TrimSuffix(cfg.Path, "/") + "/",
		now:    time.Now,
	}
	if rl := cfg.RateLimit; rl != nil {
		s.limiter = ratelimiter.New(rl.RPS, rl.Burst, ratelimiter.DefaultIdleTTL)
	}

	s.io.On("connection", s.handleConnection)
	s.handler = s.io.ServeHandler(nil)

	ctxlog.FromContext(s.ctx).Debug("socket.io server created.", "path", cfg.Path, "event", cfg.Event, "rate_limited", s.limiter != nil)
	return s
}

// Handler returns the engine.io handler to mount at Path.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Path is the URL prefix the handler expects, always with a trailing slash
// so it can be used as a ServeMux subtree pattern.
func (s *Server) Path() string {
	return s.path
}

// Close disconnects every peer. Requests already queued still run, but their
// delivery fails with ErrPeerGone.
func (s *Server) Close() {
	logger := ctxlog.FromContext(s.ctx)
	logger.Debug("Closing socket.io server...")
	s.io.Close(func(err error) {
		if err != nil {
			logger.Warn("socket.io server closed with error.", "error", err)
		}
	})
}

// handleConnection is the "connection" listener. Anything but a socket as
// the first argument is ignored.
func (s *Server) handleConnection(clients ...any) {
	if len(clients) == 0 {
		ctxlog.FromContext(s.ctx).Warn("Connection event without a socket, ignoring.")
		return
	}
	client, ok := clients[0].(*socket.Socket)
	if !ok {
		ctxlog.FromContext(s.ctx).Warn("Connection event with an unexpected argument, ignoring.", "type", fmt.Sprintf("%T", clients[0]))
		return
	}
	s.onConnection(client)
}

func (s *Server) onConnection(client *socket.Socket) {
	peerID := string(client.Id())
	logger := ctxlog.FromContext(s.ctx).With("peer", peerID)
	logger.Info("Peer connected.")

	client.On(s.event, func(args ...any) {
		s.handleCall(peerID, client, args...)
	})
	client.On("disconnect", func(reason ...any) {
		s.limiter.Forget(peerID)
		logger.Info("Peer disconnected.", "reason", reason)
	})
}

// handleCall validates one inbound call and forwards it to the binder.
// Malformed or rate limited calls are dropped without a completion.
func (s *Server) handleCall(peerID string, p peer, args ...any) {
	logger := ctxlog.FromContext(s.ctx).With("peer", peerID)

	if !s.limiter.Allow(peerID, s.now()) {
		logger.Warn("Rate limit exceeded, dropping call.")
		return
	}

	call, err := decodeCall(args)
	if err != nil {
		logger.Warn("Dropping malformed call.", "error", err)
		return
	}

	logger.Debug("Call accepted.", "sequence", call.sequence, "scan_results", len(call.request.ScanResults))
	s.binder.RequestRecommendation(call.request, &ackCallback{peer: p, ack: call.ack}, call.sequence)
}
