// Package client calls a netrec provider over socket.io.
//
// Calls are correlated by sequence number: each Request allocates the next
// sequence, waits in a pending.Store, and is woken by the reply bundle whose
// extra.SEQUENCE matches.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/netrec/internal/bundle"
	"github.com/specialistvlad/netrec/internal/ctxlog"
	"github.com/specialistvlad/netrec/internal/pending"
	"github.com/specialistvlad/netrec/internal/recommendation"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
	sio "github.com/zishang520/socket.io/v2/socket"
)

var (
	// ErrMalformedReply is returned when the provider acknowledges with
	// something other than a result bundle.
	ErrMalformedReply = errors.New("malformed recommendation reply")
	// ErrClosed is returned by Request after Close.
	ErrClosed = errors.New("client is closed")
	// ErrSequenceInUse is returned when the next sequence still has a
	// request waiting on it, which only happens after the counter wrapped.
	ErrSequenceInUse = errors.New("sequence is still waiting for a reply")
)

// Options tune Dial.
type Options struct {
	Namespace          string
	Event              string
	DialTimeout        time.Duration
	InsecureSkipVerify bool
}

// DefaultOptions match the provider's default transport settings.
func DefaultOptions() Options {
	return Options{
		Namespace:   "/",
		Event:       "request_recommendation",
		DialTimeout: 15 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Namespace == "" {
		o.Namespace = d.Namespace
	}
	if o.Event == "" {
		o.Event = d.Event
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = d.DialTimeout
	}
	return o
}

// emitFunc sends one event with an ack.
type emitFunc func(ev string, ack sio.Ack, args ...any)

// Client is a connected recommendation caller. It is safe for concurrent use.
type Client struct {
	ctx     context.Context
	conn    *socket.Socket
	emit    emitFunc
	event   string
	pending *pending.Store
	seq     atomic.Int32
	closed  atomic.Bool
}

// Dial connects to rawURL and waits until the socket is connected, the
// connection fails, ctx is done, or opts.DialTimeout passes.
func Dial(ctx context.Context, rawURL string, opts Options) (*Client, error) {
	logger := ctxlog.FromContext(ctx).With("url", rawURL)
	opts = opts.withDefaults()

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("failed to parse URL: %q needs a scheme and a host", rawURL)
	}

	sOpts := socket.DefaultOptions()
	if p := strings.TrimRight(parsedURL.Path, "/"); p != "" {
		sOpts.SetPath(p)
	}
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sOpts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	io := socket.NewManager(baseURL, sOpts).Socket(opts.Namespace, sOpts)

	connectChan := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected.", "sid", io.Id())
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connectChan <- err:
		default:
		}
	})

	logger.Debug("Connecting...")
	io.Connect()

	timeout := opts.DialTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-timer.C:
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	c := newClient(ctxlog.With(ctx, "sid", io.Id()), opts.Event, func(ev string, ack sio.Ack, args ...any) {
		io.EmitWithAck(ev, args...)(ack)
	})
	c.conn = io
	logger.Info("Connected to recommendation provider.", "sid", io.Id())
	return c, nil
}

func newClient(ctx context.Context, event string, emit emitFunc) *Client {
	return &Client{
		ctx:     ctx,
		emit:    emit,
		event:   event,
		pending: pending.New(),
	}
}

// Request sends req and blocks until the provider replies or ctx is done.
// The provider never reports evaluation failures, so a request it could not
// complete only ends through ctx.
func (c *Client) Request(ctx context.Context, req recommendation.Request) (recommendation.Result, error) {
	if c.closed.Load() {
		return recommendation.Result{}, ErrClosed
	}

	payload, err := toWire(req)
	if err != nil {
		return recommendation.Result{}, fmt.Errorf("encoding request: %w", err)
	}

	seq := int(c.seq.Add(1))
	wait := c.pending.Register(seq)
	if wait == nil {
		return recommendation.Result{}, fmt.Errorf("sequence %d: %w", seq, ErrSequenceInUse)
	}
	defer c.pending.Cancel(seq)

	ctxlog.FromContext(c.ctx).Debug("Sending request.", "sequence", seq, "scan_results", len(req.ScanResults))
	c.emit(c.event, func(args []any, err error) { c.onAck(seq, args, err) }, payload, seq)

	select {
	case reply := <-wait:
		if reply.Err != nil {
			return recommendation.Result{}, reply.Err
		}
		return decodeResult(reply.Bundle)
	case <-ctx.Done():
		return recommendation.Result{}, fmt.Errorf("waiting for sequence %d: %w", seq, ctx.Err())
	}
}

// onAck routes an acknowledgement to its waiter. Transport errors are routed
// by the emitted sequence, replies by the sequence they carry.
func (c *Client) onAck(sent int, args []any, err error) {
	logger := ctxlog.FromContext(c.ctx)
	if err != nil {
		c.pending.Resolve(sent, pending.Reply{Err: err})
		return
	}

	b, err := toBundle(args)
	if err != nil {
		c.pending.Resolve(sent, pending.Reply{Err: err})
		return
	}
	seq, ok := b.Sequence()
	if !ok {
		c.pending.Resolve(sent, pending.Reply{Err: fmt.Errorf("%w: no %s", ErrMalformedReply, bundle.KeySequence)})
		return
	}
	if !c.pending.Resolve(seq, pending.Reply{Bundle: b}) {
		logger.Debug("Reply for a sequence nobody is waiting for.", "sequence", seq)
	}
}

// Close disconnects. Outstanding requests end through their contexts.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	ctxlog.FromContext(c.ctx).Info("Disconnecting from recommendation provider.", "outstanding", c.pending.Len())
	if c.conn != nil {
		c.conn.Disconnect()
	}
}

// toWire converts req into plain maps and slices, the shape the socket.io
// parser expects.
func toWire(req recommendation.Request) (any, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toBundle(args []any) (bundle.Bundle, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: want 1 argument, got %d", ErrMalformedReply, len(args))
	}
	switch v := args[0].(type) {
	case bundle.Bundle:
		return v, nil
	case map[string]any:
		return bundle.Bundle(v), nil
	default:
		return nil, fmt.Errorf("%w: argument has type %T", ErrMalformedReply, args[0])
	}
}

func decodeResult(b bundle.Bundle) (recommendation.Result, error) {
	var res recommendation.Result
	v, ok := b.Result()
	if !ok {
		return res, fmt.Errorf("%w: no %s", ErrMalformedReply, bundle.KeyRecommendationResult)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrMalformedReply, err)
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return res, fmt.Errorf("%w: %w", ErrMalformedReply, err)
	}
	return res, nil
}
