// Package provider exposes the network recommendation service to transports.
// A transport binds to the Binder returned by Provider.Binder and forwards
// every inbound call to it.
package provider

import (
	"context"
	"fmt"

	"github.com/specialistvlad/netrec/internal/ctxlog"
	"github.com/specialistvlad/netrec/internal/dispatcher"
	"github.com/specialistvlad/netrec/internal/looper"
	"github.com/specialistvlad/netrec/internal/recommendation"
)

// Evaluator computes recommendations.
type Evaluator = dispatcher.Evaluator[recommendation.Request, recommendation.Result]

// Binder is the inbound call surface a transport binds to.
type Binder interface {
	RequestRecommendation(req recommendation.Request, cb dispatcher.Callback, seq int)
}

// Provider owns the dispatcher that serializes recommendation requests.
type Provider struct {
	dispatcher *dispatcher.Dispatcher[recommendation.Request, recommendation.Result]
	binder     *binder
}

// New creates a provider whose evaluator runs on l.
func New(ctx context.Context, l *looper.Looper, eval Evaluator, opts ...dispatcher.Option) (*Provider, error) {
	d, err := dispatcher.New(ctx, l, eval, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create recommendation dispatcher: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Network recommendation provider created.", "looper", l.Name())

	p := &Provider{dispatcher: d}
	p.binder = &binder{p: p}
	return p, nil
}

// Binder returns the stub a transport registers as its inbound endpoint.
func (p *Provider) Binder() Binder {
	return p.binder
}

type binder struct {
	p *Provider
}

func (b *binder) RequestRecommendation(req recommendation.Request, cb dispatcher.Callback, seq int) {
	b.p.dispatcher.Submit(req, cb, seq)
}
