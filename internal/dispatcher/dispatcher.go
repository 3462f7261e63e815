// Package dispatcher bridges concurrent recommendation requests onto a single
// looper. Producers call Submit from any goroutine; the evaluator and every
// callback run on the looper goroutine, one item at a time, in arrival order.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/specialistvlad/netrec/internal/bundle"
	"github.com/specialistvlad/netrec/internal/ctxlog"
	"github.com/specialistvlad/netrec/internal/looper"
)

// msgGetRecommendation tags a queued work item.
const msgGetRecommendation = 1

// Evaluator computes a result for one request. It is only ever called from
// the dispatcher's looper goroutine and must not wait on work it submits to
// the same dispatcher.
type Evaluator[Req, Res any] interface {
	Evaluate(ctx context.Context, req Req) (Res, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// Evaluate calls f(ctx, req).
func (f EvaluatorFunc[Req, Res]) Evaluate(ctx context.Context, req Req) (Res, error) {
	return f(ctx, req)
}

// Callback is the caller's one-shot continuation. SendResult is invoked at
// most once per submitted item.
type Callback interface {
	SendResult(ctx context.Context, b bundle.Bundle) error
}

// CallbackFunc adapts a function to the Callback interface.
type CallbackFunc func(ctx context.Context, b bundle.Bundle) error

// SendResult calls f(ctx, b).
func (f CallbackFunc) SendResult(ctx context.Context, b bundle.Bundle) error {
	return f(ctx, b)
}

// workItem is owned by the looper queue until the worker consumes it.
type workItem[Req any] struct {
	request  Req
	callback Callback
	sequence int
}

// Option configures a Dispatcher.
type Option func(*options)

type options struct {
	name     string
	observer Observer
}

// WithName sets the name used in log lines. Defaults to the looper name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithObserver installs hooks for metrics.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// Dispatcher serializes evaluation of requests on one looper.
type Dispatcher[Req, Res any] struct {
	ctx      context.Context
	looper   *looper.Looper
	eval     Evaluator[Req, Res]
	observer Observer
}

// New binds a dispatcher to l. The binding is fixed for the dispatcher's
// lifetime. The caller owns l and is responsible for quitting it.
func New[Req, Res any](ctx context.Context, l *looper.Looper, eval Evaluator[Req, Res], opts ...Option) (*Dispatcher[Req, Res], error) {
	if l == nil {
		return nil, ErrNoLooper
	}
	if eval == nil {
		return nil, ErrNoEvaluator
	}

	o := options{name: l.Name(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}

	return &Dispatcher[Req, Res]{
		ctx:      ctxlog.With(ctx, "dispatcher", o.name),
		looper:   l,
		eval:     eval,
		observer: o.observer,
	}, nil
}

// Submit enqueues a request. It never blocks beyond the enqueue and never
// reports an error: when the looper is gone the item is dropped and cb is
// never called.
func (d *Dispatcher[Req, Res]) Submit(req Req, cb Callback, seq int) {
	logger := ctxlog.FromContext(d.ctx)

	if cb == nil {
		logger.Warn("Dropping request without a callback.", "sequence", seq)
		d.observer.Dropped(DropNilCallback)
		return
	}

	msg := looper.Message{
		What: msgGetRecommendation,
		Arg1: seq,
		Obj:  workItem[Req]{request: req, callback: cb, sequence: seq},
	}
	// Submitted must precede Post: the worker may evaluate the item before
	// Post returns.
	d.observer.Submitted()
	if !d.looper.Post(d, msg) {
		logger.Warn("Looper has quit, dropping request.", "sequence", seq)
		d.observer.Dropped(DropLooperQuit)
	}
}

// HandleMessage runs on the looper goroutine. An unknown tag or payload is a
// broken invariant and panics.
func (d *Dispatcher[Req, Res]) HandleMessage(msg looper.Message) {
	switch msg.What {
	case msgGetRecommendation:
		item, ok := msg.Obj.(workItem[Req])
		if !ok {
			panic(&InvariantError{What: msg.What, Reason: fmt.Sprintf("unexpected payload %T", msg.Obj)})
		}
		d.process(item)
	default:
		panic(&InvariantError{What: msg.What, Reason: "unknown message"})
	}
}

func (d *Dispatcher[Req, Res]) process(item workItem[Req]) {
	logger := ctxlog.FromContext(d.ctx).With("sequence", item.sequence)

	start := time.Now()
	res, err := d.evaluate(item)
	took := time.Since(start)
	if err != nil {
		outcome := OutcomeError
		var pe *EvaluationPanicError
		if errors.As(err, &pe) {
			outcome = OutcomePanic
		}
		d.observer.Evaluated(outcome, took)
		logger.Error("Evaluation failed, skipping delivery.", "error", err, "duration", took)
		return
	}
	d.observer.Evaluated(OutcomeOK, took)
	logger.Debug("Evaluation finished.", "duration", took)

	if err := d.deliver(item, res); err != nil {
		d.observer.Delivered(OutcomeError)
		logger.Warn("Failed to deliver recommendation result.", "error", err)
		return
	}
	d.observer.Delivered(OutcomeOK)
	logger.Debug("Recommendation delivered.")
}

func (d *Dispatcher[Req, Res]) evaluate(item workItem[Req]) (res Res, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &EvaluationPanicError{Sequence: item.sequence, Value: r, Stack: debug.Stack()}
		}
	}()
	return d.eval.Evaluate(d.ctx, item.request)
}

func (d *Dispatcher[Req, Res]) deliver(item workItem[Req], res Res) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DeliveryError{Sequence: item.sequence, Err: fmt.Errorf("callback panicked: %v", r)}
		}
	}()

	b := bundle.New()
	b.PutInt(bundle.KeySequence, item.sequence)
	b.Put(bundle.KeyRecommendationResult, res)

	if err := item.callback.SendResult(d.ctx, b); err != nil {
		return &DeliveryError{Sequence: item.sequence, Err: err}
	}
	return nil
}
