package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/specialistvlad/netrec/internal/bundle"
	"github.com/specialistvlad/netrec/internal/recommendation"
	"github.com/zishang520/socket.io/v2/socket"
)

var (
	// ErrPeerGone is returned when the peer disconnected before its result
	// was ready.
	ErrPeerGone = errors.New("socket.io peer is no longer connected")
	// ErrMalformedCall is returned for calls that do not match
	// (request, sequence, ack).
	ErrMalformedCall = errors.New("malformed recommendation call")
)

// peer is the part of a socket the callback needs.
type peer interface {
	Connected() bool
}

// ackCallback turns a socket.io ack into a dispatcher.Callback.
type ackCallback struct {
	peer peer
	ack  socket.Ack
}

// SendResult acknowledges the call with the bundle as the single argument.
func (a *ackCallback) SendResult(_ context.Context, b bundle.Bundle) error {
	if !a.peer.Connected() {
		return ErrPeerGone
	}
	a.ack([]any{b}, nil)
	return nil
}

type call struct {
	request  recommendation.Request
	sequence int
	ack      socket.Ack
}

func decodeCall(args []any) (call, error) {
	var c call

	if len(args) != 3 {
		return c, fmt.Errorf("%w: want (request, sequence, ack), got %d arguments", ErrMalformedCall, len(args))
	}

	ack, ok := args[2].(socket.Ack)
	if !ok {
		return c, fmt.Errorf("%w: missing ack", ErrMalformedCall)
	}
	c.ack = ack

	seq, err := toSequence(args[1])
	if err != nil {
		return c, fmt.Errorf("%w: %w", ErrMalformedCall, err)
	}
	c.sequence = seq

	if args[0] == nil {
		return c, fmt.Errorf("%w: request is null", ErrMalformedCall)
	}
	raw, err := json.Marshal(args[0])
	if err != nil {
		return c, fmt.Errorf("%w: request: %w", ErrMalformedCall, err)
	}
	if err := json.Unmarshal(raw, &c.request); err != nil {
		return c, fmt.Errorf("%w: request: %w", ErrMalformedCall, err)
	}
	return c, nil
}

func toSequence(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt32 && n <= math.MaxInt32 {
			return int(n), nil
		}
		return 0, fmt.Errorf("sequence %v is not a 32-bit integer", n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("sequence %q: %w", n, err)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("sequence has type %T, want a number", v)
	}
}
