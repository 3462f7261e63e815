package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/netrec/internal/bundle"
)

// Delivery is one recorded SendResult call.
type Delivery struct {
	Sequence int
	Bundle   bundle.Bundle
}

// RecordingCallback records every bundle it receives, in order, and can be
// told to fail. It is safe for concurrent use.
type RecordingCallback struct {
	mu         sync.Mutex
	deliveries []Delivery
	calls      int
	err        error
	notify     chan Delivery
}

// NewRecordingCallback creates a callback that succeeds.
func NewRecordingCallback() *RecordingCallback {
	return &RecordingCallback{notify: make(chan Delivery, 1024)}
}

// NewFailingCallback creates a callback whose SendResult always returns err.
func NewFailingCallback(err error) *RecordingCallback {
	cb := NewRecordingCallback()
	cb.err = err
	return cb
}

// SendResult records b and returns the configured error, if any.
func (c *RecordingCallback) SendResult(_ context.Context, b bundle.Bundle) error {
	seq, _ := b.GetInt(bundle.KeySequence)

	c.mu.Lock()
	c.calls++
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	d := Delivery{Sequence: seq, Bundle: b}
	c.deliveries = append(c.deliveries, d)
	c.mu.Unlock()

	select {
	case c.notify <- d:
	default:
	}
	return nil
}

// Calls returns how many times SendResult was invoked, failed calls included.
func (c *RecordingCallback) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Deliveries returns a copy of the successful deliveries.
func (c *RecordingCallback) Deliveries() []Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Delivery, len(c.deliveries))
	copy(out, c.deliveries)
	return out
}

// Wait blocks until n successful deliveries were recorded in total or the
// timeout expires, failing the test in the latter case.
func (c *RecordingCallback) Wait(t *testing.T, n int, timeout time.Duration) []Delivery {
	t.Helper()

	deadline := time.After(timeout)
	for {
		if got := c.Deliveries(); len(got) >= n {
			return got
		}
		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d deliveries, got %d", n, len(c.Deliveries()))
			return nil
		}
	}
}
