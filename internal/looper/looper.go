package looper

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/specialistvlad/netrec/internal/ctxlog"
)

// ErrNoName is returned by New when the looper identity is empty.
var ErrNoName = errors.New("looper name is required")

// Handler consumes messages on the looper goroutine.
type Handler interface {
	HandleMessage(msg Message)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(msg Message)

// HandleMessage calls f(msg).
func (f HandlerFunc) HandleMessage(msg Message) { f(msg) }

// Message is the unit of work carried by the queue. What is a tag owned by
// the handler; the looper never interprets it.
type Message struct {
	What int
	Arg1 int
	Obj  any
	Data any

	target Handler
}

// Looper owns one goroutine and a FIFO of messages bound for it.
type Looper struct {
	name string
	ctx  context.Context

	mu       sync.Mutex
	queue    []Message
	quitting bool
	drain    bool

	wake chan struct{}
	done chan struct{}
}

// New creates a looper identified by name and starts its goroutine. The
// logger carried by ctx is used for lifecycle logging.
func New(ctx context.Context, name string) (*Looper, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNoName
	}

	l := &Looper{
		name: name,
		ctx:  ctxlog.With(ctx, "looper", name),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.loop()
	return l, nil
}

// Name returns the identity given at construction.
func (l *Looper) Name() string {
	return l.name
}

// Post enqueues msg for h. It reports false when the looper has quit, in
// which case the message is dropped.
func (l *Looper) Post(h Handler, msg Message) bool {
	if h == nil {
		panic("looper: nil handler")
	}
	msg.target = h

	l.mu.Lock()
	if l.quitting {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, msg)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of messages waiting to be handled.
func (l *Looper) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Quit stops the looper without handling pending messages. The message being
// handled when Quit is called runs to completion.
func (l *Looper) Quit() {
	l.quit(false)
}

// QuitSafely stops accepting new messages and exits once every message that
// was already posted has been handled.
func (l *Looper) QuitSafely() {
	l.quit(true)
}

// Done is closed once the looper goroutine has exited.
func (l *Looper) Done() <-chan struct{} {
	return l.done
}

func (l *Looper) quit(drain bool) {
	l.mu.Lock()
	if l.quitting {
		l.mu.Unlock()
		return
	}
	l.quitting = true
	l.drain = drain
	if !drain {
		l.queue = nil
	}
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// next blocks until a message is available or the looper is finished.
func (l *Looper) next() (Message, bool) {
	for {
		l.mu.Lock()
		if len(l.queue) > 0 && (!l.quitting || l.drain) {
			msg := l.queue[0]
			l.queue[0] = Message{}
			l.queue = l.queue[1:]
			l.mu.Unlock()
			return msg, true
		}
		if l.quitting {
			l.queue = nil
			l.mu.Unlock()
			return Message{}, false
		}
		l.mu.Unlock()

		<-l.wake
	}
}

func (l *Looper) loop() {
	logger := ctxlog.FromContext(l.ctx)
	logger.Debug("Looper started.")
	defer close(l.done)

	for {
		msg, ok := l.next()
		if !ok {
			logger.Debug("Looper finished.")
			return
		}
		msg.target.HandleMessage(msg)
	}
}
