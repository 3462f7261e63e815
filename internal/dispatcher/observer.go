package dispatcher

import "time"

// Outcome labels reported to an Observer.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomePanic = "panic"
)

// Drop reasons reported to an Observer.
const (
	DropLooperQuit  = "looper_quit"
	DropNilCallback = "nil_callback"
)

// Observer receives lifecycle events for every work item. Methods are called
// from the submitting goroutine (Submitted, Dropped) or from the looper
// goroutine (Evaluated, Delivered) and must not block.
//
// Submitted is reported before the item is posted, so it always precedes the
// item's Evaluated. A post refused by a quit looper follows with
// Dropped(DropLooperQuit). A nil callback is only reported as Dropped.
type Observer interface {
	Submitted()
	Dropped(reason string)
	Evaluated(outcome string, took time.Duration)
	Delivered(outcome string)
}

type nopObserver struct{}

func (nopObserver) Submitted()                      {}
func (nopObserver) Dropped(string)                  {}
func (nopObserver) Evaluated(string, time.Duration) {}
func (nopObserver) Delivered(string)                {}
