package dispatcher

import (
	"errors"
	"fmt"
)

var (
	// ErrNoLooper is returned by New when no execution context is supplied.
	ErrNoLooper = errors.New("dispatcher requires a looper")
	// ErrNoEvaluator is returned by New when no evaluator is supplied.
	ErrNoEvaluator = errors.New("dispatcher requires an evaluator")
)

// InvariantError is the panic value raised when the worker receives a message
// it does not understand. It signals a bug in this package, never a caller
// mistake.
type InvariantError struct {
	What   int
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("dispatcher invariant violated (what=%d): %s", e.What, e.Reason)
}

// EvaluationPanicError wraps a value recovered from a panicking evaluator.
type EvaluationPanicError struct {
	Sequence int
	Value    any
	Stack    []byte
}

func (e *EvaluationPanicError) Error() string {
	return fmt.Sprintf("evaluator panicked for sequence %d: %v", e.Sequence, e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *EvaluationPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// DeliveryError reports a failed callback invocation.
type DeliveryError struct {
	Sequence int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery of sequence %d failed: %v", e.Sequence, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
