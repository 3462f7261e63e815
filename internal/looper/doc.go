// Package looper provides a single-goroutine execution context that runs
// posted messages one at a time, in the order they were posted.
//
// # Why Looper Exists
//
// Code handed to a Looper never runs concurrently with other code handed to
// the same Looper. Components that must serialize user logic (see the
// dispatcher package) bind to one Looper at construction and post their work
// to it, so the user logic itself needs no locking even when work arrives
// from many goroutines at once.
//
// # How It Works
//
//  1. New starts exactly one goroutine that owns the message queue.
//  2. Post appends to an unbounded FIFO under a mutex and nudges the
//     goroutine through a one-slot wake channel. Producers never wait on the
//     consumer.
//  3. The goroutine pops the oldest message and calls its Handler. When the
//     queue is empty it parks on the wake channel until something arrives.
//  4. Quit stops accepting messages and discards the backlog; QuitSafely
//     stops accepting messages and drains the backlog first. Done is closed
//     when the goroutine has exited.
//
// # Failure Model
//
// A Looper does not recover panics raised by handlers. A handler that panics
// signals a broken invariant, and the process is expected to go down with it.
// Handlers that call user code which may fail must recover it themselves.
package looper
