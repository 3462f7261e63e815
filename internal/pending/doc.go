// Package pending correlates replies with the calls that are waiting for them.
//
// The client allocates a sequence number per call, registers it here, and
// resolves it when a bundle carrying that sequence comes back. Waiters are
// keyed by sequence alone, so a reply can be routed without holding on to
// the closure that sent the call.
//
// # Concurrency Model
//
// The store uses sync.Map: every sequence is written once and deleted once,
// and distinct sequences never contend with each other.
package pending
