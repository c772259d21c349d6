// Package renewal implements the single-flight session renewal coordinator.
//
// # State machine
//
// A [Coordinator] is either idle or refreshing. The first caller that
// reports an expired session while idle becomes the leader and performs the
// renewal call; callers that report an expired session while a renewal is
// in flight are queued as waiters and released in FIFO order when the
// renewal settles. Every settlement advances an epoch so that late failures
// from requests sent before the settlement can reuse its outcome, provided
// no newer renewal is in flight; otherwise they queue like any other caller.
//
// # Architecture boundaries
//
// This package owns the in-flight flag, the waiter queue and the epoch. It
// does not know about HTTP, classification, replay or the session-lost side
// effect; those are injected by the root package through [Hooks].
//
// # What this package must NOT do
//
//   - Import goRenew or perform I/O itself.
//   - Hold its mutex while the renewal call runs.
//   - Keep any package-level mutable state.
package renewal
