// Package flows contains pure-function orchestrators for every Client operation.
//
// Each flow function (RunDo, RunReplay, RunRenew, RunLogout) accepts a typed
// dependency struct and returns results without side-effects beyond those
// dependencies. The root package wires the dispatcher, coordinator, token
// holder, metrics and audit into these structs once at build time.
//
// # Architecture boundaries
//
// Flow functions decide what happens to a finished call: pass it through,
// suspend it behind a renewal, or replay it. They do NOT own the HTTP client,
// the coordinator or the session latch; ownership stays with the Client.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goRenew (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
package flows
