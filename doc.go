// Package goRenew provides an HTTP client that renews an expired session
// transparently. Requests that fail with an expired-session status are
// suspended behind a single shared renewal call and replayed once when it
// succeeds.
//
// A Client is safe to call from multiple goroutines after initialization
// through [Builder.Build].
//
// # Architecture boundaries
//
// goRenew is the public surface. It exposes [Client], [Builder], [Config],
// [Dispatcher], [Renewer] and value types (Request, Response,
// MetricsSnapshot, AuditEvent). Classification, replay and renewal
// orchestration live in internal/flows; the single-flight state machine
// lives in internal/renewal.
//
// # Renewal contract
//
//   - At most one renewal call is in flight per Client.
//   - Requests that report an expired session during a renewal are queued
//     and released in arrival order when it settles.
//   - A request is replayed at most once. An expired-session status on the
//     replay is returned to the caller.
//   - A failed renewal rejects every queued request with the same
//     *RenewalError and fires the session-lost callback at most once.
//   - The renewal and logout endpoints are never renewed. Neither are
//     requests marked with [WithRenewalExempt] or Request.SkipRenewal.
//
// # What this package must NOT do
//
//   - Log or audit request bodies, cookies or tokens.
//   - Retry a failed renewal on its own.
//   - Import any sub-package that re-imports goRenew (no import cycles).
package goRenew
