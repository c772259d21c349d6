// Package otel publishes goRenew client metrics through OpenTelemetry
// observable instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per client counter,
// cumulative Int64ObservableGauges per renewal latency bucket, and the live
// renewal state from [goRenew.Client.State]: queue depth, whether a renewal
// is in flight, whether the session was invalidated, and audit delivery
// counts. One callback reads the counter snapshot and the state once per
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
