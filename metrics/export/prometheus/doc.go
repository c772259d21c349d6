// Package prometheus exposes goRenew client metrics as a Prometheus
// collector.
//
// [PrometheusExporter] implements prometheus.Collector and reads a client
// snapshot on every scrape. Counter names are gorenew_*_total; the single
// histogram is gorenew_renewal_latency_seconds. Live renewal state is
// exported as the gauges gorenew_waiters, gorenew_renewal_in_flight and
// gorenew_session_invalidated.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers use
//     Register with their own registry or mount Handler.
//   - Mutate client state.
package prometheus
