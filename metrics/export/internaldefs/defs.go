package internaldefs

import (
	goRenew "github.com/MrEthical07/goRenew"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goRenew.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goRenew.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goRenew.MetricRequestDispatched, Name: "gorenew_request_dispatched_total", Help: "Requests dispatched, replays included."},
	{ID: goRenew.MetricRequestFailed, Name: "gorenew_request_failed_total", Help: "Dispatches that ended in a transport error or non-2xx status."},
	{ID: goRenew.MetricAuthExpired, Name: "gorenew_auth_expired_total", Help: "Calls classified as an expired session."},
	{ID: goRenew.MetricExemptPassthrough, Name: "gorenew_exempt_passthrough_total", Help: "Expired-session statuses returned unchanged for exempt calls."},
	{ID: goRenew.MetricRenewalStarted, Name: "gorenew_renewal_started_total", Help: "Renewal calls issued."},
	{ID: goRenew.MetricRenewalSuccess, Name: "gorenew_renewal_success_total", Help: "Successful renewals."},
	{ID: goRenew.MetricRenewalFailure, Name: "gorenew_renewal_failure_total", Help: "Failed renewals."},
	{ID: goRenew.MetricRenewalTimeout, Name: "gorenew_renewal_timeout_total", Help: "Renewals that exceeded the configured timeout."},
	{ID: goRenew.MetricWaiterQueued, Name: "gorenew_waiter_queued_total", Help: "Calls queued behind an in-flight renewal."},
	{ID: goRenew.MetricWaiterReleased, Name: "gorenew_waiter_released_total", Help: "Queued calls released after a successful renewal."},
	{ID: goRenew.MetricWaiterRejected, Name: "gorenew_waiter_rejected_total", Help: "Queued calls rejected with the renewal error."},
	{ID: goRenew.MetricWaiterCancelled, Name: "gorenew_waiter_cancelled_total", Help: "Queued calls abandoned by their caller."},
	{ID: goRenew.MetricReplaySuccess, Name: "gorenew_replay_success_total", Help: "Successful replays."},
	{ID: goRenew.MetricReplayFailure, Name: "gorenew_replay_failure_total", Help: "Replays that failed for non-authentication reasons."},
	{ID: goRenew.MetricReplayRejected, Name: "gorenew_replay_rejected_total", Help: "Replays refused with an expired-session status."},
	{ID: goRenew.MetricStaleReplay, Name: "gorenew_stale_replay_total", Help: "Late expired-session reports that reused a settled renewal."},
	{ID: goRenew.MetricProactiveRenewal, Name: "gorenew_proactive_renewal_total", Help: "Renewals triggered ahead of bearer token expiry."},
	{ID: goRenew.MetricSessionInvalidated, Name: "gorenew_session_invalidated_total", Help: "Session-lost side effects fired."},
	{ID: goRenew.MetricLogout, Name: "gorenew_logout_total", Help: "Logout calls."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goRenew.MetricRenewalLatency, Name: "gorenew_renewal_latency_seconds", Help: "Renewal call latency."},
}

// StateDef describes a value read from [goRenew.Client.State] at collection
// time rather than from the counter snapshot.
type StateDef struct {
	Name string
	Help string
	// Monotonic values are exported as counters, the rest as gauges.
	Monotonic bool
	Value     func(goRenew.ClientState) int64
}

// StateDefs lists every exported live-state value.
var StateDefs = []StateDef{
	{Name: "gorenew_waiters", Help: "Requests suspended behind the in-flight renewal.", Value: func(s goRenew.ClientState) int64 { return int64(s.Waiting) }},
	{Name: "gorenew_renewal_in_flight", Help: "1 while a renewal call is in flight.", Value: func(s goRenew.ClientState) int64 { return flag(s.Refreshing) }},
	{Name: "gorenew_session_invalidated", Help: "1 once the session-lost side effect has fired.", Value: func(s goRenew.ClientState) int64 { return flag(s.SessionInvalidated) }},
	{Name: "gorenew_audit_delivered_total", Help: "Audit events handed to the sink.", Monotonic: true, Value: func(s goRenew.ClientState) int64 { return int64(s.AuditDelivered) }},
	{Name: "gorenew_audit_dropped_total", Help: "Audit events dropped on a full buffer.", Monotonic: true, Value: func(s goRenew.ClientState) int64 { return int64(s.AuditDropped) }},
}

func flag(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// without native histograms.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed 8-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
