package goRenew

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one client counter or histogram.
//
// MetricID values are stable within a release and are used as keys of
// [MetricsSnapshot] maps and by the exporters under metrics/export.
type MetricID uint16

const (
	// MetricRequestDispatched counts every dispatch, replays included.
	MetricRequestDispatched MetricID = iota
	// MetricRequestFailed counts dispatches that ended in a transport error or non-2xx status.
	MetricRequestFailed
	// MetricAuthExpired counts calls classified as an expired session.
	MetricAuthExpired
	// MetricExemptPassthrough counts expired-session statuses left alone because the call was exempt.
	MetricExemptPassthrough
	// MetricRenewalStarted counts renewal calls issued.
	MetricRenewalStarted
	// MetricRenewalSuccess counts renewals that settled successfully.
	MetricRenewalSuccess
	// MetricRenewalFailure counts renewals that settled with an error.
	MetricRenewalFailure
	// MetricRenewalTimeout counts renewals that exceeded the configured timeout.
	MetricRenewalTimeout
	// MetricWaiterQueued counts callers suspended behind an in-flight renewal.
	MetricWaiterQueued
	// MetricWaiterReleased counts queued callers released after a successful renewal.
	MetricWaiterReleased
	// MetricWaiterRejected counts queued callers released with the renewal error.
	MetricWaiterRejected
	// MetricWaiterCancelled counts queued callers that gave up because their context ended.
	MetricWaiterCancelled
	// MetricReplaySuccess counts replays that succeeded.
	MetricReplaySuccess
	// MetricReplayFailure counts replays that failed for reasons other than authentication.
	MetricReplayFailure
	// MetricReplayRejected counts replays that were refused with an expired-session status.
	MetricReplayRejected
	// MetricStaleReplay counts late expired-session reports that reused a settled renewal.
	MetricStaleReplay
	// MetricProactiveRenewal counts renewals triggered ahead of bearer token expiry.
	MetricProactiveRenewal
	// MetricSessionInvalidated counts session-lost side effects. It is at most 1 per latch.
	MetricSessionInvalidated
	// MetricLogout counts logout calls.
	MetricLogout
	// MetricRenewalLatency is the renewal call latency histogram.
	MetricRenewalLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free client counters.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics].
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg. A disabled Metrics is
// valid and records nothing.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the renewal latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Only [MetricRenewalLatency] has a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricRenewalLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricRenewalLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRenewalLatency].buckets[i])
		}
		s.Histograms[MetricRenewalLatency] = buckets
	}

	return s
}

// bucketIndex maps d onto the 10ms..1s bucket bounds; index 7 is overflow.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 10:
		return 0
	case ms <= 25:
		return 1
	case ms <= 50:
		return 2
	case ms <= 100:
		return 3
	case ms <= 250:
		return 4
	case ms <= 500:
		return 5
	case ms <= 1000:
		return 6
	default:
		return 7
	}
}
