package main

import (
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    int
		want time.Duration
	}{
		{p: 0, want: 1},
		{p: 50, want: 5},
		{p: 95, want: 9},
		{p: 100, want: 10},
	}
	for _, tt := range tests {
		if got := percentile(samples, tt.p); got != tt.want {
			t.Fatalf("p%d: expected %v, got %v", tt.p, tt.want, got)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("expected 0 for no samples, got %v", got)
	}
}

func TestComputeStatsSortsSamples(t *testing.T) {
	s := computeStats(time.Second, []time.Duration{30, 10, 20}, 1)
	if s.ops != 3 || s.failures != 1 || s.p50 != 20 || s.p99 != 20 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if empty := computeStats(time.Second, nil, 0); empty.ops != 0 {
		t.Fatalf("expected empty stats, got %+v", empty)
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("RENEW_TEST_KEY", "")
	if got := envOr("RENEW_TEST_KEY", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("RENEW_TEST_KEY", "set")
	if got := envOr("RENEW_TEST_KEY", "fallback"); got != "set" {
		t.Fatalf("expected env value, got %q", got)
	}
}
