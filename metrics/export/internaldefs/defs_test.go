package internaldefs

import (
	"strings"
	"testing"

	goRenew "github.com/MrEthical07/goRenew"
)

func TestCounterDefsUniqueAndSuffixed(t *testing.T) {
	seen := make(map[string]bool, len(CounterDefs))
	ids := make(map[uint16]bool, len(CounterDefs))
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "gorenew_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %q", def.Name)
		}
		if seen[def.Name] || ids[uint16(def.ID)] {
			t.Fatalf("duplicate counter %q", def.Name)
		}
		seen[def.Name] = true
		ids[uint16(def.ID)] = true
		if def.Help == "" {
			t.Fatalf("counter %q has no help text", def.Name)
		}
	}
}

func TestBucketShapes(t *testing.T) {
	if len(HistogramUpperBounds)+1 != len(HistogramBoundSuffix) {
		t.Fatalf("bounds %d and suffixes %d disagree", len(HistogramUpperBounds), len(HistogramBoundSuffix))
	}

	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestStateDefs(t *testing.T) {
	st := goRenew.ClientState{
		Refreshing:     true,
		Waiting:        4,
		AuditDelivered: 9,
		AuditDropped:   2,
	}
	want := map[string]int64{
		"gorenew_waiters":               4,
		"gorenew_renewal_in_flight":     1,
		"gorenew_session_invalidated":   0,
		"gorenew_audit_delivered_total": 9,
		"gorenew_audit_dropped_total":   2,
	}
	if len(StateDefs) != len(want) {
		t.Fatalf("expected %d state defs, got %d", len(want), len(StateDefs))
	}
	for _, def := range StateDefs {
		if def.Monotonic != strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("%s: _total suffix and Monotonic disagree", def.Name)
		}
		if got := def.Value(st); got != want[def.Name] {
			t.Fatalf("%s = %d, want %d", def.Name, got, want[def.Name])
		}
	}
}
