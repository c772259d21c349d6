package goRenew

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/goRenew/internal/authtest"
)

func TestSessionLatchSharedAcrossClients(t *testing.T) {
	srv := newAuthServer(t, authtest.Options{})
	latch := NewSessionLatch()

	var lost atomic.Int64
	var cause atomic.Value
	onLost := func(_ context.Context, err error) {
		lost.Add(1)
		cause.Store(err)
	}

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = buildClient(t, srv, func(_ *Config, b *Builder) {
			b.WithSessionLatch(latch).OnSessionInvalidated(onLost)
		})
		login(t, clients[i], srv)
	}

	if err := srv.EndSessions(); err != nil {
		t.Fatalf("EndSessions: %v", err)
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func(c *Client) {
				defer wg.Done()
				_, err := c.Get(context.Background(), "/api/items")
				if !IsSessionExpired(err) {
					t.Errorf("expected session expired, got %v", err)
				}
			}(c)
		}
	}
	wg.Wait()

	if got := lost.Load(); got != 1 {
		t.Fatalf("expected one session-lost callback across clients, got %d", got)
	}
	if !latch.Invalidated() {
		t.Fatal("expected latch to be set")
	}
	for i, c := range clients {
		if !c.SessionInvalidated() {
			t.Fatalf("client %d does not report the shared invalidation", i)
		}
	}

	var re *RenewalError
	err, _ := cause.Load().(error)
	if !errors.As(err, &re) || re.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected the renewal error as cause, got %v", err)
	}
}

func TestInvalidationClearsHeldToken(t *testing.T) {
	srv := newAuthServer(t, authtest.Options{})
	c := buildClient(t, srv, nil)
	login(t, c, srv)

	if c.token.Value() == "" {
		t.Fatal("expected a held token after login")
	}
	if err := srv.EndSessions(); err != nil {
		t.Fatalf("EndSessions: %v", err)
	}
	if _, err := c.Get(context.Background(), "/api/items"); !IsSessionExpired(err) {
		t.Fatalf("expected session expired, got %v", err)
	}
	if c.token.Value() != "" {
		t.Fatal("expected token cleared on invalidation")
	}
	if got := c.MetricsSnapshot().Counters[MetricSessionInvalidated]; got != 1 {
		t.Fatalf("expected one invalidation, got %d", got)
	}

	// The latch never re-arms; a later failure is not reported again.
	if _, err := c.Get(context.Background(), "/api/items"); !IsSessionExpired(err) {
		t.Fatalf("expected session expired, got %v", err)
	}
	if got := c.MetricsSnapshot().Counters[MetricSessionInvalidated]; got != 1 {
		t.Fatalf("expected invalidation to stay at one, got %d", got)
	}
}

func TestNilLatchIsNotInvalidated(t *testing.T) {
	var l *SessionLatch
	if l.Invalidated() {
		t.Fatal("nil latch must report false")
	}
}
