package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	goRenew "github.com/MrEthical07/goRenew"
	"github.com/MrEthical07/goRenew/internal/authtest"
)

func setup(t *testing.T) (*authtest.Server, *goRenew.Client, *http.Client) {
	t.Helper()
	srv, err := authtest.NewServer(authtest.Options{})
	if err != nil {
		t.Fatalf("authtest.NewServer: %v", err)
	}
	t.Cleanup(srv.Close)

	cfg := goRenew.DefaultConfig()
	cfg.BaseURL = srv.URL()
	cfg.Classifier.ExemptPaths = []string{authtest.LoginPath}
	rc, err := goRenew.New().
		WithConfig(cfg).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(rc.Close)

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := rc.DoJSON(context.Background(), http.MethodPost, authtest.LoginPath, map[string]string{
		"username": srv.Username(),
		"password": srv.Password(),
	}, &out); err != nil {
		t.Fatalf("login: %v", err)
	}
	rc.SetAccessToken(out.AccessToken)

	return srv, rc, NewHTTPClient(rc)
}

func TestRoundTripRenewsAndReplaysBody(t *testing.T) {
	srv, _, hc := setup(t)
	if err := srv.ExpireAccess(); err != nil {
		t.Fatalf("ExpireAccess: %v", err)
	}

	resp, err := hc.Post(srv.URL()+"/api/notes", "application/json", bytes.NewReader([]byte(`{"n":1}`)))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var echo map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&echo); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if echo["body"] != `{"n":1}` {
		t.Fatalf("expected replayed body, got %q", echo["body"])
	}
	if got := srv.RenewalCount(); got != 1 {
		t.Fatalf("expected one renewal, got %d", got)
	}
}

func TestRoundTripReturnsErrorStatusesAsResponses(t *testing.T) {
	srv, _, hc := setup(t)

	resp, err := hc.Get(srv.URL() + "/api/boom")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 response, got %d", resp.StatusCode)
	}
	if resp.Request == nil || resp.Request.URL.Path != "/api/boom" {
		t.Fatal("expected response to reference its request")
	}
}

func TestRoundTripRenewalFailureIsAnError(t *testing.T) {
	srv, rc, hc := setup(t)
	if err := srv.EndSessions(); err != nil {
		t.Fatalf("EndSessions: %v", err)
	}

	_, err := hc.Get(srv.URL() + "/api/items")
	if !errors.Is(err, goRenew.ErrRenewalFailed) {
		t.Fatalf("expected renewal failure, got %v", err)
	}
	if !rc.SessionInvalidated() {
		t.Fatal("expected session invalidated")
	}
}

func TestNilRoundTripper(t *testing.T) {
	var rt *RoundTripper
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	if _, err := rt.RoundTrip(req); !errors.Is(err, goRenew.ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
}
