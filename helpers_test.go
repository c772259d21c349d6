package goRenew

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/MrEthical07/goRenew/internal/authtest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthServer(t *testing.T, opts authtest.Options) *authtest.Server {
	t.Helper()
	srv, err := authtest.NewServer(opts)
	if err != nil {
		t.Fatalf("authtest.NewServer: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(base string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = base
	cfg.Renewal.Timeout = 2 * time.Second
	cfg.Classifier.ExemptPaths = []string{authtest.LoginPath}
	return cfg
}

// buildClient builds a client against srv. configure may adjust the config
// and the builder before Build.
func buildClient(t *testing.T, srv *authtest.Server, configure func(*Config, *Builder)) *Client {
	t.Helper()
	cfg := testConfig(srv.URL())
	b := New().WithLogger(discardLogger())
	if configure != nil {
		configure(&cfg, b)
	}
	c, err := b.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func login(t *testing.T, c *Client, srv *authtest.Server) {
	t.Helper()
	var out struct {
		AccessToken string `json:"access_token"`
	}
	err := c.DoJSON(context.Background(), "POST", authtest.LoginPath, map[string]string{
		"username": srv.Username(),
		"password": srv.Password(),
	}, &out)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if out.AccessToken == "" {
		t.Fatal("login returned no access token")
	}
	c.SetAccessToken(out.AccessToken)
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
