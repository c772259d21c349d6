package goRenew

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "resilient preset",
			mutate: func(c *Config) {
				*c = ResilientConfig()
			},
			wantValid: true,
		},
		{
			name: "base url valid",
			mutate: func(c *Config) {
				c.BaseURL = "https://api.example.com/v1"
			},
			wantValid: true,
		},
		{
			name: "base url without host",
			mutate: func(c *Config) {
				c.BaseURL = "https://"
			},
			wantValid: false,
		},
		{
			name: "base url bad scheme",
			mutate: func(c *Config) {
				c.BaseURL = "ftp://files.example.com"
			},
			wantValid: false,
		},
		{
			name: "renewal timeout disabled",
			mutate: func(c *Config) {
				c.Renewal.Timeout = 0
			},
			wantValid: true,
		},
		{
			name: "renewal timeout negative",
			mutate: func(c *Config) {
				c.Renewal.Timeout = -time.Second
			},
			wantValid: false,
		},
		{
			name: "renewal path relative without slash",
			mutate: func(c *Config) {
				c.Renewal.Path = "auth/refresh"
			},
			wantValid: false,
		},
		{
			name: "renewal path absolute url",
			mutate: func(c *Config) {
				c.Renewal.Path = "https://auth.example.com/session/renew"
			},
			wantValid: true,
		},
		{
			name: "renewal method unsupported",
			mutate: func(c *Config) {
				c.Renewal.Method = "TRACE"
			},
			wantValid: false,
		},
		{
			name: "logout equals renewal",
			mutate: func(c *Config) {
				c.Logout.Path = "/auth/refresh/"
			},
			wantValid: false,
		},
		{
			name: "renew on empty",
			mutate: func(c *Config) {
				c.Classifier.RenewOnStatus = nil
			},
			wantValid: false,
		},
		{
			name: "renew on 5xx",
			mutate: func(c *Config) {
				c.Classifier.RenewOnStatus = []int{401, 503}
			},
			wantValid: false,
		},
		{
			name: "renew on 419",
			mutate: func(c *Config) {
				c.Classifier.RenewOnStatus = []int{401, 419}
			},
			wantValid: true,
		},
		{
			name: "exempt path relative",
			mutate: func(c *Config) {
				c.Classifier.ExemptPaths = []string{"auth/me"}
			},
			wantValid: false,
		},
		{
			name: "breaker without failures",
			mutate: func(c *Config) {
				c.Renewal.Breaker.Enabled = true
				c.Renewal.Breaker.ConsecutiveFailures = 0
			},
			wantValid: false,
		},
		{
			name: "breaker without open timeout",
			mutate: func(c *Config) {
				c.Renewal.Breaker.Enabled = true
				c.Renewal.Breaker.Timeout = 0
			},
			wantValid: false,
		},
		{
			name: "proactive window negative",
			mutate: func(c *Config) {
				c.Token.ProactiveWindow = -time.Second
			},
			wantValid: false,
		},
		{
			name: "token header blank",
			mutate: func(c *Config) {
				c.Token.Header = "  "
			},
			wantValid: false,
		},
		{
			name: "max response bytes zero",
			mutate: func(c *Config) {
				c.Transport.MaxResponseBytes = 0
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigDetachesSlices(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Classifier.ExemptPaths = []string{"/auth/me"}

	out := cloneConfig(cfg)
	cfg.Classifier.RenewOnStatus[0] = 419
	cfg.Classifier.ExemptPaths[0] = "/other"

	if out.Classifier.RenewOnStatus[0] != 401 || out.Classifier.ExemptPaths[0] != "/auth/me" {
		t.Fatalf("clone shares slices with source: %+v", out.Classifier)
	}
}
