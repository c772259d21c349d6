package goRenew

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goRenew/internal/flows"
)

// Config controls a Client. Build one from [DefaultConfig] and adjust it;
// the Builder validates and copies it, so later mutation has no effect.
type Config struct {
	// BaseURL resolves relative request URLs and endpoint paths. It may be
	// empty when every request URL is absolute.
	BaseURL    string
	Transport  TransportConfig
	Renewal    RenewalConfig
	Logout     LogoutConfig
	Classifier ClassifierConfig
	Token      TokenConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig controls the default HTTP dispatcher.
type TransportConfig struct {
	// Timeout bounds each dispatch when the caller's ctx has no deadline.
	// Zero disables it.
	Timeout          time.Duration
	UserAgent        string
	MaxResponseBytes int64
	// RequestIDHeader carries the per-request ID. Empty disables it.
	RequestIDHeader string
}

/*
====================================
RENEWAL CONFIG
====================================
*/

// RenewalConfig describes the renewal endpoint.
type RenewalConfig struct {
	Path   string
	Method string
	// Timeout bounds one renewal call. Zero disables it, in which case a
	// renewal that never returns keeps every waiter suspended.
	Timeout time.Duration
	// AccessTokenField names the JSON field of a 2xx renewal body that holds
	// a new bearer token. Empty disables token capture.
	AccessTokenField string
	Breaker          BreakerConfig
}

// BreakerConfig wraps the renewal call in a circuit breaker. While open,
// renewals fail immediately without reaching the server.
type BreakerConfig struct {
	Enabled             bool
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// LogoutConfig describes the logout endpoint. Logout calls are never renewed.
type LogoutConfig struct {
	Path   string
	Method string
}

/*
====================================
CLASSIFIER CONFIG
====================================
*/

// ClassifierConfig decides which failures start a renewal.
type ClassifierConfig struct {
	RenewOnStatus []int
	// ExemptPaths are never renewed, in addition to the renewal and logout
	// endpoints.
	ExemptPaths []string
}

// TokenConfig controls the in-memory bearer token. Cookie-only servers never
// populate it and the Authorization header is not sent.
type TokenConfig struct {
	Header string
	Scheme string
	// ProactiveWindow renews before a request when the held token expires
	// within the window. Zero disables proactive renewal.
	ProactiveWindow time.Duration
}

// AuditConfig controls asynchronous audit event delivery.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Transport: TransportConfig{
			Timeout:          30 * time.Second,
			UserAgent:        "goRenew/1",
			MaxResponseBytes: 4 << 20,
			RequestIDHeader:  "X-Request-ID",
		},
		Renewal: RenewalConfig{
			Path:             "/auth/refresh",
			Method:           http.MethodPost,
			Timeout:          15 * time.Second,
			AccessTokenField: "access_token",
			Breaker: BreakerConfig{
				Enabled:             false,
				MaxRequests:         1,
				Interval:            time.Minute,
				Timeout:             30 * time.Second,
				ConsecutiveFailures: 3,
			},
		},
		Logout: LogoutConfig{
			Path:   "/auth/logout",
			Method: http.MethodPost,
		},
		Classifier: ClassifierConfig{
			RenewOnStatus: []int{http.StatusUnauthorized},
		},
		Token: TokenConfig{
			Header: "Authorization",
			Scheme: "Bearer",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns a cookie-session configuration targeting
// POST /auth/refresh and POST /auth/logout.
func DefaultConfig() Config {
	return defaultConfig()
}

// ResilientConfig returns DefaultConfig with a renewal circuit breaker,
// proactive renewal, latency histograms and a shorter renewal timeout.
func ResilientConfig() Config {
	cfg := defaultConfig()
	cfg.Renewal.Timeout = 10 * time.Second
	cfg.Renewal.Breaker.Enabled = true
	cfg.Token.ProactiveWindow = 30 * time.Second
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Audit.Enabled = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Classifier.RenewOnStatus = append([]int(nil), cfg.Classifier.RenewOnStatus...)
	out.Classifier.ExemptPaths = append([]string(nil), cfg.Classifier.ExemptPaths...)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("BaseURL is invalid: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("BaseURL scheme must be http or https")
		}
		if u.Host == "" {
			return errors.New("BaseURL must include a host")
		}
	}

	// Transport
	if c.Transport.Timeout < 0 {
		return errors.New("Transport Timeout must be >= 0")
	}
	if c.Transport.MaxResponseBytes <= 0 {
		return errors.New("Transport MaxResponseBytes must be > 0")
	}

	// Renewal
	if err := validateEndpoint("Renewal", c.Renewal.Path, c.Renewal.Method); err != nil {
		return err
	}
	if c.Renewal.Timeout < 0 {
		return errors.New("Renewal Timeout must be >= 0")
	}
	if c.Renewal.Breaker.Enabled {
		if c.Renewal.Breaker.ConsecutiveFailures < 1 {
			return errors.New("Renewal Breaker ConsecutiveFailures must be >= 1")
		}
		if c.Renewal.Breaker.Timeout <= 0 {
			return errors.New("Renewal Breaker Timeout must be > 0")
		}
		if c.Renewal.Breaker.Interval < 0 {
			return errors.New("Renewal Breaker Interval must be >= 0")
		}
	}

	// Logout
	if err := validateEndpoint("Logout", c.Logout.Path, c.Logout.Method); err != nil {
		return err
	}
	if flows.CleanPath(c.Logout.Path) == flows.CleanPath(c.Renewal.Path) {
		return errors.New("Logout Path must differ from Renewal Path")
	}

	// Classifier
	if len(c.Classifier.RenewOnStatus) == 0 {
		return errors.New("Classifier RenewOnStatus must not be empty")
	}
	for _, code := range c.Classifier.RenewOnStatus {
		if code < 400 || code > 499 {
			return fmt.Errorf("Classifier RenewOnStatus %d must be a 4xx status", code)
		}
	}
	for _, p := range c.Classifier.ExemptPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("Classifier ExemptPaths entry %q must start with /", p)
		}
	}

	// Token
	if strings.TrimSpace(c.Token.Header) == "" {
		return errors.New("Token Header must not be empty")
	}
	if c.Token.ProactiveWindow < 0 {
		return errors.New("Token ProactiveWindow must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func validateEndpoint(name, path, method string) error {
	if path == "" {
		return fmt.Errorf("%s Path must not be empty", name)
	}
	if !strings.HasPrefix(path, "/") {
		u, err := url.Parse(path)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("%s Path must start with / or be an absolute URL", name)
		}
	}
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return nil
	default:
		return fmt.Errorf("%s Method %q is not supported", name, method)
	}
}
