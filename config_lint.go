package goRenew

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is a valid but risky setting.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult lists warnings in detection order.
type LintResult []LintWarning

// Codes returns the warning codes.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError returns an error listing every warning at or above min, or nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint reports settings that pass Validate but are likely mistakes.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
			add("cleartext_base_url", LintHigh, "session cookies and tokens are sent without TLS")
		}
	}

	if c.Renewal.Timeout == 0 {
		add("renewal_timeout_disabled", LintWarn, "a renewal that never returns suspends every waiting request")
	} else if c.Transport.Timeout > 0 && c.Renewal.Timeout > c.Transport.Timeout {
		add("renewal_timeout_exceeds_transport", LintInfo, "the transport timeout cuts the renewal call first")
	}

	if c.Token.ProactiveWindow > 5*time.Minute {
		add("proactive_window_large", LintWarn, "tokens are renewed long before they expire")
	}

	for _, code := range c.Classifier.RenewOnStatus {
		if code == 403 {
			add("renew_on_forbidden", LintHigh, "403 means the session is valid but not allowed; renewing cannot fix it")
		}
	}

	if c.Renewal.Breaker.Enabled && c.Renewal.Breaker.ConsecutiveFailures == 1 {
		add("breaker_trips_on_first_failure", LintWarn, "a single failed renewal opens the breaker")
	}

	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "renewal and invalidation events are not recorded")
	}

	return ws
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
