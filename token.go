package goRenew

import (
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// heldToken is an access token captured from a renewal or login response.
// expiresAt is zero when the token is opaque or carries no exp claim.
type heldToken struct {
	value     string
	expiresAt time.Time
}

// tokenHolder keeps the current bearer token in process memory only.
type tokenHolder struct {
	current atomic.Pointer[heldToken]
	parser  *jwt.Parser
}

func newTokenHolder() *tokenHolder {
	return &tokenHolder{parser: jwt.NewParser()}
}

// Set replaces the held token. The server is the only verifier; the
// signature is not checked here and exp is read for scheduling only.
func (h *tokenHolder) Set(value string) {
	if value == "" {
		h.Clear()
		return
	}
	t := &heldToken{value: value}
	claims := jwt.RegisteredClaims{}
	if _, _, err := h.parser.ParseUnverified(value, &claims); err == nil && claims.ExpiresAt != nil {
		t.expiresAt = claims.ExpiresAt.Time
	}
	h.current.Store(t)
}

func (h *tokenHolder) Clear() {
	h.current.Store(nil)
}

// Value returns the held token or "".
func (h *tokenHolder) Value() string {
	if t := h.current.Load(); t != nil {
		return t.value
	}
	return ""
}

// ExpiresWithin reports whether the held token has a known expiry that
// falls within window of now.
func (h *tokenHolder) ExpiresWithin(now time.Time, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	t := h.current.Load()
	if t == nil || t.expiresAt.IsZero() {
		return false
	}
	return !now.Add(window).Before(t.expiresAt)
}
