package goRenew

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
		Subject:   "alice",
	})
	s, err := tok.SignedString([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestTokenHolderReadsExpiry(t *testing.T) {
	now := time.Now()
	h := newTokenHolder()
	h.Set(signedToken(t, now.Add(20*time.Second)))

	if !h.ExpiresWithin(now, 30*time.Second) {
		t.Fatal("expected token to be inside the window")
	}
	if h.ExpiresWithin(now, 10*time.Second) {
		t.Fatal("expected token to be outside the window")
	}
	if h.ExpiresWithin(now, 0) {
		t.Fatal("zero window disables proactive renewal")
	}
}

func TestTokenHolderOpaqueTokenNeverProactive(t *testing.T) {
	h := newTokenHolder()
	h.Set("opaque-session-token")

	if h.Value() != "opaque-session-token" {
		t.Fatalf("unexpected value %q", h.Value())
	}
	if h.ExpiresWithin(time.Now(), time.Hour) {
		t.Fatal("opaque token has no known expiry")
	}
}

func TestTokenHolderClear(t *testing.T) {
	h := newTokenHolder()
	h.Set(signedToken(t, time.Now().Add(time.Minute)))
	h.Clear()
	if h.Value() != "" || h.ExpiresWithin(time.Now(), time.Hour) {
		t.Fatal("expected cleared holder")
	}
	h.Set("x")
	h.Set("")
	if h.Value() != "" {
		t.Fatal("empty Set must clear")
	}
}
