package authtest

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// RefreshCookie carries "<session id>.<refresh secret>".
	RefreshCookie = "refresh_token"
	// AccessCookie mirrors the access token returned in JSON bodies.
	AccessCookie = "access_token"

	LoginPath   = "/auth/login"
	RefreshPath = "/auth/refresh"
	LogoutPath  = "/auth/logout"
	MePath      = "/auth/me"

	// SlowPrefix marks API paths subject to DelayAPI.
	SlowPrefix = "/api/slow"
)

// Options configures a Server. Zero values take defaults.
type Options struct {
	Username   string
	Password   string
	AccessTTL  time.Duration
	SessionTTL time.Duration
	SigningKey []byte
}

func (o *Options) setDefaults() error {
	if o.Username == "" {
		o.Username = "demo"
	}
	if o.Password == "" {
		o.Password = "correct-horse-battery"
	}
	if o.AccessTTL <= 0 {
		o.AccessTTL = 5 * time.Minute
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 24 * time.Hour
	}
	if len(o.SigningKey) == 0 {
		o.SigningKey = make([]byte, 32)
		if _, err := rand.Read(o.SigningKey); err != nil {
			return fmt.Errorf("generate signing key: %w", err)
		}
	}
	return nil
}

// Server is a running reference backend.
type Server struct {
	opts   Options
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	store  *store
	tokens *issuer
	http   *httptest.Server

	failStatus atomic.Int64
	hang       atomic.Int64
	apiDelay   atomic.Int64
}

// NewServer starts a backend with one user account.
func NewServer(opts Options) (*Server, error) {
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("start miniredis: %w", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := &Server{
		opts:  opts,
		mr:    mr,
		rdb:   rdb,
		store: &store{rdb: rdb, ttl: opts.SessionTTL},
		tokens: &issuer{
			key:    opts.SigningKey,
			ttl:    opts.AccessTTL,
			issuer: "authtest",
			now:    time.Now,
		},
	}

	hash, err := hashPassword(opts.Password)
	if err != nil {
		s.closeStores()
		return nil, err
	}
	if err := s.store.putUser(context.Background(), opts.Username, hash); err != nil {
		s.closeStores()
		return nil, fmt.Errorf("seed user: %w", err)
	}

	s.http = httptest.NewServer(s.routes())
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+LoginPath, s.handleLogin)
	mux.HandleFunc("POST "+RefreshPath, s.handleRefresh)
	mux.HandleFunc("POST "+LogoutPath, s.handleLogout)
	mux.HandleFunc("GET "+MePath, s.handleMe)
	mux.HandleFunc("/api/", s.handleAPI)
	return s.count(mux)
}

// URL returns the base URL, e.g. "http://127.0.0.1:41234".
func (s *Server) URL() string { return s.http.URL }

// Username returns the seeded account name.
func (s *Server) Username() string { return s.opts.Username }

// Password returns the seeded account password.
func (s *Server) Password() string { return s.opts.Password }

// Close stops the HTTP server and the Redis instance.
func (s *Server) Close() {
	s.http.Close()
	s.closeStores()
}

func (s *Server) closeStores() {
	_ = s.rdb.Close()
	s.mr.Close()
}

// ExpireAccess invalidates every outstanding access token. Refresh secrets
// stay valid, so the next renewal succeeds.
func (s *Server) ExpireAccess() error {
	return s.store.bumpAll(context.Background())
}

// EndSessions deletes every session. Access tokens and renewals fail with
// 401 afterwards.
func (s *Server) EndSessions() error {
	return s.store.deleteAll(context.Background())
}

// FailRenewals makes the refresh endpoint answer with status. Zero restores
// normal behavior.
func (s *Server) FailRenewals(status int) { s.failStatus.Store(int64(status)) }

// HangRenewals delays the refresh endpoint by d before it does anything.
func (s *Server) HangRenewals(d time.Duration) { s.hang.Store(int64(d)) }

// DelayAPI delays requests under SlowPrefix by d before the access token is
// checked.
func (s *Server) DelayAPI(d time.Duration) { s.apiDelay.Store(int64(d)) }

// Reset clears fault injection and counters.
func (s *Server) Reset() error {
	s.failStatus.Store(0)
	s.hang.Store(0)
	s.apiDelay.Store(0)
	return s.store.resetCounts(context.Background())
}

// RenewalCount returns how many refresh requests reached the server.
func (s *Server) RenewalCount() int64 {
	return s.RequestCount(RefreshPath)
}

// RequestCount returns how many requests for path reached the server.
func (s *Server) RequestCount(path string) int64 {
	return s.store.count(context.Background(), "req:"+path)
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.store.incr(r.Context(), "req:"+r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	hash, err := s.store.userHash(r.Context(), req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if hash == "" {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	ok, err := verifyPassword(req.Password, hash)
	if err != nil || !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sid := uuid.NewString()
	secret, err := newSecret()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "entropy unavailable")
		return
	}
	if err := s.store.create(r.Context(), sid, req.Username, hashSecret(secret)); err != nil {
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	s.writeTokens(w, sid, 1, secret)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if d := time.Duration(s.hang.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}
	if status := int(s.failStatus.Load()); status != 0 {
		writeError(w, status, "renewal unavailable")
		return
	}

	sid, secret, ok := readRefreshCookie(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}
	next, err := newSecret()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "entropy unavailable")
		return
	}

	gen, err := s.store.rotate(r.Context(), sid, hashSecret(secret), hashSecret(next))
	switch {
	case errors.Is(err, errNoSession), errors.Is(err, errRefreshReused):
		clearCookies(w)
		writeError(w, http.StatusUnauthorized, "session expired")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	s.writeTokens(w, sid, gen, next)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sid, _, ok := readRefreshCookie(r); ok {
		if err := s.store.delete(r.Context(), sid); err != nil {
			writeError(w, http.StatusInternalServerError, "store unavailable")
			return
		}
	}
	clearCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sid, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := s.store.user(r.Context(), sid)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sid": sid, "user": user})
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if d := time.Duration(s.apiDelay.Load()); d > 0 && strings.HasPrefix(r.URL.Path, SlowPrefix) {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	if r.URL.Path == "/api/boom" {
		writeError(w, http.StatusInternalServerError, "boom")
		return
	}

	sid, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.URL.Path == "/api/forbidden" {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	writeJSON(w, http.StatusOK, map[string]string{
		"method": r.Method,
		"path":   r.URL.Path,
		"sid":    sid,
		"body":   string(body),
	})
}

// authenticate accepts the access token from the Authorization header or
// the access cookie. The token's generation must match the session's.
func (s *Server) authenticate(r *http.Request) (string, bool) {
	raw := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		raw = strings.TrimPrefix(h, "Bearer ")
	} else if c, err := r.Cookie(AccessCookie); err == nil {
		raw = c.Value
	}
	if raw == "" {
		return "", false
	}

	claims, err := s.tokens.parse(raw)
	if err != nil {
		return "", false
	}
	gen, err := s.store.generation(r.Context(), claims.SID)
	if err != nil || gen != claims.Gen {
		return "", false
	}
	return claims.SID, true
}

func (s *Server) writeTokens(w http.ResponseWriter, sid string, gen int64, secret string) {
	access, err := s.tokens.issue(sid, gen)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign failed")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    sid + "." + secret,
		Path:     "/auth",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.opts.SessionTTL.Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    access,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.opts.AccessTTL.Seconds()),
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: access,
		ExpiresIn:   int64(s.opts.AccessTTL.Seconds()),
	})
}

func readRefreshCookie(r *http.Request) (sid, secret string, ok bool) {
	c, err := r.Cookie(RefreshCookie)
	if err != nil {
		return "", "", false
	}
	sid, secret, ok = strings.Cut(c.Value, ".")
	if !ok || sid == "" || secret == "" {
		return "", "", false
	}
	return sid, secret, true
}

func clearCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Path: "/auth", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: AccessCookie, Path: "/", MaxAge: -1})
}

func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
