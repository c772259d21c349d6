// Package authtest runs a small cookie-session authentication backend for
// tests, the load-test command and the examples.
//
// Sessions live in an in-process Redis (miniredis) accessed through
// go-redis. Each session carries a rotating refresh secret and a generation
// number; access tokens are short-lived HS256 JWTs bound to the session
// generation, so bumping the generation expires every outstanding access
// token at once.
//
// The server exposes fault injection hooks (ExpireAccess, FailRenewals,
// HangRenewals) so callers can drive a client through renewal, renewal
// failure and stale-response paths deterministically.
package authtest
