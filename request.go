package goRenew

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Request is one application request. Body is held in memory so the request
// can be replayed after a session renewal.
type Request struct {
	Method string
	// URL is absolute, or relative to Config.BaseURL.
	URL    string
	Header http.Header
	Body   []byte

	// SkipRenewal exempts the request from session renewal.
	SkipRenewal bool
}

// Response is a buffered response with a status below 400.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
	// Replayed is set when the response came from the replay that followed a
	// session renewal.
	Replayed bool
}

// DecodeJSON unmarshals the response body into v. An empty body leaves v
// untouched.
func (r *Response) DecodeJSON(v any) error {
	if r == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (r Request) validate() error {
	if r.Method == "" {
		return fmt.Errorf("%w: missing method", ErrInvalidRequest)
	}
	if r.URL == "" {
		return fmt.Errorf("%w: missing url", ErrInvalidRequest)
	}
	return nil
}

// clone copies r so dispatch never shares header maps with the caller.
func (r Request) clone() Request {
	out := r
	if r.Header != nil {
		out.Header = r.Header.Clone()
	}
	return out
}
