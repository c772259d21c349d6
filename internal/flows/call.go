package flows

import (
	"net/url"
	"path"
	"strings"
)

// Call is the per-request bookkeeping carried through dispatch, renewal and
// replay. The caller's request value is never mutated; retry state lives here.
type Call struct {
	ID     string
	Method string
	Path   string
	Exempt bool

	// Epoch is the coordinator epoch observed right before dispatch.
	Epoch   uint64
	retries int
}

// NewCall returns a call for method and the absolute or relative rawURL.
func NewCall(id, method, rawURL string, exempt bool) *Call {
	return &Call{
		ID:     id,
		Method: method,
		Path:   CleanPath(rawURL),
		Exempt: exempt,
	}
}

// Retries returns how many times the call has been replayed.
func (c *Call) Retries() int {
	return c.retries
}

// Retried reports whether the call has already been replayed once.
func (c *Call) Retried() bool {
	return c.retries > 0
}

// MarkRetried records one replay. The counter only ever increments.
func (c *Call) MarkRetried() {
	c.retries++
}

// CleanPath reduces rawURL to a comparable path: query and fragment dropped,
// dot segments resolved, trailing slash trimmed.
func CleanPath(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
