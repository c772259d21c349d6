// Package transport adapts a goRenew Client to http.RoundTripper so code
// written against *http.Client gets transparent session renewal.
//
// Request bodies are read fully before the first attempt so they can be
// replayed. Responses with status >= 400 are returned as responses, not
// errors, following the RoundTripper contract; a failed renewal is returned
// as an error matching goRenew.ErrRenewalFailed.
package transport
