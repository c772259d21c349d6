package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	goRenew "github.com/MrEthical07/goRenew"
)

// RoundTripper sends requests through a goRenew Client.
type RoundTripper struct {
	client *goRenew.Client
}

// New returns a RoundTripper backed by client.
func New(client *goRenew.Client) *RoundTripper {
	return &RoundTripper{client: client}
}

// NewHTTPClient returns an *http.Client whose transport is New(client).
// Cookies are handled by client's own jar, so the returned client has none.
func NewHTTPClient(client *goRenew.Client) *http.Client {
	return &http.Client{Transport: New(client)}
}

// RoundTrip implements http.RoundTripper.
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt == nil || rt.client == nil {
		return nil, goRenew.ErrClientNotReady
	}

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		body = b
	}

	resp, err := rt.client.Do(req.Context(), goRenew.Request{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})
	if err != nil {
		var se *goRenew.StatusError
		if errors.As(err, &se) && !errors.Is(err, goRenew.ErrRenewalFailed) {
			return newResponse(req, se.StatusCode, se.Header, se.Body), nil
		}
		return nil, err
	}
	return newResponse(req, resp.StatusCode, resp.Header, resp.Body), nil
}

func newResponse(req *http.Request, status int, header http.Header, body []byte) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
