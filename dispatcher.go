package goRenew

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Dispatcher sends one request and reports its outcome. Implementations
// must not retry and must return responses with status >= 400 as
// *StatusError so that expired sessions can be recognized.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (*Response, error)
}

// HTTPDispatcher is the default Dispatcher. Session cookies travel through
// the client's cookie jar on every call, including renewal and logout.
type HTTPDispatcher struct {
	client *http.Client
	base   *url.URL
	cfg    TransportConfig
	token  TokenConfig
	held   *tokenHolder
	log    *slog.Logger
}

// NewHTTPDispatcher returns a dispatcher sending through client and
// resolving relative URLs against cfg.BaseURL. It does not attach a bearer
// token; clients built by [Builder] do.
func NewHTTPDispatcher(client *http.Client, cfg Config, logger *slog.Logger) (*HTTPDispatcher, error) {
	return newHTTPDispatcher(client, cfg, nil, logger)
}

func newHTTPDispatcher(client *http.Client, cfg Config, held *tokenHolder, logger *slog.Logger) (*HTTPDispatcher, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Transport.MaxResponseBytes <= 0 {
		cfg.Transport.MaxResponseBytes = defaultConfig().Transport.MaxResponseBytes
	}
	d := &HTTPDispatcher{
		client: client,
		cfg:    cfg.Transport,
		token:  cfg.Token,
		held:   held,
		log:    logger,
	}
	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		d.base = base
	}
	return d, nil
}

// Resolve returns the absolute form of rawURL.
func (d *HTTPDispatcher) Resolve(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if d.base != nil {
		u = d.base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("%w: relative url %q without BaseURL", ErrInvalidRequest, rawURL)
	}
	return u.String(), nil
}

// Dispatch sends req once.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, req Request) (*Response, error) {
	target, err := d.Resolve(req.URL)
	if err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok && d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if d.cfg.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	requestID := requestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if d.cfg.RequestIDHeader != "" && httpReq.Header.Get(d.cfg.RequestIDHeader) == "" {
		httpReq.Header.Set(d.cfg.RequestIDHeader, requestID)
	}
	if d.held != nil && httpReq.Header.Get(d.token.Header) == "" {
		if tok := d.held.Value(); tok != "" {
			if d.token.Scheme != "" {
				tok = d.token.Scheme + " " + tok
			}
			httpReq.Header.Set(d.token.Header, tok)
		}
	}

	start := time.Now()
	rsp, err := d.client.Do(httpReq)
	if err != nil {
		d.log.DebugContext(ctx, "renew.dispatch.fail",
			slog.String("method", req.Method),
			slog.String("url", target),
			slog.String("request_id", requestID),
			slog.String("err", err.Error()),
		)
		return nil, err
	}
	defer rsp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(rsp.Body, d.cfg.MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	d.log.DebugContext(ctx, "renew.dispatch",
		slog.String("method", req.Method),
		slog.String("url", target),
		slog.String("request_id", requestID),
		slog.Int("status", rsp.StatusCode),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
	)

	if rsp.StatusCode >= 400 {
		return nil, &StatusError{
			Method:     req.Method,
			URL:        target,
			StatusCode: rsp.StatusCode,
			Header:     rsp.Header,
			Body:       data,
			RequestID:  requestID,
		}
	}

	return &Response{
		StatusCode: rsp.StatusCode,
		Header:     rsp.Header,
		Body:       data,
		RequestID:  requestID,
	}, nil
}
