package goRenew

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goRenew/internal/flows"
	"github.com/MrEthical07/goRenew/internal/renewal"
	"github.com/google/uuid"
)

// Client sends application requests and hides session renewal from its
// callers. Build one with [New]; a Client is safe for concurrent use.
type Client struct {
	config     Config
	base       *url.URL
	dispatcher Dispatcher
	coord      *renewal.Coordinator
	flows      flows.Service
	token      *tokenHolder
	latch      *SessionLatch
	onLost     SessionLostFunc
	audit      *auditDispatcher
	metrics    *Metrics
	log        *slog.Logger
	closed     atomic.Bool
}

// Do sends req. When the server reports an expired session, Do waits for a
// single shared renewal and returns the outcome of replaying req once. When
// renewal fails, Do returns the renewal's *RenewalError and req is not
// replayed. Every other outcome is returned unchanged.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c == nil || !c.flows.Initialized() || c.closed.Load() {
		return nil, ErrClientNotReady
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	req = req.clone()

	id := requestIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = WithRequestID(ctx, id)
	}
	exempt := req.SkipRenewal || renewalExemptFromContext(ctx)
	call := flows.NewCall(id, req.Method, c.resolve(req.URL), exempt)

	if c.flows.Renewable(call) {
		if err := c.renewEarly(ctx); err != nil {
			return nil, err
		}
	}

	var resp *Response
	res := c.flows.Do(ctx, call, func(ctx context.Context, call *flows.Call) error {
		r, err := c.dispatch(ctx, call, req)
		resp = r
		return err
	})
	if res.Err != nil {
		return nil, res.Err
	}
	if resp != nil {
		resp.Replayed = call.Retried()
	}
	return resp, nil
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: url})
}

// Post sends a POST request with body.
func (c *Client) Post(ctx context.Context, url string, body []byte) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, URL: url, Body: body})
}

// Put sends a PUT request with body.
func (c *Client) Put(ctx context.Context, url string, body []byte) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, URL: url, Body: body})
}

// Patch sends a PATCH request with body.
func (c *Client) Patch(ctx context.Context, url string, body []byte) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, URL: url, Body: body})
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, URL: url})
}

// DoJSON encodes in (when non-nil) as the request body and decodes the
// response body into out (when non-nil).
func (c *Client) DoJSON(ctx context.Context, method, url string, in, out any) error {
	req := Request{Method: method, URL: url, Header: http.Header{}}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		req.Body = body
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.DecodeJSON(out)
}

// Probe sends an exempt GET, typically the boot-time "who am I" call. An
// expired session is reported to the caller instead of being renewed.
func (c *Client) Probe(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: path, SkipRenewal: true})
}

// Logout calls the logout endpoint and drops the held bearer token. The call
// is never renewed.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil || !c.flows.Initialized() || c.closed.Load() {
		return ErrClientNotReady
	}
	err := c.flows.Logout(ctx)
	c.metricInc(MetricLogout)
	c.emitAudit(ctx, auditEventLogout, err == nil, nil, err, nil)
	return err
}

// SetAccessToken stores a bearer token obtained outside the client, e.g.
// from a login response. An empty token clears it.
func (c *Client) SetAccessToken(token string) {
	if c == nil {
		return
	}
	c.token.Set(token)
}

// SessionInvalidated reports whether the session-lost side effect fired.
func (c *Client) SessionInvalidated() bool {
	return c != nil && c.latch.Invalidated()
}

// Refreshing reports whether a renewal is in flight.
func (c *Client) Refreshing() bool {
	return c != nil && c.coord != nil && c.coord.Refreshing()
}

// Waiting returns how many requests are suspended behind the in-flight
// renewal.
func (c *Client) Waiting() int {
	if c == nil || c.coord == nil {
		return 0
	}
	return c.coord.Pending()
}

// Close stops audit delivery. Requests after Close fail with
// ErrClientNotReady.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closed.Store(true)
	if c.audit != nil {
		c.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (c *Client) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

// AuditDelivered returns how many audit events reached the sink.
func (c *Client) AuditDelivered() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Delivered()
}

// ClientState is a point-in-time view of the renewal machinery.
type ClientState struct {
	Refreshing         bool
	Waiting            int
	SessionInvalidated bool
	AuditDelivered     uint64
	AuditDropped       uint64
}

// State reads the live coordinator and audit state. Fields are read one at a
// time, so a renewal settling concurrently can show up in some and not others.
func (c *Client) State() ClientState {
	return ClientState{
		Refreshing:         c.Refreshing(),
		Waiting:            c.Waiting(),
		SessionInvalidated: c.SessionInvalidated(),
		AuditDelivered:     c.AuditDelivered(),
		AuditDropped:       c.AuditDropped(),
	}
}

// MetricsSnapshot returns a copy of the client counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

func (c *Client) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Client) dispatch(ctx context.Context, call *flows.Call, req Request) (*Response, error) {
	c.metricInc(MetricRequestDispatched)
	resp, err := c.dispatcher.Dispatch(ctx, req)
	if err != nil {
		c.metricInc(MetricRequestFailed)
		if call.Exempt {
			if code, ok := StatusOf(err); ok && c.config.renewsOn(code) {
				c.metricInc(MetricExemptPassthrough)
			}
		}
	}
	return resp, err
}

// renewEarly joins the single-flight renewal when the held bearer token is
// about to expire.
func (c *Client) renewEarly(ctx context.Context) error {
	window := c.config.Token.ProactiveWindow
	if !c.token.ExpiresWithin(time.Now(), window) {
		return nil
	}
	c.metricInc(MetricProactiveRenewal)
	c.log.DebugContext(ctx, "renew.proactive", slog.Duration("window", window))
	_, err := c.coord.Await(ctx, c.coord.Epoch())
	return err
}

// renewOnce is the coordinator's renewal function.
func (c *Client) renewOnce(ctx context.Context) error {
	res := c.flows.Renew(ctx)
	if res.Err == nil {
		if !res.TokenUpdated && c.token.ExpiresWithin(time.Now(), c.config.Token.ProactiveWindow) {
			// Renewal did not replace the token; drop it so it cannot
			// trigger another proactive renewal on the next request.
			c.token.Clear()
		}
		return nil
	}

	if res.Failure == flows.RenewFailureTimeout {
		c.metricInc(MetricRenewalTimeout)
	}
	var re *RenewalError
	if res.Failure != flows.RenewFailureTimeout && errors.As(res.Err, &re) {
		return re
	}
	return &RenewalError{
		StatusCode: res.StatusCode,
		Body:       res.Body,
		Err:        res.Err,
	}
}

func (c *Client) resolve(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if c.base != nil {
		u = c.base.ResolveReference(u)
	}
	return u.String()
}

func (cfg Config) renewsOn(code int) bool {
	for _, s := range cfg.Classifier.RenewOnStatus {
		if s == code {
			return true
		}
	}
	return false
}
