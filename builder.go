package goRenew

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/MrEthical07/goRenew/internal/flows"
	"github.com/MrEthical07/goRenew/internal/renewal"
)

// Builder assembles a [Client].
//
// Builder instances are configured during initialization and produce a
// single Client; Build fails with ErrBuilderUsed on reuse.
type Builder struct {
	config Config

	httpClient *http.Client
	dispatcher Dispatcher
	renewer    Renewer

	latch  *SessionLatch
	onLost SessionLostFunc

	logger    *slog.Logger
	auditSink AuditSink

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets Config.BaseURL.
func (b *Builder) WithBaseURL(base string) *Builder {
	b.config.BaseURL = base
	return b
}

// WithHTTPClient sets the client used by the default dispatcher. The client
// is copied; a cookie jar is added to the copy when it has none, since the
// renewal credential usually travels as a cookie.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithDispatcher replaces the HTTP dispatcher. Custom dispatchers receive
// the renewal request too and are responsible for any bearer token.
func (b *Builder) WithDispatcher(d Dispatcher) *Builder {
	b.dispatcher = d
	return b
}

// WithRenewer replaces the default renewal call.
func (b *Builder) WithRenewer(r Renewer) *Builder {
	b.renewer = r
	return b
}

// WithSessionLatch shares a session-lost latch between clients.
func (b *Builder) WithSessionLatch(l *SessionLatch) *Builder {
	b.latch = l
	return b
}

// OnSessionInvalidated registers the session-lost side effect. It runs at
// most once per latch.
func (b *Builder) OnSessionInvalidated(fn SessionLostFunc) *Builder {
	b.onLost = fn
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit event destination. Events are only delivered
// when Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the renewal latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		config:  cfg,
		token:   newTokenHolder(),
		latch:   b.latch,
		onLost:  b.onLost,
		metrics: NewMetrics(cfg.Metrics),
		log:     logger,
	}
	if c.latch == nil {
		c.latch = NewSessionLatch()
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	c.base = base

	c.dispatcher = b.dispatcher
	if c.dispatcher == nil {
		hc, err := prepareHTTPClient(b.httpClient)
		if err != nil {
			return nil, err
		}
		d, err := newHTTPDispatcher(hc, cfg, c.token, logger)
		if err != nil {
			return nil, err
		}
		c.dispatcher = d
	}

	if cfg.Audit.Enabled {
		c.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	}

	c.coord = renewal.New(c.renewOnce, c.coordinatorHooks())
	c.flows = flows.New(c.flowDeps(b.renewer))

	b.built = true
	return c, nil
}

func prepareHTTPClient(hc *http.Client) (*http.Client, error) {
	if hc == nil {
		hc = &http.Client{}
	}
	copied := *hc
	if copied.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		copied.Jar = jar
	}
	return &copied, nil
}

func (c *Client) flowDeps(custom Renewer) flows.Deps {
	cfg := c.config

	renew := flows.RenewDeps{
		Timeout:      cfg.Renewal.Timeout,
		TimeoutError: ErrRenewalTimeout,
		TokenField:   cfg.Renewal.AccessTokenField,
		StoreToken:   c.token.Set,
	}
	if custom != nil {
		renew.Send = customSend(custom)
	} else {
		renew.Send = (&endpointRenewer{d: c.dispatcher, cfg: cfg.Renewal}).send
	}
	if cfg.Renewal.Breaker.Enabled {
		renew.Guard = breakerGuard(newRenewalBreaker(cfg.Renewal.Breaker, c.log))
		renew.IsOpen = breakerOpen
	}

	return flows.Deps{
		Do: flows.DoDeps{
			Rules: flows.Rules{
				RenewOnStatus: cfg.Classifier.RenewOnStatus,
				RenewalPath:   flows.CleanPath(cfg.Renewal.Path),
				LogoutPath:    flows.CleanPath(cfg.Logout.Path),
				ExemptPaths:   cleanPaths(cfg.Classifier.ExemptPaths),
			},
			StatusOf: StatusOf,
			Epoch:    c.coord.Epoch,
			Await:    c.coord.Await,
			Expired:  c.onExpired,
			Rejected: c.onRejected,
			Replayed: c.onReplayed,
		},
		Renew: renew,
		Logout: flows.LogoutDeps{
			Send: func(ctx context.Context) error {
				_, err := c.dispatcher.Dispatch(ctx, Request{
					Method:      cfg.Logout.Method,
					URL:         cfg.Logout.Path,
					SkipRenewal: true,
				})
				return err
			},
			ClearToken: c.token.Clear,
		},
	}
}

func cleanPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, flows.CleanPath(p))
	}
	return out
}

func (c *Client) coordinatorHooks() renewal.Hooks {
	return renewal.Hooks{
		Started: func(ctx context.Context) {
			c.metricInc(MetricRenewalStarted)
			c.emitAudit(ctx, auditEventRenewalStarted, true, nil, nil, nil)
			c.log.InfoContext(ctx, "renew.renewal.start")
		},
		Queued: func(ctx context.Context, seq uint64, depth int) {
			c.metricInc(MetricWaiterQueued)
			c.emitAudit(ctx, auditEventWaiterQueued, true, nil, nil, func() map[string]string {
				return map[string]string{
					"seq":   strconv.FormatUint(seq, 10),
					"depth": strconv.Itoa(depth),
				}
			})
			c.log.DebugContext(ctx, "renew.waiter.queued",
				slog.Uint64("seq", seq),
				slog.Int("depth", depth),
			)
		},
		Released: func(ctx context.Context, seq uint64, err error) {
			if err != nil {
				c.metricInc(MetricWaiterRejected)
				return
			}
			c.metricInc(MetricWaiterReleased)
		},
		Settled: func(ctx context.Context, err error, waiters int, elapsed time.Duration) {
			if c.metrics != nil {
				c.metrics.Observe(MetricRenewalLatency, elapsed)
			}
			if err != nil {
				c.metricInc(MetricRenewalFailure)
				c.emitAudit(ctx, auditEventRenewalFailed, false, nil, err, waitersMetadata(waiters))
				c.log.WarnContext(ctx, "renew.renewal.fail",
					slog.String("err", err.Error()),
					slog.Int("waiters", waiters),
					slog.Duration("elapsed", elapsed),
				)
				return
			}
			c.metricInc(MetricRenewalSuccess)
			c.emitAudit(ctx, auditEventRenewalSucceeded, true, nil, nil, waitersMetadata(waiters))
			c.log.InfoContext(ctx, "renew.renewal.ok",
				slog.Int("waiters", waiters),
				slog.Duration("elapsed", elapsed),
			)
		},
		Failed: c.invalidate,
	}
}

func (c *Client) onExpired(ctx context.Context, call *flows.Call) {
	c.metricInc(MetricAuthExpired)
	c.emitAudit(ctx, auditEventAuthExpired, false, call, nil, nil)
	c.log.DebugContext(ctx, "renew.dispatch.expired",
		slog.String("request_id", call.ID),
		slog.String("path", call.Path),
	)
}

func (c *Client) onRejected(ctx context.Context, call *flows.Call, role renewal.Role, err error) {
	switch {
	case role == renewal.RoleWaiter && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && ctx.Err() != nil:
		c.metricInc(MetricWaiterCancelled)
	case role == renewal.RoleStale:
		c.metricInc(MetricStaleReplay)
		c.emitAudit(ctx, auditEventStaleReplay, false, call, err, nil)
	}
	c.log.DebugContext(ctx, "renew.dispatch.rejected",
		slog.String("request_id", call.ID),
		slog.String("role", role.String()),
		slog.String("err", err.Error()),
	)
}

func (c *Client) onReplayed(ctx context.Context, call *flows.Call, role renewal.Role, res flows.ReplayResult) {
	switch role {
	case renewal.RoleStale:
		c.metricInc(MetricStaleReplay)
		c.emitAudit(ctx, auditEventStaleReplay, true, call, nil, nil)
	case renewal.RoleWaiter:
		c.emitAudit(ctx, auditEventWaiterReleased, true, call, nil, nil)
	}

	switch {
	case res.Kind == flows.KindAuthRejected:
		c.metricInc(MetricReplayRejected)
		c.emitAudit(ctx, auditEventReplayRejected, false, call, res.Err, nil)
		c.log.WarnContext(ctx, "renew.replay.rejected",
			slog.String("request_id", call.ID),
			slog.String("path", call.Path),
		)
	case res.Err != nil:
		c.metricInc(MetricReplayFailure)
	default:
		c.metricInc(MetricReplaySuccess)
	}
}
