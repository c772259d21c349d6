package goRenew

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/goRenew/internal/renewal"
)

// SessionLatch records that the session was lost. It is set at most once and
// never reset. Clients built with the same latch share one session-lost side
// effect, which makes the guarantee process-wide.
type SessionLatch struct {
	l renewal.Latch
}

// NewSessionLatch returns an unset latch.
func NewSessionLatch() *SessionLatch {
	return &SessionLatch{}
}

// Invalidated reports whether the session-lost side effect has fired.
func (s *SessionLatch) Invalidated() bool {
	return s != nil && s.l.Tripped()
}

// SessionLostFunc is the session-lost side effect, e.g. sending the user to
// the sign-in screen. err is the renewal error that caused it.
type SessionLostFunc func(ctx context.Context, err error)

// invalidate runs after every waiter of a failed renewal was rejected. Only
// the call that sets the latch performs the side effect.
func (c *Client) invalidate(ctx context.Context, cause error) {
	if cause == nil {
		cause = ErrSessionInvalidated
	}
	if !c.latch.l.Trip() {
		c.log.DebugContext(ctx, "renew.session.invalidated.repeat", slog.String("err", cause.Error()))
		return
	}

	c.token.Clear()
	c.metricInc(MetricSessionInvalidated)
	c.emitAudit(ctx, auditEventSessionInvalidated, false, nil, cause, nil)
	c.log.WarnContext(ctx, "renew.session.invalidated", slog.String("err", cause.Error()))

	if c.onLost != nil {
		c.onLost(ctx, cause)
	}
}
