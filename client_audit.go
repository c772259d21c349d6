package goRenew

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/goRenew/internal/flows"
)

const (
	auditEventAuthExpired        = "auth_expired"
	auditEventRenewalStarted     = "renewal_started"
	auditEventRenewalSucceeded   = "renewal_succeeded"
	auditEventRenewalFailed      = "renewal_failed"
	auditEventWaiterQueued       = "waiter_queued"
	auditEventWaiterReleased     = "waiter_released"
	auditEventReplayRejected     = "replay_rejected"
	auditEventSessionInvalidated = "session_invalidated"
	auditEventStaleReplay        = "stale_replay"
	auditEventLogout             = "logout"
)

// AuditErrorCode is the stable, secret-free error label put on audit events.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrHTTPStatus         AuditErrorCode = "http_status"
	auditErrRenewalRejected    AuditErrorCode = "renewal_rejected"
	auditErrRenewalUnavailable AuditErrorCode = "renewal_unavailable"
	auditErrRenewalTimeout     AuditErrorCode = "renewal_timeout"
	auditErrBreakerOpen        AuditErrorCode = "breaker_open"
	auditErrContextDone        AuditErrorCode = "context_done"
	auditErrTransport          AuditErrorCode = "transport_error"
)

func (c *Client) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	call *flows.Call,
	err error,
	metadataBuilder func() map[string]string,
) {
	if c == nil || c.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Success:   success,
		Metadata:  metadata,
	}
	if call != nil {
		event.RequestID = call.ID
		event.Method = call.Method
		event.Path = call.Path
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	c.audit.Emit(ctx, event)
}

func waitersMetadata(n int) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"waiters": strconv.Itoa(n)}
	}
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRenewalTimeout):
		return auditErrRenewalTimeout
	case breakerOpen(err):
		return auditErrBreakerOpen
	}

	var re *RenewalError
	if errors.As(err, &re) {
		switch {
		case re.StatusCode >= 500:
			return auditErrRenewalUnavailable
		case re.StatusCode >= 400:
			return auditErrRenewalRejected
		}
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrContextDone
	}

	if code, ok := StatusOf(err); ok {
		if code == 401 {
			return auditErrUnauthorized
		}
		return auditErrHTTPStatus
	}
	return auditErrTransport
}
