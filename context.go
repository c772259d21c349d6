package goRenew

import "context"

type renewalExemptContextKey struct{}
type requestIDContextKey struct{}

// WithRenewalExempt marks every request sent with ctx as exempt from session
// renewal. An expired-session status on an exempt request is returned to the
// caller unchanged. Use it for boot-time session probes and for the calls a
// login screen makes before a session exists.
func WithRenewalExempt(ctx context.Context) context.Context {
	return context.WithValue(ctx, renewalExemptContextKey{}, true)
}

// WithRequestID attaches a caller-chosen request identifier. It is sent as
// the X-Request-ID header and reported in logs and audit events. Requests
// without one get a random UUID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func renewalExemptFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}

	exempt, _ := ctx.Value(renewalExemptContextKey{}).(bool)
	return exempt
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
