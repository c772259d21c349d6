package goRenew

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/goRenew/internal/flows"
	"github.com/sony/gobreaker"
)

// Renewer performs one session renewal call. A nil error means the session
// was renewed and requests may be replayed.
//
// Clients built without [Builder.WithRenewer] call the configured renewal
// endpoint through their own Dispatcher, so the renewal carries the session
// cookie.
type Renewer interface {
	Renew(ctx context.Context) error
}

// RenewerFunc adapts a function to [Renewer].
type RenewerFunc func(ctx context.Context) error

// Renew calls f(ctx).
func (f RenewerFunc) Renew(ctx context.Context) error { return f(ctx) }

// endpointRenewer sends the configured renewal request through a Dispatcher.
type endpointRenewer struct {
	d   Dispatcher
	cfg RenewalConfig
}

func (r *endpointRenewer) send(ctx context.Context) (int, []byte, error) {
	resp, err := r.d.Dispatch(ctx, Request{
		Method:      r.cfg.Method,
		URL:         r.cfg.Path,
		SkipRenewal: true,
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return se.StatusCode, se.Body, nil
		}
		return 0, nil, err
	}
	return resp.StatusCode, resp.Body, nil
}

// NewEndpointRenewer returns a Renewer that sends cfg's renewal request
// through d. Use it to compose the default renewal with custom logic, or to
// renew against a separate authentication host. Failures are *RenewalError.
func NewEndpointRenewer(d Dispatcher, cfg RenewalConfig) Renewer {
	return &endpointRenewer{d: d, cfg: cfg}
}

func (r *endpointRenewer) Renew(ctx context.Context) error {
	status, body, err := r.send(ctx)
	if err != nil {
		return &RenewalError{Err: err}
	}
	if status < 200 || status > 299 {
		return &RenewalError{StatusCode: status, Body: body, Err: &flows.RenewStatusError{StatusCode: status}}
	}
	return nil
}

// customSend adapts a caller-supplied Renewer to the renewal flow.
func customSend(r Renewer) func(context.Context) (int, []byte, error) {
	return func(ctx context.Context) (int, []byte, error) {
		if err := r.Renew(ctx); err != nil {
			return 0, nil, err
		}
		return http.StatusNoContent, nil, nil
	}
}

// newRenewalBreaker counts transport failures and 5xx responses. A 4xx
// renewal response means the server is healthy and the session is gone, so
// it does not move the breaker.
func newRenewalBreaker(cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.ConsecutiveFailures
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "goRenew.renewal",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *flows.RenewStatusError
			return errors.As(err, &se) && se.StatusCode < 500
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("renew.breaker.state",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

func breakerGuard(cb *gobreaker.CircuitBreaker) func(func() error) error {
	return func(attempt func() error) error {
		_, err := cb.Execute(func() (interface{}, error) {
			return nil, attempt()
		})
		return err
	}
}

func breakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
