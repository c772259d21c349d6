package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrRenewStatus marks a renewal response outside the 2xx range.
var ErrRenewStatus = errors.New("unexpected renewal status")

// RenewStatusError carries the non-2xx status of a renewal response.
type RenewStatusError struct {
	StatusCode int
}

func (e *RenewStatusError) Error() string {
	return fmt.Sprintf("%v %d", ErrRenewStatus, e.StatusCode)
}

func (e *RenewStatusError) Is(target error) bool {
	return target == ErrRenewStatus
}

// RenewFailureKind classifies renewal failures for root-level mapping.
type RenewFailureKind int

const (
	RenewFailureNone RenewFailureKind = iota
	RenewFailureTransport
	RenewFailureStatus
	RenewFailureTimeout
	RenewFailureOpen
)

// RenewDeps captures renewal call dependencies.
type RenewDeps struct {
	// Send performs the renewal request and reports the response status and
	// body. Non-2xx responses are not errors at this level.
	Send func(ctx context.Context) (int, []byte, error)
	// Guard optionally wraps the attempt, e.g. in a circuit breaker.
	Guard func(attempt func() error) error
	// IsOpen reports whether a Guard error means the guard refused the call.
	IsOpen       func(error) bool
	Timeout      time.Duration
	TimeoutError error
	TokenField   string
	StoreToken   func(string)
}

// RenewResult carries the renewal outcome.
type RenewResult struct {
	Failure    RenewFailureKind
	Err        error
	StatusCode int
	Body       []byte
	// TokenUpdated is set when a bearer token was captured from the body.
	TokenUpdated bool
}

// RunRenew performs exactly one renewal call. A Timeout of zero leaves the
// call bounded only by ctx.
func RunRenew(ctx context.Context, deps RenewDeps) RenewResult {
	if deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.Timeout)
		defer cancel()
	}

	var res RenewResult
	attempt := func() error {
		status, body, err := deps.Send(ctx)
		res.StatusCode = status
		res.Body = body
		if err != nil {
			return err
		}
		if status < 200 || status > 299 {
			return &RenewStatusError{StatusCode: status}
		}
		return nil
	}

	var err error
	if deps.Guard != nil {
		err = deps.Guard(attempt)
	} else {
		err = attempt()
	}

	switch {
	case err == nil:
		res.TokenUpdated = storeToken(res.Body, deps)
		return res
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Failure = RenewFailureTimeout
		if deps.TimeoutError != nil {
			res.Err = fmt.Errorf("%w: %w", deps.TimeoutError, ctx.Err())
		} else {
			res.Err = ctx.Err()
		}
	case deps.IsOpen != nil && deps.IsOpen(err):
		res.Failure = RenewFailureOpen
		res.Err = err
	case errors.Is(err, ErrRenewStatus):
		res.Failure = RenewFailureStatus
		res.Err = err
	default:
		res.Failure = RenewFailureTransport
		res.Err = err
	}
	return res
}

func storeToken(body []byte, deps RenewDeps) bool {
	if deps.TokenField == "" || deps.StoreToken == nil || len(body) == 0 {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}
	raw, ok := fields[deps.TokenField]
	if !ok {
		return false
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil || token == "" {
		return false
	}
	deps.StoreToken(token)
	return true
}
