package flows

import (
	"context"

	"github.com/MrEthical07/goRenew/internal/renewal"
)

// DispatchFunc sends the call once. The response value stays with the
// caller's closure; flows only see the error.
type DispatchFunc func(ctx context.Context, call *Call) error

// DoDeps captures dependencies of the request path.
type DoDeps struct {
	Rules    Rules
	StatusOf StatusFunc
	Epoch    func() uint64
	Await    func(ctx context.Context, epoch uint64) (renewal.Role, error)

	// Optional observers.
	Expired  func(ctx context.Context, call *Call)
	Rejected func(ctx context.Context, call *Call, role renewal.Role, err error)
	Replayed func(ctx context.Context, call *Call, role renewal.Role, res ReplayResult)
}

// DoResult reports how a call finished.
type DoResult struct {
	Err  error
	Kind Kind
	// Renewed is set when the call was suspended behind a renewal.
	Renewed bool
	Role    renewal.Role
}

// ReplayResult is the outcome of the single replay of a call.
type ReplayResult struct {
	Err  error
	Kind Kind
}

// RunDo dispatches call, classifies the outcome and, for an expired session,
// suspends the call behind the single-flight renewal and replays it once.
//
// When renewal fails, the renewal error is returned unchanged and no replay
// happens.
func RunDo(ctx context.Context, call *Call, dispatch DispatchFunc, deps DoDeps) DoResult {
	if deps.Epoch != nil {
		call.Epoch = deps.Epoch()
	}

	err := dispatch(ctx, call)
	kind := Classify(call, err, deps.Rules, deps.StatusOf)
	if kind != KindAuthExpired {
		return DoResult{Err: err, Kind: kind}
	}

	if deps.Expired != nil {
		deps.Expired(ctx, call)
	}

	role, renewErr := deps.Await(ctx, call.Epoch)
	if renewErr != nil {
		if deps.Rejected != nil {
			deps.Rejected(ctx, call, role, renewErr)
		}
		return DoResult{Err: renewErr, Kind: KindAuthExpired, Renewed: true, Role: role}
	}

	res := RunReplay(ctx, call, dispatch, deps)
	if deps.Replayed != nil {
		deps.Replayed(ctx, call, role, res)
	}
	return DoResult{Err: res.Err, Kind: res.Kind, Renewed: true, Role: role}
}

// RunReplay marks call retried and dispatches it exactly once. An
// expired-session status on the replay classifies as [KindAuthRejected] and
// is never routed back to the coordinator.
func RunReplay(ctx context.Context, call *Call, dispatch DispatchFunc, deps DoDeps) ReplayResult {
	call.MarkRetried()
	err := dispatch(ctx, call)
	return ReplayResult{
		Err:  err,
		Kind: Classify(call, err, deps.Rules, deps.StatusOf),
	}
}
