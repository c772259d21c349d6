package flows

import "context"

// Service is the centralized flow runner built once by the root client.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Do.Await != nil && s.deps.Renew.Send != nil
}

func (s Service) Do(ctx context.Context, call *Call, dispatch DispatchFunc) DoResult {
	return RunDo(ctx, call, dispatch, s.deps.Do)
}

func (s Service) Renew(ctx context.Context) RenewResult {
	return RunRenew(ctx, s.deps.Renew)
}

func (s Service) Logout(ctx context.Context) error {
	return RunLogout(ctx, s.deps.Logout)
}

// Renewable reports whether call may start or join a renewal at all.
func (s Service) Renewable(call *Call) bool {
	return !call.Exempt && !s.deps.Do.Rules.Excluded(call.Path)
}
