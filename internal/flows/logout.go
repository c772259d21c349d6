package flows

import "context"

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Send       func(ctx context.Context) error
	ClearToken func()
}

// RunLogout calls the logout endpoint once and always drops the held bearer
// token, even when the server could not be reached.
func RunLogout(ctx context.Context, deps LogoutDeps) error {
	err := deps.Send(ctx)
	if deps.ClearToken != nil {
		deps.ClearToken()
	}
	return err
}
