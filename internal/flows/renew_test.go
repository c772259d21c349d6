package flows

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTestTimeout = errors.New("renewal timed out")

func TestRunRenewCapturesAccessToken(t *testing.T) {
	var stored string
	res := RunRenew(context.Background(), RenewDeps{
		Send: func(context.Context) (int, []byte, error) {
			return 200, []byte(`{"access_token":"abc.def.ghi","expires_in":900}`), nil
		},
		TokenField: "access_token",
		StoreToken: func(tok string) { stored = tok },
	})
	if res.Err != nil || res.Failure != RenewFailureNone {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if !res.TokenUpdated || stored != "abc.def.ghi" {
		t.Fatalf("expected token capture, got %q", stored)
	}
}

func TestRunRenewEmptyBodyIsSuccess(t *testing.T) {
	res := RunRenew(context.Background(), RenewDeps{
		Send:       func(context.Context) (int, []byte, error) { return 204, nil, nil },
		TokenField: "access_token",
		StoreToken: func(string) { t.Fatal("nothing to store") },
	})
	if res.Err != nil || res.TokenUpdated {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunRenewStatusFailure(t *testing.T) {
	for _, status := range []int{302, 401, 403, 500, 503} {
		res := RunRenew(context.Background(), RenewDeps{
			Send: func(context.Context) (int, []byte, error) { return status, []byte("nope"), nil },
		})
		if res.Failure != RenewFailureStatus || !errors.Is(res.Err, ErrRenewStatus) {
			t.Fatalf("status %d: unexpected result %+v", status, res)
		}
		if res.StatusCode != status || string(res.Body) != "nope" {
			t.Fatalf("status %d: response not carried: %+v", status, res)
		}
	}
}

func TestRunRenewTransportFailure(t *testing.T) {
	dial := errors.New("dial tcp: connection refused")
	res := RunRenew(context.Background(), RenewDeps{
		Send: func(context.Context) (int, []byte, error) { return 0, nil, dial },
	})
	if res.Failure != RenewFailureTransport || res.Err != dial {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunRenewTimeout(t *testing.T) {
	res := RunRenew(context.Background(), RenewDeps{
		Send: func(ctx context.Context) (int, []byte, error) {
			<-ctx.Done()
			return 0, nil, ctx.Err()
		},
		Timeout:      20 * time.Millisecond,
		TimeoutError: errTestTimeout,
	})
	if res.Failure != RenewFailureTimeout {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if !errors.Is(res.Err, errTestTimeout) || !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("timeout error must match both sentinels, got %v", res.Err)
	}
}

func TestRunRenewGuardOpen(t *testing.T) {
	open := errors.New("circuit breaker is open")
	res := RunRenew(context.Background(), RenewDeps{
		Send: func(context.Context) (int, []byte, error) {
			t.Fatal("guard must short-circuit the call")
			return 0, nil, nil
		},
		Guard:  func(func() error) error { return open },
		IsOpen: func(err error) bool { return err == open },
	})
	if res.Failure != RenewFailureOpen || res.Err != open {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunLogoutClearsTokenOnFailure(t *testing.T) {
	cleared := false
	down := errors.New("connection reset")
	err := RunLogout(context.Background(), LogoutDeps{
		Send:       func(context.Context) error { return down },
		ClearToken: func() { cleared = true },
	})
	if err != down || !cleared {
		t.Fatalf("expected error passthrough and cleared token, got err=%v cleared=%v", err, cleared)
	}
}
