package flows

import (
	"errors"
	"testing"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string { return "status" }

func statusOf(err error) (int, bool) {
	var se *statusErr
	if errors.As(err, &se) {
		return se.code, true
	}
	return 0, false
}

func testRules() Rules {
	return Rules{
		RenewOnStatus: []int{401},
		RenewalPath:   "/auth/refresh",
		LogoutPath:    "/auth/logout",
		ExemptPaths:   []string{"/auth/me"},
	}
}

func TestClassify(t *testing.T) {
	retried := NewCall("r", "GET", "https://api.example.com/api/items", false)
	retried.MarkRetried()

	tests := []struct {
		name string
		call *Call
		err  error
		want Kind
	}{
		{"success", NewCall("1", "GET", "/api/items", false), nil, KindPassthrough},
		{"server error", NewCall("2", "GET", "/api/items", false), &statusErr{500}, KindPassthrough},
		{"forbidden", NewCall("3", "GET", "/api/items", false), &statusErr{403}, KindPassthrough},
		{"transport error", NewCall("4", "GET", "/api/items", false), errors.New("dial tcp: refused"), KindPassthrough},
		{"expired", NewCall("5", "GET", "https://api.example.com/api/items?page=2", false), &statusErr{401}, KindAuthExpired},
		{"exempt flag", NewCall("6", "GET", "/api/items", true), &statusErr{401}, KindPassthrough},
		{"renewal endpoint", NewCall("7", "POST", "https://api.example.com/auth/refresh", false), &statusErr{401}, KindPassthrough},
		{"renewal endpoint trailing slash", NewCall("8", "POST", "/auth/refresh/", false), &statusErr{401}, KindPassthrough},
		{"logout endpoint", NewCall("9", "POST", "/auth/logout?all=1", false), &statusErr{401}, KindPassthrough},
		{"exempt path", NewCall("10", "GET", "/auth/me", false), &statusErr{401}, KindPassthrough},
		{"similar path is not excluded", NewCall("11", "POST", "/auth/refresh-tokens", false), &statusErr{401}, KindAuthExpired},
		{"already retried", retried, &statusErr{401}, KindAuthRejected},
		{"wrapped status", NewCall("12", "GET", "/api/items", false), wrap(&statusErr{401}), KindAuthExpired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.call, tc.err, testRules(), statusOf); got != tc.want {
				t.Fatalf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassifyCustomStatuses(t *testing.T) {
	rules := testRules()
	rules.RenewOnStatus = []int{401, 419}

	call := NewCall("1", "GET", "/api/items", false)
	if got := Classify(call, &statusErr{419}, rules, statusOf); got != KindAuthExpired {
		t.Fatalf("expected 419 to renew, got %s", got)
	}
}

func TestServiceRenewable(t *testing.T) {
	svc := New(Deps{Do: DoDeps{Rules: testRules()}})

	tests := []struct {
		name string
		call *Call
		want bool
	}{
		{"api", NewCall("1", "GET", "/api/items", false), true},
		{"exempt flag", NewCall("2", "GET", "/api/items", true), false},
		{"renewal endpoint", NewCall("3", "POST", "https://api.example.com/auth/refresh", false), false},
		{"logout endpoint", NewCall("4", "POST", "/auth/logout/", false), false},
		{"exempt path", NewCall("5", "GET", "/auth/me?x=1", false), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := svc.Renewable(tc.call); got != tc.want {
				t.Fatalf("Renewable() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "/"},
		{"/", "/"},
		{"/auth/refresh/", "/auth/refresh"},
		{"auth/refresh", "/auth/refresh"},
		{"https://x.test/auth/refresh?a=b#c", "/auth/refresh"},
		{"/api/../auth/logout", "/auth/logout"},
		{"http://x.test", "/"},
	}
	for _, tc := range tests {
		if got := CleanPath(tc.in); got != tc.want {
			t.Fatalf("CleanPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMarkRetriedOnlyIncrements(t *testing.T) {
	call := NewCall("1", "GET", "/api/items", false)
	if call.Retried() {
		t.Fatal("new call must not be retried")
	}
	call.MarkRetried()
	call.MarkRetried()
	if call.Retries() != 2 || !call.Retried() {
		t.Fatalf("unexpected retries: %d", call.Retries())
	}
}

type wrapped struct{ err error }

func (w wrapped) Error() string { return "wrapped: " + w.err.Error() }
func (w wrapped) Unwrap() error { return w.err }

func wrap(err error) error { return wrapped{err: err} }
