package flows

// Kind classifies a finished call.
type Kind int

const (
	// KindPassthrough is returned to the caller unchanged.
	KindPassthrough Kind = iota
	// KindAuthExpired suspends the call behind a session renewal.
	KindAuthExpired
	// KindAuthRejected is an expired-session status on a call that was
	// already replayed. It is final.
	KindAuthRejected
)

func (k Kind) String() string {
	switch k {
	case KindPassthrough:
		return "passthrough"
	case KindAuthExpired:
		return "auth_expired"
	case KindAuthRejected:
		return "auth_rejected"
	default:
		return "unknown"
	}
}

// Rules captures classifier configuration. Paths must already be cleaned
// with [CleanPath].
type Rules struct {
	RenewOnStatus []int
	RenewalPath   string
	LogoutPath    string
	ExemptPaths   []string
}

// StatusFunc extracts an HTTP status code from a dispatch error.
type StatusFunc func(error) (int, bool)

// Classify decides what happens to call given its dispatch error.
//
// Only a status listed in rules.RenewOnStatus can start a renewal, and only
// for a call that is not exempt, has never been replayed, and does not
// target the renewal or logout endpoint.
func Classify(call *Call, err error, rules Rules, statusOf StatusFunc) Kind {
	if err == nil || statusOf == nil {
		return KindPassthrough
	}
	status, ok := statusOf(err)
	if !ok || !rules.renewsOn(status) {
		return KindPassthrough
	}
	if call.Exempt || rules.Excluded(call.Path) {
		return KindPassthrough
	}
	if call.Retried() {
		return KindAuthRejected
	}
	return KindAuthExpired
}

func (r Rules) renewsOn(status int) bool {
	for _, s := range r.RenewOnStatus {
		if s == status {
			return true
		}
	}
	return false
}

// Excluded reports whether the cleaned path p is never renewed: the renewal
// and logout endpoints and every exempt path.
func (r Rules) Excluded(p string) bool {
	if p == r.RenewalPath || p == r.LogoutPath {
		return true
	}
	for _, e := range r.ExemptPaths {
		if p == e {
			return true
		}
	}
	return false
}
