package audit

import "fmt"

// LoginResult classifies an audit record. It is a closed set: every switch over
// it in this module lists all values, and TestLoginResultClassificationIsExhaustive
// fails when a new value is added without being classified.
type LoginResult string

const (
	ResultSuccess                LoginResult = "success"
	ResultUserNotFound           LoginResult = "user_not_found"
	ResultInvalidCredentials     LoginResult = "invalid_credentials"
	ResultAccountLocked          LoginResult = "account_locked"
	ResultAccountDisabled        LoginResult = "account_disabled"
	ResultTooManyAttempts        LoginResult = "too_many_attempts"
	ResultLogout                 LoginResult = "logout"
	ResultSystemError            LoginResult = "system_error"
	ResultPasswordChanged        LoginResult = "password_changed"
	ResultPasswordResetRequested LoginResult = "password_reset_requested"
	ResultPasswordReset          LoginResult = "password_reset"
	ResultAdminLock              LoginResult = "admin_lock"
	ResultAdminUnlock            LoginResult = "admin_unlock"
)

// AllResults lists every LoginResult in declaration order.
func AllResults() []LoginResult {
	return []LoginResult{
		ResultSuccess,
		ResultUserNotFound,
		ResultInvalidCredentials,
		ResultAccountLocked,
		ResultAccountDisabled,
		ResultTooManyAttempts,
		ResultLogout,
		ResultSystemError,
		ResultPasswordChanged,
		ResultPasswordResetRequested,
		ResultPasswordReset,
		ResultAdminLock,
		ResultAdminUnlock,
	}
}

type class struct {
	attempt bool // a login attempt (counts toward statistics totals)
	failure bool // a failed login attempt (counts toward lockout)
	reset   bool // closes the current failure window
}

func (r LoginResult) classify() (class, bool) {
	switch r {
	case ResultSuccess:
		return class{attempt: true, reset: true}, true
	case ResultUserNotFound, ResultInvalidCredentials, ResultAccountLocked,
		ResultAccountDisabled, ResultTooManyAttempts:
		return class{attempt: true, failure: true}, true
	case ResultLogout, ResultSystemError, ResultPasswordChanged,
		ResultPasswordResetRequested, ResultAdminLock:
		return class{}, true
	case ResultPasswordReset, ResultAdminUnlock:
		return class{reset: true}, true
	}
	return class{}, false
}

// Valid reports whether r is a known result.
func (r LoginResult) Valid() bool {
	_, ok := r.classify()
	return ok
}

// IsLoginAttempt reports whether r is the outcome of a login attempt.
func (r LoginResult) IsLoginAttempt() bool {
	c, _ := r.classify()
	return c.attempt
}

// IsFailure reports whether r is a failed login attempt. Unknown values count
// as failures.
func (r LoginResult) IsFailure() bool {
	c, ok := r.classify()
	return !ok || c.failure
}

// ResetsFailureWindow reports whether failures recorded before r stop counting
// toward the lockout threshold.
func (r LoginResult) ResetsFailureWindow() bool {
	c, _ := r.classify()
	return c.reset
}

func (r LoginResult) String() string { return string(r) }

// ParseLoginResult converts a stored value back into a LoginResult.
func ParseLoginResult(s string) (LoginResult, error) {
	r := LoginResult(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown login result %q", s)
	}
	return r, nil
}

// FailureResults returns the results that count as failed attempts.
func FailureResults() []LoginResult { return filterResults(LoginResult.IsFailure) }

// ResetResults returns the results that close a failure window.
func ResetResults() []LoginResult { return filterResults(LoginResult.ResetsFailureWindow) }

// AttemptResults returns the results produced by login attempts.
func AttemptResults() []LoginResult { return filterResults(LoginResult.IsLoginAttempt) }

func filterResults(keep func(LoginResult) bool) []LoginResult {
	var out []LoginResult
	for _, r := range AllResults() {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
