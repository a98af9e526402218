package core

import (
	"context"
	"time"

	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/lang"
)

// LoginRequest is the input to Login.
type LoginRequest struct {
	Email      string
	Password   string
	RememberMe bool
	IPAddress  string
	UserAgent  string
}

// AuthenticationResult is the outcome of Login. Outcome is the server-side
// classification and is never part of the public payload.
type AuthenticationResult struct {
	Success         bool
	Message         string
	Token           string
	SessionID       string
	SessionDuration time.Duration
	Outcome         audit.LoginResult
}

// PublicResult is the externally visible shape of an AuthenticationResult.
type PublicResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	Token           string `json:"token,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
	SessionDuration int64  `json:"session_duration,omitempty"` // seconds
}

// Public strips the server-side fields.
func (r AuthenticationResult) Public() PublicResult {
	return PublicResult{
		Success:         r.Success,
		Message:         r.Message,
		Token:           r.Token,
		SessionID:       r.SessionID,
		SessionDuration: int64(r.SessionDuration / time.Second),
	}
}

// messageKey maps a login outcome to its public message. Every result is
// listed; outcomes that Login never produces map to the internal error text.
func messageKey(r audit.LoginResult) string {
	switch r {
	case audit.ResultSuccess:
		return lang.MsgLoginSuccess
	case audit.ResultUserNotFound, audit.ResultInvalidCredentials, audit.ResultAccountDisabled:
		return lang.MsgInvalidCredentials
	case audit.ResultAccountLocked, audit.ResultTooManyAttempts:
		return lang.MsgAccountLocked
	case audit.ResultSystemError, audit.ResultLogout, audit.ResultPasswordChanged,
		audit.ResultPasswordResetRequested, audit.ResultPasswordReset,
		audit.ResultAdminLock, audit.ResultAdminUnlock:
		return lang.MsgInternalError
	}
	return lang.MsgInternalError
}

func failure(ctx context.Context, outcome audit.LoginResult) AuthenticationResult {
	return AuthenticationResult{Message: lang.Message(ctx, messageKey(outcome)), Outcome: outcome}
}

// failureWithMessage lets the wrong-password branch keep the invalid
// credentials text even when the attempt tripped the lockout.
func failureWithMessage(ctx context.Context, outcome audit.LoginResult, key string) AuthenticationResult {
	return AuthenticationResult{Message: lang.Message(ctx, key), Outcome: outcome}
}

func internalFailure(ctx context.Context) AuthenticationResult {
	return failure(ctx, audit.ResultSystemError)
}
