package core

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/autherr"
	"github.com/PaulFidika/fleetauth/password"
)

// CreateUser registers an account. A taken email yields a conflict without
// echoing the address back.
func (s *Service) CreateUser(ctx context.Context, in NewAccount) (*Account, error) {
	const op = "core.CreateUser"
	in.Email = NormalizeEmail(in.Email)
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, autherr.Validation(op, "valid email required")
	}
	if err := password.Validate(in.Password); err != nil {
		return nil, autherr.Validation(op, err.Error())
	}
	if in.Status == "" {
		in.Status = StatusActive
	}
	if !in.Status.Valid() {
		return nil, autherr.Validationf(op, "unknown status %q", in.Status)
	}
	acct, err := s.identity.CreateAccount(ctx, in)
	if err != nil {
		if errors.Is(err, autherr.ErrEmailTaken) {
			return nil, &autherr.Error{Kind: autherr.KindConflict, Op: op, Message: "account could not be created"}
		}
		if errors.Is(err, password.ErrTooLongForBcrypt) {
			return nil, autherr.Validation(op, err.Error())
		}
		s.log.WithFields(logrus.Fields{"op": op}).WithError(err).Error("create account failed")
		return nil, autherr.Storage(op, err)
	}
	s.log.WithFields(logrus.Fields{"op": op, "user_id": acct.ID}).Info("account created")
	return acct, nil
}

// ChangePasswordRequest is the input to ChangePassword.
type ChangePasswordRequest struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
	IPAddress       string
	UserAgent       string
}

// ChangePassword replaces the password after checking the current one and
// closes every open session of the user. A wrong current password is recorded
// as a failed attempt.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	const op = "core.ChangePassword"
	if err := password.Validate(req.NewPassword); err != nil {
		return autherr.Validation(op, err.Error())
	}
	acct, err := s.identity.FindByID(ctx, req.UserID)
	if err != nil {
		if autherr.IsNotFound(err) {
			return autherr.ErrInvalidCredentials
		}
		return autherr.Storage(op, err)
	}
	attempt := audit.Attempt{
		UserID:    strPtr(acct.ID),
		Email:     acct.Email,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	}
	ok, err := s.identity.VerifyPassword(ctx, acct, req.CurrentPassword)
	if err != nil {
		return autherr.System(op, err)
	}
	if !ok {
		attempt.Result = audit.ResultInvalidCredentials
		attempt.Detail = "password change"
		if _, err := s.audit.RecordAttempt(ctx, attempt); err != nil {
			return err
		}
		return autherr.ErrInvalidCredentials
	}
	if err := s.identity.SetPassword(ctx, acct.ID, req.NewPassword); err != nil {
		if errors.Is(err, password.ErrTooLongForBcrypt) {
			return autherr.Validation(op, err.Error())
		}
		return autherr.Storage(op, err)
	}
	attempt.Result = audit.ResultPasswordChanged
	if _, err := s.audit.RecordAttempt(ctx, attempt); err != nil {
		return err
	}
	if _, err := s.audit.ForceLogoutAll(ctx, acct.ID, "PasswordChanged"); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"op": op, "user_id": acct.ID}).Info("password changed")
	return nil
}

// RequestPasswordReset issues a reset token for email if an active account
// holds it. The caller sees the same outcome whether or not it does; only
// storage failures surface as errors. Without a token store and a notifier
// it returns ErrResetUnavailable for every address.
func (s *Service) RequestPasswordReset(ctx context.Context, email, ipAddress, userAgent string) error {
	const op = "core.RequestPasswordReset"
	if s.resetTokens == nil || s.notifier == nil {
		return autherr.ErrResetUnavailable
	}
	email = NormalizeEmail(email)
	if email == "" {
		return nil
	}
	attempt := audit.Attempt{Email: email, IPAddress: ipAddress, UserAgent: userAgent, Result: audit.ResultPasswordResetRequested}
	acct, err := s.identity.FindByEmail(ctx, email)
	switch {
	case autherr.IsNotFound(err):
		attempt.Detail = "unknown email"
		_, err := s.audit.RecordAttempt(ctx, attempt)
		return err
	case err != nil:
		return autherr.Storage(op, err)
	}
	attempt.UserID = strPtr(acct.ID)
	if acct.Status != StatusActive {
		attempt.Detail = "status " + string(acct.Status)
		_, err := s.audit.RecordAttempt(ctx, attempt)
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return autherr.System(op, err)
	}
	if err := s.resetTokens.Put(ctx, token, acct.ID, s.policy.ResetTokenTTL); err != nil {
		return autherr.Storage(op, err)
	}
	if _, err := s.audit.RecordAttempt(ctx, attempt); err != nil {
		return err
	}

	log := s.log.WithFields(logrus.Fields{"op": op, "user_id": acct.ID})
	if err := s.notifier.SendPasswordReset(ctx, acct.Email, token); err != nil {
		// delivery failure must not reveal that the account exists
		log.WithError(err).Error("reset notification failed")
	}
	return nil
}

// ResetPassword consumes a reset token, sets the new password, lifts any
// lockout and closes all sessions of the user.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword, ipAddress, userAgent string) error {
	const op = "core.ResetPassword"
	if s.resetTokens == nil {
		return autherr.ErrResetUnavailable
	}
	if err := password.Validate(newPassword); err != nil {
		return autherr.Validation(op, err.Error())
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return autherr.ErrInvalidToken
	}
	userID, ok, err := s.resetTokens.Take(ctx, token)
	if err != nil {
		return autherr.Storage(op, err)
	}
	if !ok {
		return autherr.ErrInvalidToken
	}

	if err := s.identity.SetPassword(ctx, userID, newPassword); err != nil {
		if autherr.IsNotFound(err) {
			return autherr.ErrInvalidToken
		}
		return autherr.Storage(op, err)
	}
	acct, err := s.mutateAccount(ctx, userID, nil, func(a *Account) error {
		if a.FailedAttempts == 0 && a.LockoutUntil == nil {
			return errNoChange
		}
		a.FailedAttempts = 0
		a.LockoutUntil = nil
		return nil
	})
	if err != nil {
		return err
	}
	if _, err := s.audit.RecordAttempt(ctx, audit.Attempt{
		UserID:    strPtr(acct.ID),
		Email:     acct.Email,
		Result:    audit.ResultPasswordReset,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}); err != nil {
		return err
	}
	if _, err := s.audit.ForceLogoutAll(ctx, acct.ID, "PasswordReset"); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"op": op, "user_id": acct.ID}).Info("password reset")
	return nil
}

func newResetToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base58.Encode(b), nil
}
