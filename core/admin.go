package core

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/autherr"
	"github.com/PaulFidika/fleetauth/metrics"
)

// LockUser locks the account until the given time, or indefinitely when until
// is nil, and closes every open session of the user. It returns false for an
// unknown account.
func (s *Service) LockUser(ctx context.Context, userID string, until *time.Time) (bool, error) {
	const op = "core.LockUser"
	if strings.TrimSpace(userID) == "" {
		return false, autherr.Validation(op, "user id required")
	}
	end := IndefiniteLockout
	if until != nil {
		if !until.After(s.clock.Now()) {
			return false, autherr.Validation(op, "lock end must be in the future")
		}
		end = until.UTC()
	}

	acct, err := s.mutateAccount(ctx, userID, nil, func(a *Account) error {
		a.LockoutUntil = &end
		return nil
	})
	if err != nil {
		if autherr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	metrics.Lockouts.WithLabelValues("admin").Inc()

	if _, err := s.audit.RecordAttempt(ctx, audit.Attempt{
		UserID: strPtr(acct.ID),
		Email:  acct.Email,
		Result: audit.ResultAdminLock,
		Detail: "locked until " + end.Format(time.RFC3339),
	}); err != nil {
		return false, err
	}
	n, err := s.audit.ForceLogoutAll(ctx, acct.ID, "AccountLocked")
	if err != nil {
		return false, err
	}
	s.log.WithFields(logrus.Fields{"op": op, "user_id": acct.ID, "until": end, "sessions_closed": n}).Info("account locked by admin")
	return true, nil
}

// UnlockUser clears the lockout and the failure counter. The unlock record
// also starts a fresh failure window. It returns false for an unknown account.
func (s *Service) UnlockUser(ctx context.Context, userID string) (bool, error) {
	const op = "core.UnlockUser"
	if strings.TrimSpace(userID) == "" {
		return false, autherr.Validation(op, "user id required")
	}
	acct, err := s.mutateAccount(ctx, userID, nil, func(a *Account) error {
		a.LockoutUntil = nil
		a.FailedAttempts = 0
		if a.Status == StatusLocked {
			a.Status = StatusActive
		}
		return nil
	})
	if err != nil {
		if autherr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.audit.RecordAttempt(ctx, audit.Attempt{
		UserID: strPtr(acct.ID),
		Email:  acct.Email,
		Result: audit.ResultAdminUnlock,
	}); err != nil {
		return false, err
	}
	s.log.WithFields(logrus.Fields{"op": op, "user_id": acct.ID}).Info("account unlocked by admin")
	return true, nil
}

// SetStatus changes the administrative status. Leaving Active closes the
// user's open sessions.
func (s *Service) SetStatus(ctx context.Context, userID string, status AccountStatus) error {
	const op = "core.SetStatus"
	if !status.Valid() {
		return autherr.Validationf(op, "unknown status %q", status)
	}
	acct, err := s.mutateAccount(ctx, userID, nil, func(a *Account) error {
		if a.Status == status {
			return errNoChange
		}
		a.Status = status
		return nil
	})
	if err != nil {
		return err
	}
	if status != StatusActive {
		if _, err := s.audit.ForceLogoutAll(ctx, acct.ID, "StatusChanged"); err != nil {
			return err
		}
	}
	s.log.WithFields(logrus.Fields{"op": op, "user_id": acct.ID, "status": status}).Info("account status changed")
	return nil
}

// AddRole grants role to the user.
func (s *Service) AddRole(ctx context.Context, userID, role string) error {
	const op = "core.AddRole"
	role = strings.TrimSpace(role)
	if role == "" {
		return autherr.Validation(op, "role required")
	}
	if err := s.identity.AddRole(ctx, userID, role); err != nil {
		return autherr.Storage(op, err)
	}
	return nil
}

// RemoveRole revokes role. Tokens already issued keep their roles until they expire.
func (s *Service) RemoveRole(ctx context.Context, userID, role string) error {
	const op = "core.RemoveRole"
	role = strings.TrimSpace(role)
	if role == "" {
		return autherr.Validation(op, "role required")
	}
	if err := s.identity.RemoveRole(ctx, userID, role); err != nil {
		return autherr.Storage(op, err)
	}
	return nil
}
