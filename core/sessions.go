package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/autherr"
)

// LogoutRequest identifies the caller signing out. SessionID is optional for
// token-only clients that never held a session.
type LogoutRequest struct {
	UserID    string
	SessionID string
	IPAddress string
	UserAgent string
}

// Logout ends the caller's session and records the sign-out. It returns true
// unless something failed internally; an unknown, foreign or already closed
// session is not an error.
func (s *Service) Logout(ctx context.Context, req LogoutRequest) (bool, error) {
	const op = "core.Logout"
	if strings.TrimSpace(req.UserID) == "" {
		return false, autherr.Validation(op, "user id required")
	}
	log := s.log.WithFields(logrus.Fields{"op": op, "user_id": req.UserID, "session_id": req.SessionID})

	var email string
	acct, err := s.identity.FindByID(ctx, req.UserID)
	switch {
	case err == nil:
		email = acct.Email
	case autherr.IsNotFound(err):
	default:
		log.WithError(err).Error("identity lookup failed")
		return false, autherr.Storage(op, err)
	}

	reason := "user logout"
	if sid := strings.TrimSpace(req.SessionID); sid != "" {
		rec, err := s.audit.FindSession(ctx, sid)
		switch {
		case errors.Is(err, autherr.ErrSessionNotFound):
			reason = "session not found"
		case err != nil:
			log.WithError(err).Error("session lookup failed")
			return false, err
		case rec.UserID == nil || *rec.UserID != req.UserID:
			// never close someone else's session
			log.Warn("logout for a session owned by another user")
			reason = "session not owned"
		default:
			if _, err := s.audit.EndSession(ctx, sid, audit.EndReasonLogout); err != nil {
				log.WithError(err).Error("end session failed")
				return false, err
			}
		}
	}

	uid := req.UserID
	if _, err := s.audit.RecordLogout(ctx, audit.LogoutEvent{
		UserID:    &uid,
		Email:     email,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Success:   true,
		Reason:    reason,
	}); err != nil {
		return false, err
	}
	log.Info("logged out")
	return true, nil
}

// IsSessionValid reports whether sessionID is an open, unexpired session of userID.
func (s *Service) IsSessionValid(ctx context.Context, userID, sessionID string) (bool, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(sessionID) == "" {
		return false, nil
	}
	recs, err := s.audit.ActiveSessionsForUser(ctx, userID, s.policy.SessionDuration)
	if err != nil {
		return false, err
	}
	for _, r := range recs {
		if r.SessionID != nil && *r.SessionID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) GetLoginHistory(ctx context.Context, userID string, page, pageSize int, onlySuccessful bool) (*audit.Page, error) {
	return s.audit.LoginHistory(ctx, userID, page, pageSize, onlySuccessful)
}

func (s *Service) GetSuspiciousAttempts(ctx context.Context, hoursBack, page, pageSize int) (*audit.Page, error) {
	return s.audit.SuspiciousAttempts(ctx, hoursBack, page, pageSize)
}

func (s *Service) GetStatistics(ctx context.Context, from, to time.Time) (*audit.Statistics, error) {
	return s.audit.Statistics(ctx, from, to)
}

// GetActiveSessions lists open sessions across all users within the session lifetime.
func (s *Service) GetActiveSessions(ctx context.Context) ([]audit.Record, error) {
	return s.audit.ActiveSessions(ctx, s.policy.SessionDuration)
}

func (s *Service) GetTopIPAddresses(ctx context.Context, userID string, topN int) ([]audit.IPUsage, error) {
	return s.audit.TopIPAddresses(ctx, userID, topN)
}

// GetUserSessions lists the open sessions of one user.
func (s *Service) GetUserSessions(ctx context.Context, userID string) ([]audit.Record, error) {
	return s.audit.ActiveSessionsForUser(ctx, userID, s.policy.SessionDuration)
}

// RevokeAllSessions force-closes every open session of userID and returns how
// many were closed. The account itself is left untouched.
func (s *Service) RevokeAllSessions(ctx context.Context, userID string) (int, error) {
	const op = "core.RevokeAllSessions"
	if strings.TrimSpace(userID) == "" {
		return 0, autherr.Validation(op, "user id required")
	}
	n, err := s.audit.ForceLogoutAll(ctx, userID, "AdminRevoked")
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"op": op, "user_id": userID, "sessions_closed": n}).Info("sessions revoked by admin")
	return n, nil
}
