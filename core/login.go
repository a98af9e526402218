package core

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/autherr"
	"github.com/PaulFidika/fleetauth/lang"
	"github.com/PaulFidika/fleetauth/metrics"
)

// Login authenticates an email/password pair.
//
// Every attempt is recorded. If the audit write fails the attempt is refused
// with an internal error, because an unrecorded attempt would escape the
// lockout count. Unknown emails, wrong passwords and disabled accounts all
// produce the same public failure.
func (s *Service) Login(ctx context.Context, req LoginRequest) (res AuthenticationResult) {
	const op = "core.Login"
	email := NormalizeEmail(req.Email)
	log := s.log.WithFields(logrus.Fields{"op": op, "email": email, "ip": req.IPAddress})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("login panicked")
			res = internalFailure(ctx)
		}
	}()

	attempt := audit.Attempt{Email: email, IPAddress: req.IPAddress, UserAgent: req.UserAgent}

	if email == "" || req.Password == "" {
		attempt.Result = audit.ResultInvalidCredentials
		attempt.Detail = "missing credentials"
		if _, err := s.audit.RecordAttempt(ctx, attempt); err != nil {
			return internalFailure(ctx)
		}
		return failure(ctx, audit.ResultInvalidCredentials)
	}

	acct, err := s.identity.FindByEmail(ctx, email)
	if err != nil {
		if !autherr.IsNotFound(err) {
			log.WithError(err).Error("identity lookup failed")
			return internalFailure(ctx)
		}
		attempt.Result = audit.ResultUserNotFound
		if _, err := s.audit.RecordAttempt(ctx, attempt); err != nil {
			return internalFailure(ctx)
		}
		return failure(ctx, audit.ResultUserNotFound)
	}
	attempt.UserID = strPtr(acct.ID)
	log = log.WithField("user_id", acct.ID)

	if acct.Status != StatusActive {
		attempt.Result = audit.ResultAccountDisabled
		if acct.Status == StatusLocked {
			attempt.Result = audit.ResultAccountLocked
		}
		attempt.Detail = "status " + string(acct.Status)
		if _, err := s.audit.RecordAttempt(ctx, attempt); err != nil {
			return internalFailure(ctx)
		}
		return failure(ctx, attempt.Result)
	}

	// Suspicion is advisory and fails open: an error here is logged and the
	// login proceeds as not suspicious.
	suspicion, err := s.audit.Assess(ctx, acct.ID, req.IPAddress, s.policy.SuspicionWindow)
	if err != nil {
		metrics.SuspicionCheckErrors.Inc()
		log.WithError(err).Warn("suspicion check failed; continuing")
		suspicion = audit.Assessment{}
	}

	if acct.IsLockedAt(s.clock.Now()) {
		attempt.Result = audit.ResultAccountLocked
		rec, err := s.audit.RecordAttempt(ctx, attempt)
		if err != nil {
			return internalFailure(ctx)
		}
		s.markSuspicious(ctx, rec, suspicion)
		return failure(ctx, audit.ResultAccountLocked)
	}

	// The failure-count check fails closed: without an answer from the audit
	// log the attempt is refused.
	exceeded, err := s.audit.HasExceededFailedAttempts(ctx, acct.ID, s.policy.FailureWindow, s.policy.MaxFailedAttempts)
	if err != nil {
		log.WithError(err).Error("failure count unavailable")
		return internalFailure(ctx)
	}
	if exceeded {
		return s.lockForTooManyAttempts(ctx, acct, attempt, suspicion, log)
	}

	ok, err := s.identity.VerifyPassword(ctx, acct, req.Password)
	if err != nil {
		log.WithError(err).Error("password verification failed")
		return internalFailure(ctx)
	}
	if !ok {
		return s.rejectPassword(ctx, acct, attempt, suspicion, log)
	}
	return s.completeLogin(ctx, acct, req, attempt, suspicion, log)
}

func (s *Service) lockForTooManyAttempts(ctx context.Context, acct *Account, attempt audit.Attempt, suspicion audit.Assessment, log logrus.FieldLogger) AuthenticationResult {
	var set bool
	_, err := s.mutateAccount(ctx, acct.ID, acct, func(a *Account) error {
		now := s.clock.Now()
		if a.IsLockedAt(now) {
			set = false
			return errNoChange
		}
		until := now.Add(s.policy.LockoutDuration)
		a.LockoutUntil = &until
		set = true
		return nil
	})
	if err != nil {
		log.WithError(err).Error("could not set lockout")
		return internalFailure(ctx)
	}
	if set {
		metrics.Lockouts.WithLabelValues("window").Inc()
		log.Warn("failed attempts over threshold; account locked")
	}

	attempt.Result = audit.ResultTooManyAttempts
	rec, err := s.audit.RecordAttempt(ctx, attempt)
	if err != nil {
		return internalFailure(ctx)
	}
	s.markSuspicious(ctx, rec, suspicion)
	return failure(ctx, audit.ResultTooManyAttempts)
}

// rejectPassword counts a bad password. The increment and the lockout trip
// happen in one conditional write, so concurrent failures cannot both read a
// count below the threshold.
func (s *Service) rejectPassword(ctx context.Context, acct *Account, attempt audit.Attempt, suspicion audit.Assessment, log logrus.FieldLogger) AuthenticationResult {
	var tripped, alreadyLocked bool
	_, err := s.mutateAccount(ctx, acct.ID, acct, func(a *Account) error {
		tripped, alreadyLocked = false, false
		now := s.clock.Now()
		if a.IsLockedAt(now) {
			alreadyLocked = true
			return errNoChange
		}
		if a.LockoutUntil != nil {
			// previous lockout has lapsed: a new window starts
			a.LockoutUntil = nil
			a.FailedAttempts = 0
		}
		a.FailedAttempts++
		if a.FailedAttempts >= s.policy.MaxFailedAttempts {
			until := now.Add(s.policy.LockoutDuration)
			a.LockoutUntil = &until
			tripped = true
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("could not record failed attempt on account")
		return internalFailure(ctx)
	}

	attempt.Result = audit.ResultInvalidCredentials
	if tripped || alreadyLocked {
		attempt.Result = audit.ResultAccountLocked
	}
	if tripped {
		metrics.Lockouts.WithLabelValues("threshold").Inc()
		log.Warn("failed attempt threshold reached; account locked")
	}
	rec, err := s.audit.RecordAttempt(ctx, attempt)
	if err != nil {
		return internalFailure(ctx)
	}
	s.markSuspicious(ctx, rec, suspicion)
	return failureWithMessage(ctx, attempt.Result, lang.MsgInvalidCredentials)
}

func (s *Service) completeLogin(ctx context.Context, acct *Account, req LoginRequest, attempt audit.Attempt, suspicion audit.Assessment, log logrus.FieldLogger) AuthenticationResult {
	sessionID, err := newSessionID()
	if err != nil {
		log.WithError(err).Error("session id generation failed")
		return internalFailure(ctx)
	}

	updated, err := s.mutateAccount(ctx, acct.ID, acct, func(a *Account) error {
		now := s.clock.Now()
		a.FailedAttempts = 0
		a.LockoutUntil = nil
		a.LastLoginAt = &now
		a.LastLoginIP = req.IPAddress
		return nil
	})
	if err != nil {
		log.WithError(err).Error("could not reset account after login")
		return internalFailure(ctx)
	}

	attempt.Result = audit.ResultSuccess
	attempt.SessionID = strPtr(sessionID)
	rec, err := s.audit.RecordAttempt(ctx, attempt)
	if err != nil {
		// no token without a committed session record
		return internalFailure(ctx)
	}
	s.markSuspicious(ctx, rec, suspicion)

	token, err := s.tokens.IssueToken(ctx, UserClaims{
		UserID:     updated.ID,
		Email:      updated.Email,
		Roles:      updated.Roles,
		SessionID:  sessionID,
		Duration:   s.policy.SessionDuration,
		Persistent: req.RememberMe,
	})
	if err != nil {
		log.WithError(err).Error("token issuance failed")
		if _, endErr := s.audit.EndSession(ctx, sessionID, "TokenIssueFailed"); endErr != nil {
			log.WithError(endErr).Error("could not close orphaned session")
		}
		return internalFailure(ctx)
	}

	log.WithFields(logrus.Fields{"session_id": sessionID, "suspicious": suspicion.Suspicious()}).Info("login succeeded")
	return AuthenticationResult{
		Success:         true,
		Message:         lang.Message(ctx, lang.MsgLoginSuccess),
		Token:           token,
		SessionID:       sessionID,
		SessionDuration: s.policy.SessionDuration,
		Outcome:         audit.ResultSuccess,
	}
}
