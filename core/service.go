// Package core is the authentication service: it turns login, logout and
// credential requests into outcomes, applies the account lockout state machine
// and mints sessions. Everything it decides is recorded through the audit log.
package core

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/autherr"
	"github.com/PaulFidika/fleetauth/clock"
)

// Policy configures lockout and session behavior.
type Policy struct {
	MaxFailedAttempts int
	FailureWindow     time.Duration
	LockoutDuration   time.Duration
	SessionDuration   time.Duration
	SuspicionWindow   time.Duration
	ResetTokenTTL     time.Duration
	MaxUpdateRetries  int
}

// DefaultPolicy returns the production policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxFailedAttempts: 5,
		FailureWindow:     15 * time.Minute,
		LockoutDuration:   30 * time.Minute,
		SessionDuration:   30 * time.Minute,
		SuspicionWindow:   24 * time.Hour,
		ResetTokenTTL:     time.Hour,
		MaxUpdateRetries:  5,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxFailedAttempts <= 0 {
		p.MaxFailedAttempts = d.MaxFailedAttempts
	}
	if p.FailureWindow <= 0 {
		p.FailureWindow = d.FailureWindow
	}
	if p.LockoutDuration <= 0 {
		p.LockoutDuration = d.LockoutDuration
	}
	if p.SessionDuration <= 0 {
		p.SessionDuration = d.SessionDuration
	}
	if p.SuspicionWindow <= 0 {
		p.SuspicionWindow = d.SuspicionWindow
	}
	if p.ResetTokenTTL <= 0 {
		p.ResetTokenTTL = d.ResetTokenTTL
	}
	if p.MaxUpdateRetries <= 0 {
		p.MaxUpdateRetries = d.MaxUpdateRetries
	}
	return p
}

// Options wires a Service.
type Options struct {
	Identity    IdentityStore   // required
	Audit       AuditLog        // required
	Tokens      TokenIssuer     // required
	ResetTokens ResetTokenStore // required for the password reset flow
	Notifier    ResetNotifier   // optional; password reset is unavailable without it
	Clock       clock.Clock
	Logger      logrus.FieldLogger
	Policy      Policy
}

// Service orchestrates authentication requests. It holds no mutable state of
// its own; all state lives in the identity store and the audit log.
type Service struct {
	identity    IdentityStore
	audit       AuditLog
	tokens      TokenIssuer
	resetTokens ResetTokenStore
	notifier    ResetNotifier
	clock       clock.Clock
	log         logrus.FieldLogger
	policy      Policy
}

// NewService validates opts and builds a Service.
func NewService(opts Options) (*Service, error) {
	switch {
	case opts.Identity == nil:
		return nil, errors.New("core: identity store is required")
	case opts.Audit == nil:
		return nil, errors.New("core: audit log is required")
	case opts.Tokens == nil:
		return nil, errors.New("core: token issuer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		identity:    opts.Identity,
		audit:       opts.Audit,
		tokens:      opts.Tokens,
		resetTokens: opts.ResetTokens,
		notifier:    opts.Notifier,
		clock:       clock.Or(opts.Clock),
		log:         logger.WithField("component", "auth"),
		policy:      opts.Policy.withDefaults(),
	}, nil
}

// Policy returns the effective policy.
func (s *Service) Policy() Policy { return s.policy }

var errNoChange = errors.New("no change")

// mutateAccount applies fn to the account and writes it back conditionally on
// its version, re-reading and re-applying fn when a concurrent writer wins.
// fn may return errNoChange to skip the write. The first pass uses snapshot
// when it is non-nil.
func (s *Service) mutateAccount(ctx context.Context, id string, snapshot *Account, fn func(*Account) error) (*Account, error) {
	const op = "core.mutateAccount"
	acct := snapshot.Clone()
	for i := 0; i < s.policy.MaxUpdateRetries; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if acct == nil {
			var err error
			if acct, err = s.identity.FindByID(ctx, id); err != nil {
				return nil, autherr.Storage(op, err)
			}
		}
		if err := fn(acct); err != nil {
			if errors.Is(err, errNoChange) {
				return acct, nil
			}
			return nil, err
		}
		acct.UpdatedAt = s.clock.Now()
		err := s.identity.UpdateAccount(ctx, acct)
		if err == nil {
			return acct, nil
		}
		if !errors.Is(err, autherr.ErrStaleAccount) {
			return nil, autherr.Storage(op, err)
		}
		s.log.WithFields(logrus.Fields{"op": op, "user_id": id, "retry": i + 1}).Debug("account version conflict; retrying")
		acct = nil
	}
	return nil, autherr.System(op, fmt.Errorf("account %s: %w", id, autherr.ErrStaleAccount))
}

// newSessionID returns 256 random bits, base58 encoded.
func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base58.Encode(b), nil
}

func (s *Service) markSuspicious(ctx context.Context, rec *audit.Record, a audit.Assessment) {
	if rec == nil || !a.Suspicious() {
		return
	}
	if _, err := s.audit.MarkSuspicious(ctx, rec.ID, a.Reason()); err != nil {
		// the attempt itself is recorded; losing the flag only weakens reporting
		s.log.WithFields(logrus.Fields{"op": "core.markSuspicious", "record_id": rec.ID}).WithError(err).Warn("could not flag record")
	}
}

func strPtr(s string) *string { return &s }
