// Package audit records login-related events and answers the policy questions
// built on them: failure thresholds, active sessions, suspicion signals and
// reporting. Every time window is evaluated against the store on each call.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/fleetauth/autherr"
	"github.com/PaulFidika/fleetauth/clock"
	"github.com/PaulFidika/fleetauth/metrics"
)

// Session end reasons written by this package.
const (
	EndReasonLogout  = "Logout"
	EndReasonTimeout = "Timeout"
	EndReasonForced  = "Forced"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	defaultTopIPs   = 10
)

// Policy holds the thresholds and windows used by the service.
type Policy struct {
	SuspicionWindow   time.Duration
	FailedFromIPCount int
	RapidWindow       time.Duration
	RapidAttemptCount int
	MobilityWindow    time.Duration
	MobilityIPCount   int
	FailureWindow     time.Duration
	MaxFailedAttempts int
	SessionMaxAge     time.Duration
	RetentionDays     int
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		SuspicionWindow:   24 * time.Hour,
		FailedFromIPCount: 3,
		RapidWindow:       5 * time.Minute,
		RapidAttemptCount: 3,
		MobilityWindow:    2 * time.Hour,
		MobilityIPCount:   2,
		FailureWindow:     15 * time.Minute,
		MaxFailedAttempts: 5,
		SessionMaxAge:     30 * time.Minute,
		RetentionDays:     365,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.SuspicionWindow <= 0 {
		p.SuspicionWindow = d.SuspicionWindow
	}
	if p.FailedFromIPCount <= 0 {
		p.FailedFromIPCount = d.FailedFromIPCount
	}
	if p.RapidWindow <= 0 {
		p.RapidWindow = d.RapidWindow
	}
	if p.RapidAttemptCount <= 0 {
		p.RapidAttemptCount = d.RapidAttemptCount
	}
	if p.MobilityWindow <= 0 {
		p.MobilityWindow = d.MobilityWindow
	}
	if p.MobilityIPCount <= 0 {
		p.MobilityIPCount = d.MobilityIPCount
	}
	if p.FailureWindow <= 0 {
		p.FailureWindow = d.FailureWindow
	}
	if p.MaxFailedAttempts <= 0 {
		p.MaxFailedAttempts = d.MaxFailedAttempts
	}
	if p.SessionMaxAge <= 0 {
		p.SessionMaxAge = d.SessionMaxAge
	}
	if p.RetentionDays <= 0 {
		p.RetentionDays = d.RetentionDays
	}
	return p
}

// Options configures a Service.
type Options struct {
	Store  Store              // required
	Clock  clock.Clock        // defaults to clock.Real
	Logger logrus.FieldLogger // defaults to the logrus standard logger
	Policy Policy             // zero fields take DefaultPolicy values
}

// Service is the single writer and reader of the login audit ledger.
type Service struct {
	store  Store
	clock  clock.Clock
	log    logrus.FieldLogger
	policy Policy
}

// NewService builds a Service from opts.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("audit: store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		store:  opts.Store,
		clock:  clock.Or(opts.Clock),
		log:    logger.WithField("component", "login_audit"),
		policy: opts.Policy.withDefaults(),
	}, nil
}

// Policy returns the effective policy.
func (s *Service) Policy() Policy { return s.policy }

// RecordAttempt appends an immutable record stamped with the current time.
func (s *Service) RecordAttempt(ctx context.Context, a Attempt) (*Record, error) {
	const op = "audit.RecordAttempt"
	if !a.Result.Valid() {
		return nil, autherr.Validationf(op, "unknown result %q", a.Result)
	}
	if a.SessionID != nil && a.Result != ResultSuccess {
		return nil, autherr.Validation(op, "session id is only recorded on success")
	}
	browser, osName, device := parseUserAgent(a.UserAgent)
	rec := &Record{
		UserID:         a.UserID,
		EmailAttempted: strings.TrimSpace(a.Email),
		IPAddress:      strings.TrimSpace(a.IPAddress),
		UserAgent:      a.UserAgent,
		Browser:        browser,
		OS:             osName,
		Device:         device,
		Result:         a.Result,
		AttemptedAt:    s.clock.Now(),
		SessionID:      a.SessionID,
		Detail:         a.Detail,
	}
	if err := s.store.Append(ctx, rec); err != nil {
		metrics.AuditWriteErrors.Inc()
		s.log.WithFields(logrus.Fields{
			"op":     op,
			"result": a.Result,
			"email":  rec.EmailAttempted,
			"ip":     rec.IPAddress,
		}).WithError(err).Error("audit append failed")
		return nil, autherr.Storage(op, err)
	}
	metrics.ObserveRecord(string(a.Result))
	return rec, nil
}

// LogoutEvent describes a sign-out to record.
type LogoutEvent struct {
	UserID    *string
	Email     string
	IPAddress string
	UserAgent string
	Success   bool
	Reason    string
}

// RecordLogout appends a Logout record, or SystemError when the sign-out failed.
func (s *Service) RecordLogout(ctx context.Context, ev LogoutEvent) (*Record, error) {
	result := ResultLogout
	if !ev.Success {
		result = ResultSystemError
	}
	return s.RecordAttempt(ctx, Attempt{
		UserID:    ev.UserID,
		Email:     ev.Email,
		Result:    result,
		IPAddress: ev.IPAddress,
		UserAgent: ev.UserAgent,
		Detail:    ev.Reason,
	})
}

// EndSession closes the open session with sessionID. It returns false when the
// session does not exist or was already closed.
func (s *Service) EndSession(ctx context.Context, sessionID, reason string) (bool, error) {
	const op = "audit.EndSession"
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false, autherr.Validation(op, "session id required")
	}
	ok, err := s.store.CloseSession(ctx, sessionID, s.clock.Now(), reason)
	if err != nil {
		s.log.WithFields(logrus.Fields{"op": op, "session_id": sessionID}).WithError(err).Error("close session failed")
		return false, autherr.Storage(op, err)
	}
	if ok {
		metrics.ObserveSessionsEnded(reason, 1)
	}
	return ok, nil
}

// MarkSuspicious flags a record. The flag is never cleared; marking an already
// suspicious record succeeds without changing it.
func (s *Service) MarkSuspicious(ctx context.Context, recordID int64, reason string) (bool, error) {
	const op = "audit.MarkSuspicious"
	ok, err := s.store.MarkSuspicious(ctx, recordID, reason)
	if err != nil {
		s.log.WithFields(logrus.Fields{"op": op, "record_id": recordID}).WithError(err).Error("mark suspicious failed")
		return false, autherr.Storage(op, err)
	}
	if ok {
		metrics.SuspiciousMarked.Inc()
	}
	return ok, nil
}

// HasExceededFailedAttempts reports whether the user has at least max failed
// attempts within window. Failures recorded before the user's latest success
// or unlock do not count.
func (s *Service) HasExceededFailedAttempts(ctx context.Context, userID string, window time.Duration, max int) (bool, error) {
	n, err := s.FailedAttemptCount(ctx, userID, window)
	if err != nil {
		return false, err
	}
	if max <= 0 {
		max = s.policy.MaxFailedAttempts
	}
	return n >= max, nil
}

// FailedAttemptCount counts the user's failures in the current failure window.
func (s *Service) FailedAttemptCount(ctx context.Context, userID string, window time.Duration) (int, error) {
	const op = "audit.FailedAttemptCount"
	if window <= 0 {
		window = s.policy.FailureWindow
	}
	uid := userID
	since := s.clock.Now().Add(-window)

	resets, err := s.store.Find(ctx, Filter{UserID: &uid, Results: ResetResults(), Since: since, Limit: 1})
	if err != nil {
		return 0, autherr.Storage(op, err)
	}
	f := Filter{UserID: &uid, Results: FailureResults(), Since: since}
	if len(resets) > 0 {
		f.AfterID = resets[0].ID
	}
	n, err := s.store.Count(ctx, f)
	if err != nil {
		return 0, autherr.Storage(op, err)
	}
	return n, nil
}

// ActiveSessions returns open sessions started within maxAge, newest first.
func (s *Service) ActiveSessions(ctx context.Context, maxAge time.Duration) ([]Record, error) {
	return s.activeSessions(ctx, nil, maxAge)
}

// ActiveSessionsForUser is ActiveSessions restricted to one user.
func (s *Service) ActiveSessionsForUser(ctx context.Context, userID string, maxAge time.Duration) ([]Record, error) {
	uid := userID
	return s.activeSessions(ctx, &uid, maxAge)
}

func (s *Service) activeSessions(ctx context.Context, userID *string, maxAge time.Duration) ([]Record, error) {
	if maxAge <= 0 {
		maxAge = s.policy.SessionMaxAge
	}
	recs, err := s.store.Find(ctx, Filter{
		UserID:       userID,
		Results:      []LoginResult{ResultSuccess},
		OpenSessions: true,
		Since:        s.clock.Now().Add(-maxAge),
	})
	if err != nil {
		return nil, autherr.Storage("audit.ActiveSessions", err)
	}
	return recs, nil
}

// FindSession returns the success record for sessionID, open or closed.
func (s *Service) FindSession(ctx context.Context, sessionID string) (*Record, error) {
	recs, err := s.store.Find(ctx, Filter{SessionID: sessionID, Results: []LoginResult{ResultSuccess}, Limit: 1})
	if err != nil {
		return nil, autherr.Storage("audit.FindSession", err)
	}
	if len(recs) == 0 {
		return nil, autherr.ErrSessionNotFound
	}
	return &recs[0], nil
}

// ForceLogoutAll closes every session the user has open when the scan runs.
// A login that commits concurrently may survive; that race is accepted.
func (s *Service) ForceLogoutAll(ctx context.Context, userID, reason string) (int, error) {
	const op = "audit.ForceLogoutAll"
	if strings.TrimSpace(userID) == "" {
		return 0, autherr.Validation(op, "user id required")
	}
	if reason == "" {
		reason = EndReasonForced
	}
	uid := userID
	n, err := s.store.CloseSessions(ctx, Filter{UserID: &uid, OpenSessions: true}, s.clock.Now(), reason)
	if err != nil {
		s.log.WithFields(logrus.Fields{"op": op, "user_id": userID}).WithError(err).Error("force logout failed")
		return 0, autherr.Storage(op, err)
	}
	metrics.ObserveSessionsEnded(reason, n)
	if n > 0 {
		s.log.WithFields(logrus.Fields{"op": op, "user_id": userID, "closed": n, "reason": reason}).Info("sessions force-closed")
	}
	return n, nil
}

// CloseExpiredSessions closes open sessions older than maxAge with the Timeout reason.
func (s *Service) CloseExpiredSessions(ctx context.Context, maxAge time.Duration) (int, error) {
	const op = "audit.CloseExpiredSessions"
	if maxAge <= 0 {
		maxAge = s.policy.SessionMaxAge
	}
	now := s.clock.Now()
	n, err := s.store.CloseSessions(ctx, Filter{OpenSessions: true, Until: now.Add(-maxAge)}, now, EndReasonTimeout)
	if err != nil {
		return 0, autherr.Storage(op, err)
	}
	metrics.ObserveSessionsEnded(EndReasonTimeout, n)
	return n, nil
}

// LoginHistory pages through a user's records, newest first.
func (s *Service) LoginHistory(ctx context.Context, userID string, page, pageSize int, onlySuccessful bool) (*Page, error) {
	uid := userID
	f := Filter{UserID: &uid}
	if onlySuccessful {
		f.Results = []LoginResult{ResultSuccess}
	}
	return s.page(ctx, "audit.LoginHistory", f, page, pageSize)
}

// SuspiciousAttempts pages through suspicious records from the last hoursBack hours.
func (s *Service) SuspiciousAttempts(ctx context.Context, hoursBack, page, pageSize int) (*Page, error) {
	if hoursBack <= 0 {
		hoursBack = 24
	}
	f := Filter{
		SuspiciousOnly: true,
		Since:          s.clock.Now().Add(-time.Duration(hoursBack) * time.Hour),
	}
	return s.page(ctx, "audit.SuspiciousAttempts", f, page, pageSize)
}

func (s *Service) page(ctx context.Context, op string, f Filter, page, pageSize int) (*Page, error) {
	page, pageSize = normalizePage(page, pageSize)
	total, err := s.store.Count(ctx, f)
	if err != nil {
		return nil, autherr.Storage(op, err)
	}
	f.Limit = pageSize
	f.Offset = (page - 1) * pageSize
	recs, err := s.store.Find(ctx, f)
	if err != nil {
		return nil, autherr.Storage(op, err)
	}
	if recs == nil {
		recs = []Record{}
	}
	return &Page{Records: recs, TotalCount: total, Page: page, PageSize: pageSize}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// Statistics aggregates records with AttemptedAt in [from, to).
func (s *Service) Statistics(ctx context.Context, from, to time.Time) (*Statistics, error) {
	const op = "audit.Statistics"
	if !to.After(from) {
		return nil, autherr.Validation(op, "range end must be after start")
	}
	recs, err := s.store.Find(ctx, Filter{Since: from, Until: to, Ascending: true})
	if err != nil {
		return nil, autherr.Storage(op, err)
	}
	stats := ComputeStatistics(recs, from, to)
	return &stats, nil
}

// TopIPAddresses returns the user's most used source addresses.
func (s *Service) TopIPAddresses(ctx context.Context, userID string, topN int) ([]IPUsage, error) {
	if topN <= 0 {
		topN = defaultTopIPs
	}
	uid := userID
	recs, err := s.store.Find(ctx, Filter{UserID: &uid})
	if err != nil {
		return nil, autherr.Storage("audit.TopIPAddresses", err)
	}
	return RankIPAddresses(recs, topN), nil
}

// CleanupOlderThan permanently deletes records older than days and returns the
// number removed.
func (s *Service) CleanupOlderThan(ctx context.Context, days int) (int, error) {
	const op = "audit.CleanupOlderThan"
	if days <= 0 {
		return 0, autherr.Validation(op, "retention must be at least one day")
	}
	cutoff := s.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		s.log.WithFields(logrus.Fields{"op": op, "cutoff": cutoff}).WithError(err).Error("retention cleanup failed")
		return 0, autherr.Storage(op, err)
	}
	metrics.ObservePurge(n)
	s.log.WithFields(logrus.Fields{"op": op, "cutoff": cutoff, "deleted": n}).Info("audit retention cleanup")
	return n, nil
}
