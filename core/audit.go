package core

import (
	"context"
	"time"

	"github.com/PaulFidika/fleetauth/audit"
)

// AuditLog is the slice of the login audit service the authentication flow
// depends on. *audit.Service implements it.
type AuditLog interface {
	RecordAttempt(ctx context.Context, a audit.Attempt) (*audit.Record, error)
	RecordLogout(ctx context.Context, ev audit.LogoutEvent) (*audit.Record, error)
	EndSession(ctx context.Context, sessionID, reason string) (bool, error)
	FindSession(ctx context.Context, sessionID string) (*audit.Record, error)
	Assess(ctx context.Context, userID, ipAddress string, window time.Duration) (audit.Assessment, error)
	MarkSuspicious(ctx context.Context, recordID int64, reason string) (bool, error)
	HasExceededFailedAttempts(ctx context.Context, userID string, window time.Duration, max int) (bool, error)
	ActiveSessions(ctx context.Context, maxAge time.Duration) ([]audit.Record, error)
	ActiveSessionsForUser(ctx context.Context, userID string, maxAge time.Duration) ([]audit.Record, error)
	ForceLogoutAll(ctx context.Context, userID, reason string) (int, error)
	LoginHistory(ctx context.Context, userID string, page, pageSize int, onlySuccessful bool) (*audit.Page, error)
	SuspiciousAttempts(ctx context.Context, hoursBack, page, pageSize int) (*audit.Page, error)
	Statistics(ctx context.Context, from, to time.Time) (*audit.Statistics, error)
	TopIPAddresses(ctx context.Context, userID string, topN int) ([]audit.IPUsage, error)
}

var _ AuditLog = (*audit.Service)(nil)
