package audit

import (
	"context"
	"time"
)

// Store is the append-mostly ledger behind the audit service.
//
// Implementations must allow concurrent Append calls alongside bulk scans.
// Errors other than the autherr sentinels are treated as storage failures.
type Store interface {
	// Append writes rec and assigns rec.ID.
	Append(ctx context.Context, rec *Record) error
	// Get returns autherr.ErrRecordNotFound for unknown ids.
	Get(ctx context.Context, id int64) (*Record, error)
	Find(ctx context.Context, f Filter) ([]Record, error)
	// Count ignores Limit and Offset.
	Count(ctx context.Context, f Filter) (int, error)
	// CloseSession sets the session end fields on the open record with sessionID.
	// It reports false when no open record exists. The update is conditional on
	// the record still being open, so concurrent callers close it at most once.
	CloseSession(ctx context.Context, sessionID string, endAt time.Time, reason string) (bool, error)
	// CloseSessions closes every open session matching f (f.OpenSessions is implied)
	// and returns how many were closed.
	CloseSessions(ctx context.Context, f Filter, endAt time.Time, reason string) (int, error)
	// MarkSuspicious flips the flag on; an already suspicious record keeps its
	// original reason. It reports false for unknown ids.
	MarkSuspicious(ctx context.Context, id int64, reason string) (bool, error)
	// DeleteBefore removes records with AttemptedAt < cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}
