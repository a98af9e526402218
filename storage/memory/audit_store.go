package memorystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/autherr"
)

// AuditStore is an in-memory audit.Store. Records are copied on the way in
// and out so callers never share memory with the ledger.
type AuditStore struct {
	mu     sync.RWMutex
	nextID int64
	recs   []audit.Record // ascending by ID
}

var _ audit.Store = (*AuditStore)(nil)

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Append(ctx context.Context, rec *audit.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	s.recs = append(s.recs, copyRecord(*rec))
	return nil
}

func (s *AuditStore) Get(ctx context.Context, id int64) (*audit.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		r := copyRecord(s.recs[i])
		return &r, nil
	}
	return nil, autherr.ErrRecordNotFound
}

func (s *AuditStore) Find(ctx context.Context, f audit.Filter) ([]audit.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []audit.Record
	for _, r := range s.recs {
		if matches(r, f) {
			out = append(out, copyRecord(r))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.AttemptedAt.Equal(b.AttemptedAt) {
			if f.Ascending {
				return a.AttemptedAt.Before(b.AttemptedAt)
			}
			return a.AttemptedAt.After(b.AttemptedAt)
		}
		if f.Ascending {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *AuditStore) Count(ctx context.Context, f audit.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.recs {
		if matches(r, f) {
			n++
		}
	}
	return n, nil
}

func (s *AuditStore) CloseSession(ctx context.Context, sessionID string, endAt time.Time, reason string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recs {
		r := &s.recs[i]
		if r.IsOpenSession() && *r.SessionID == sessionID {
			closeRecord(r, endAt, reason)
			return true, nil
		}
	}
	return false, nil
}

func (s *AuditStore) CloseSessions(ctx context.Context, f audit.Filter, endAt time.Time, reason string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.OpenSessions = true
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.recs {
		if matches(s.recs[i], f) {
			closeRecord(&s.recs[i], endAt, reason)
			n++
		}
	}
	return n, nil
}

func (s *AuditStore) MarkSuspicious(ctx context.Context, id int64, reason string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	r := &s.recs[i]
	if !r.IsSuspicious {
		r.IsSuspicious = true
		r.SuspiciousReason = reason
	}
	return true, nil
}

func (s *AuditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.recs[:0]
	n := 0
	for _, r := range s.recs {
		if r.AttemptedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.recs = kept
	return n, nil
}

// Len returns the number of stored records.
func (s *AuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

// indexOf binary-searches by id; callers hold the lock.
func (s *AuditStore) indexOf(id int64) int {
	i := sort.Search(len(s.recs), func(i int) bool { return s.recs[i].ID >= id })
	if i < len(s.recs) && s.recs[i].ID == id {
		return i
	}
	return -1
}

func closeRecord(r *audit.Record, endAt time.Time, reason string) {
	end := endAt
	mins := audit.SessionMinutes(r.AttemptedAt, endAt)
	r.SessionEndAt = &end
	r.SessionDurationMinutes = &mins
	r.SessionEndReason = reason
}

func matches(r audit.Record, f audit.Filter) bool {
	if f.UserID != nil && (r.UserID == nil || *r.UserID != *f.UserID) {
		return false
	}
	if f.Email != "" && r.EmailAttempted != f.Email {
		return false
	}
	if f.IPAddress != "" && r.IPAddress != f.IPAddress {
		return false
	}
	if f.SessionID != "" && (r.SessionID == nil || *r.SessionID != f.SessionID) {
		return false
	}
	if len(f.Results) > 0 && !containsResult(f.Results, r.Result) {
		return false
	}
	if len(f.ExcludeResults) > 0 && containsResult(f.ExcludeResults, r.Result) {
		return false
	}
	if !f.Since.IsZero() && r.AttemptedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !r.AttemptedAt.Before(f.Until) {
		return false
	}
	if f.OpenSessions && !r.IsOpenSession() {
		return false
	}
	if f.SuspiciousOnly && !r.IsSuspicious {
		return false
	}
	if f.AfterID > 0 && r.ID <= f.AfterID {
		return false
	}
	return true
}

func containsResult(set []audit.LoginResult, r audit.LoginResult) bool {
	for _, x := range set {
		if x == r {
			return true
		}
	}
	return false
}

func copyRecord(r audit.Record) audit.Record {
	if r.UserID != nil {
		v := *r.UserID
		r.UserID = &v
	}
	if r.SessionID != nil {
		v := *r.SessionID
		r.SessionID = &v
	}
	if r.SessionEndAt != nil {
		v := *r.SessionEndAt
		r.SessionEndAt = &v
	}
	if r.SessionDurationMinutes != nil {
		v := *r.SessionDurationMinutes
		r.SessionDurationMinutes = &v
	}
	return r
}
