package memorystore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PaulFidika/fleetauth/autherr"
	"github.com/PaulFidika/fleetauth/clock"
	"github.com/PaulFidika/fleetauth/core"
	"github.com/PaulFidika/fleetauth/password"
)

// IdentityStore is an in-memory core.IdentityStore with the same optimistic
// concurrency contract as the Postgres store.
type IdentityStore struct {
	mu      sync.RWMutex
	hasher  password.Hasher
	clock   clock.Clock
	byID    map[string]*core.Account
	byEmail map[string]string
}

var _ core.IdentityStore = (*IdentityStore)(nil)

// NewIdentityStore returns an empty store. A nil hasher uses Argon2id defaults.
func NewIdentityStore(hasher password.Hasher, c clock.Clock) *IdentityStore {
	if hasher == nil {
		hasher = password.Argon2{}
	}
	return &IdentityStore{
		hasher:  hasher,
		clock:   clock.Or(c),
		byID:    make(map[string]*core.Account),
		byEmail: make(map[string]string),
	}
}

func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*core.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[core.NormalizeEmail(email)]
	if !ok {
		return nil, autherr.ErrAccountNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *IdentityStore) FindByID(ctx context.Context, id string) (*core.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, autherr.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (s *IdentityStore) VerifyPassword(ctx context.Context, acct *core.Account, pw string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	a, ok := s.byID[acct.ID]
	var hash string
	if ok {
		hash = a.PasswordHash
	}
	s.mu.RUnlock()
	if !ok {
		return false, autherr.ErrAccountNotFound
	}
	return s.hasher.Verify(hash, pw)
}

func (s *IdentityStore) UpdateAccount(ctx context.Context, acct *core.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[acct.ID]
	if !ok {
		return autherr.ErrAccountNotFound
	}
	if cur.Version != acct.Version {
		return autherr.ErrStaleAccount
	}
	cur.Status = acct.Status
	cur.FailedAttempts = acct.FailedAttempts
	cur.LockoutUntil = copyTime(acct.LockoutUntil)
	cur.LastLoginAt = copyTime(acct.LastLoginAt)
	cur.LastLoginIP = acct.LastLoginIP
	cur.UpdatedAt = s.clock.Now()
	cur.Version++
	acct.Version = cur.Version
	acct.UpdatedAt = cur.UpdatedAt
	return nil
}

func (s *IdentityStore) CreateAccount(ctx context.Context, in core.NewAccount) (*core.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	email := core.NormalizeEmail(in.Email)
	status := in.Status
	if status == "" {
		status = core.StatusActive
	}
	now := s.clock.Now()
	a := &core.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Roles:        normalizeRoles(in.Roles),
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[email]; taken {
		return nil, autherr.ErrEmailTaken
	}
	s.byID[a.ID] = a
	s.byEmail[email] = a.ID
	return a.Clone(), nil
}

func (s *IdentityStore) SetPassword(ctx context.Context, userID, pw string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[userID]
	if !ok {
		return autherr.ErrAccountNotFound
	}
	a.PasswordHash = hash
	a.UpdatedAt = s.clock.Now()
	a.Version++
	return nil
}

func (s *IdentityStore) Roles(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[userID]
	if !ok {
		return nil, autherr.ErrAccountNotFound
	}
	return append([]string(nil), a.Roles...), nil
}

func (s *IdentityStore) AddRole(ctx context.Context, userID, role string) error {
	return s.editRoles(ctx, userID, func(roles []string) []string {
		return normalizeRoles(append(roles, role))
	})
}

func (s *IdentityStore) RemoveRole(ctx context.Context, userID, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	return s.editRoles(ctx, userID, func(roles []string) []string {
		out := roles[:0]
		for _, r := range roles {
			if r != role {
				out = append(out, r)
			}
		}
		return out
	})
}

func (s *IdentityStore) editRoles(ctx context.Context, userID string, fn func([]string) []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[userID]
	if !ok {
		return autherr.ErrAccountNotFound
	}
	a.Roles = fn(append([]string(nil), a.Roles...))
	return nil
}

// normalizeRoles lower-cases, dedupes and sorts role names.
func normalizeRoles(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
