// Package identity is the Postgres-backed account store used by the
// authentication service.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PaulFidika/fleetauth/autherr"
	"github.com/PaulFidika/fleetauth/clock"
	"github.com/PaulFidika/fleetauth/core"
	"github.com/PaulFidika/fleetauth/password"
)

// Store implements core.IdentityStore against the auth schema.
type Store struct {
	pg     *pgxpool.Pool
	schema string
	hasher password.Hasher
	clock  clock.Clock
}

var _ core.IdentityStore = (*Store)(nil)

// NewStore returns a store on pg. An empty schema means "auth"; a nil hasher
// means Argon2id with default parameters.
func NewStore(pg *pgxpool.Pool, schema string, hasher password.Hasher, c clock.Clock) *Store {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "auth"
	}
	if hasher == nil {
		hasher = password.Argon2{}
	}
	return &Store{pg: pg, schema: s, hasher: hasher, clock: clock.Or(c)}
}

func (s *Store) accountsTable() string { return s.schema + ".accounts" }
func (s *Store) rolesTable() string    { return s.schema + ".account_roles" }

func (s *Store) selectAccount() string {
	return `SELECT a.id, a.email, a.password_hash, a.status, a.failed_attempts, a.lockout_until,
	a.last_login_at, a.last_login_ip, a.created_at, a.updated_at, a.version,
	COALESCE((SELECT array_agg(r.role ORDER BY r.role) FROM ` + s.rolesTable() + ` r WHERE r.account_id = a.id), '{}')
	FROM ` + s.accountsTable() + ` a `
}

func scanAccount(row pgx.Row) (*core.Account, error) {
	var (
		a      core.Account
		id     uuid.UUID
		status string
	)
	err := row.Scan(&id, &a.Email, &a.PasswordHash, &status, &a.FailedAttempts, &a.LockoutUntil,
		&a.LastLoginAt, &a.LastLoginIP, &a.CreatedAt, &a.UpdatedAt, &a.Version, &a.Roles)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, autherr.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	a.ID = id.String()
	a.Status = core.AccountStatus(status)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	a.LockoutUntil = utcPtr(a.LockoutUntil)
	a.LastLoginAt = utcPtr(a.LastLoginAt)
	return &a, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*core.Account, error) {
	email = core.NormalizeEmail(email)
	if email == "" {
		return nil, autherr.ErrAccountNotFound
	}
	return scanAccount(s.pg.QueryRow(ctx, s.selectAccount()+`WHERE lower(a.email) = $1 LIMIT 1`, email))
}

func (s *Store) FindByID(ctx context.Context, id string) (*core.Account, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, autherr.ErrAccountNotFound
	}
	return scanAccount(s.pg.QueryRow(ctx, s.selectAccount()+`WHERE a.id = $1`, uid))
}

// VerifyPassword re-reads the hash so a concurrent password change is honored.
func (s *Store) VerifyPassword(ctx context.Context, acct *core.Account, pw string) (bool, error) {
	uid, err := uuid.Parse(acct.ID)
	if err != nil {
		return false, autherr.ErrAccountNotFound
	}
	var hash string
	err = s.pg.QueryRow(ctx, `SELECT password_hash FROM `+s.accountsTable()+` WHERE id = $1`, uid).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, autherr.ErrAccountNotFound
	}
	if err != nil {
		return false, err
	}
	return s.hasher.Verify(hash, pw)
}

// UpdateAccount is a compare-and-swap on version.
func (s *Store) UpdateAccount(ctx context.Context, acct *core.Account) error {
	uid, err := uuid.Parse(acct.ID)
	if err != nil {
		return autherr.ErrAccountNotFound
	}
	now := s.clock.Now()
	var version int64
	err = s.pg.QueryRow(ctx, `UPDATE `+s.accountsTable()+`
		SET status=$3, failed_attempts=$4, lockout_until=$5, last_login_at=$6, last_login_ip=$7,
		    updated_at=$8, version=version+1
		WHERE id=$1 AND version=$2
		RETURNING version`,
		uid, acct.Version, string(acct.Status), acct.FailedAttempts, acct.LockoutUntil,
		acct.LastLoginAt, acct.LastLoginIP, now).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.missOrStale(ctx, uid)
	}
	if err != nil {
		return err
	}
	acct.Version = version
	acct.UpdatedAt = now
	return nil
}

// missOrStale tells an unknown account apart from a lost version race.
func (s *Store) missOrStale(ctx context.Context, uid uuid.UUID) error {
	var exists bool
	if err := s.pg.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+s.accountsTable()+` WHERE id=$1)`, uid).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return autherr.ErrAccountNotFound
	}
	return autherr.ErrStaleAccount
}

func (s *Store) CreateAccount(ctx context.Context, in core.NewAccount) (*core.Account, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = core.StatusActive
	}
	id := uuid.New()
	now := s.clock.Now()

	tx, err := s.pg.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `INSERT INTO `+s.accountsTable()+`
		(id, email, password_hash, status, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $5, 1)`,
		id, core.NormalizeEmail(in.Email), hash, string(status), now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, autherr.ErrEmailTaken
		}
		return nil, err
	}
	for _, role := range in.Roles {
		role = normalizeRole(role)
		if role == "" {
			continue
		}
		if _, err := tx.Exec(ctx, `INSERT INTO `+s.rolesTable()+` (account_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, role); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id.String())
}

func (s *Store) SetPassword(ctx context.Context, userID, pw string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return autherr.ErrAccountNotFound
	}
	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return err
	}
	tag, err := s.pg.Exec(ctx, `UPDATE `+s.accountsTable()+` SET password_hash=$2, updated_at=$3, version=version+1 WHERE id=$1`, uid, hash, s.clock.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return autherr.ErrAccountNotFound
	}
	return nil
}

func (s *Store) Roles(ctx context.Context, userID string) ([]string, error) {
	acct, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return acct.Roles, nil
}

func (s *Store) AddRole(ctx context.Context, userID, role string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return autherr.ErrAccountNotFound
	}
	_, err = s.pg.Exec(ctx, `INSERT INTO `+s.rolesTable()+` (account_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`, uid, normalizeRole(role))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return autherr.ErrAccountNotFound
		}
		return err
	}
	return nil
}

func (s *Store) RemoveRole(ctx context.Context, userID, role string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return autherr.ErrAccountNotFound
	}
	_, err = s.pg.Exec(ctx, `DELETE FROM `+s.rolesTable()+` WHERE account_id=$1 AND role=$2`, uid, normalizeRole(role))
	return err
}

func normalizeRole(r string) string { return strings.ToLower(strings.TrimSpace(r)) }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
