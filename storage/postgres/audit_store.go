// Package pgstore is the Postgres implementation of the login audit ledger.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/autherr"
)

// AuditStore implements audit.Store on the login_audit table.
type AuditStore struct {
	pg     *pgxpool.Pool
	schema string
}

var _ audit.Store = (*AuditStore)(nil)

// NewAuditStore returns a store on pg. An empty schema means "auth".
func NewAuditStore(pg *pgxpool.Pool, schema string) *AuditStore {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "auth"
	}
	return &AuditStore{pg: pg, schema: s}
}

func (s *AuditStore) table() string { return s.schema + ".login_audit" }

const recordColumns = `id, user_id, email_attempted, ip_address, user_agent, browser, os, device,
	result, attempted_at, session_id, session_end_at, session_duration_minutes, session_end_reason,
	is_suspicious, suspicious_reason, detail`

func (s *AuditStore) Append(ctx context.Context, rec *audit.Record) error {
	return s.pg.QueryRow(ctx, `INSERT INTO `+s.table()+`
		(user_id, email_attempted, ip_address, user_agent, browser, os, device, result, attempted_at,
		 session_id, session_end_at, session_duration_minutes, session_end_reason, is_suspicious, suspicious_reason, detail)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id`,
		rec.UserID, rec.EmailAttempted, rec.IPAddress, rec.UserAgent, rec.Browser, rec.OS, rec.Device,
		string(rec.Result), rec.AttemptedAt, rec.SessionID, rec.SessionEndAt, rec.SessionDurationMinutes,
		rec.SessionEndReason, rec.IsSuspicious, rec.SuspiciousReason, rec.Detail,
	).Scan(&rec.ID)
}

func (s *AuditStore) Get(ctx context.Context, id int64) (*audit.Record, error) {
	rec, err := scanRecord(s.pg.QueryRow(ctx, `SELECT `+recordColumns+` FROM `+s.table()+` WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, autherr.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *AuditStore) Find(ctx context.Context, f audit.Filter) ([]audit.Record, error) {
	where, args := buildWhere(f)
	order := "DESC"
	if f.Ascending {
		order = "ASC"
	}
	q := `SELECT ` + recordColumns + ` FROM ` + s.table() + where +
		` ORDER BY attempted_at ` + order + `, id ` + order
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := s.pg.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []audit.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *AuditStore) Count(ctx context.Context, f audit.Filter) (int, error) {
	where, args := buildWhere(f)
	var n int
	err := s.pg.QueryRow(ctx, `SELECT count(*) FROM `+s.table()+where, args...).Scan(&n)
	return n, err
}

const closeSet = ` SET session_end_at = $1,
	session_duration_minutes = GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($1::timestamptz - attempted_at)) / 60))::int,
	session_end_reason = $2`

func (s *AuditStore) CloseSession(ctx context.Context, sessionID string, endAt time.Time, reason string) (bool, error) {
	tag, err := s.pg.Exec(ctx, `UPDATE `+s.table()+closeSet+`
		WHERE session_id = $3 AND result = 'success' AND session_end_at IS NULL`,
		endAt, reason, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *AuditStore) CloseSessions(ctx context.Context, f audit.Filter, endAt time.Time, reason string) (int, error) {
	f.OpenSessions = true
	f.Limit, f.Offset = 0, 0
	b := &whereBuilder{args: []any{endAt, reason}}
	b.apply(f)
	tag, err := s.pg.Exec(ctx, `UPDATE `+s.table()+closeSet+b.sql(), b.args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *AuditStore) MarkSuspicious(ctx context.Context, id int64, reason string) (bool, error) {
	tag, err := s.pg.Exec(ctx, `UPDATE `+s.table()+`
		SET suspicious_reason = CASE WHEN is_suspicious THEN suspicious_reason ELSE $2 END,
		    is_suspicious = true
		WHERE id = $1`, id, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *AuditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pg.Exec(ctx, `DELETE FROM `+s.table()+` WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanRecord(row pgx.Row) (*audit.Record, error) {
	var (
		r      audit.Record
		result string
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.EmailAttempted, &r.IPAddress, &r.UserAgent, &r.Browser, &r.OS, &r.Device,
		&result, &r.AttemptedAt, &r.SessionID, &r.SessionEndAt, &r.SessionDurationMinutes, &r.SessionEndReason,
		&r.IsSuspicious, &r.SuspiciousReason, &r.Detail); err != nil {
		return nil, err
	}
	r.Result = audit.LoginResult(result)
	r.AttemptedAt = r.AttemptedAt.UTC()
	if r.SessionEndAt != nil {
		t := r.SessionEndAt.UTC()
		r.SessionEndAt = &t
	}
	return &r, nil
}

// whereBuilder renders an audit.Filter as a WHERE clause with numbered
// placeholders continuing after any args already present.
type whereBuilder struct {
	conds []string
	args  []any
}

func (b *whereBuilder) add(cond string, v any) {
	b.args = append(b.args, v)
	b.conds = append(b.conds, fmt.Sprintf(cond, len(b.args)))
}

func (b *whereBuilder) apply(f audit.Filter) {
	if f.UserID != nil {
		b.add("user_id = $%d", *f.UserID)
	}
	if f.Email != "" {
		b.add("email_attempted = $%d", f.Email)
	}
	if f.IPAddress != "" {
		b.add("ip_address = $%d", f.IPAddress)
	}
	if f.SessionID != "" {
		b.add("session_id = $%d", f.SessionID)
	}
	if len(f.Results) > 0 {
		b.add("result = ANY($%d)", resultStrings(f.Results))
	}
	if len(f.ExcludeResults) > 0 {
		b.add("NOT (result = ANY($%d))", resultStrings(f.ExcludeResults))
	}
	if !f.Since.IsZero() {
		b.add("attempted_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		b.add("attempted_at < $%d", f.Until)
	}
	if f.OpenSessions {
		b.conds = append(b.conds, "result = 'success' AND session_id IS NOT NULL AND session_end_at IS NULL")
	}
	if f.SuspiciousOnly {
		b.conds = append(b.conds, "is_suspicious")
	}
	if f.AfterID > 0 {
		b.add("id > $%d", f.AfterID)
	}
}

func (b *whereBuilder) sql() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

func buildWhere(f audit.Filter) (string, []any) {
	b := &whereBuilder{}
	b.apply(f)
	return b.sql(), b.args
}

func resultStrings(rs []audit.LoginResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}
