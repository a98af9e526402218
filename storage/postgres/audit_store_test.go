package pgstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/autherr"
	"github.com/PaulFidika/fleetauth/authtest"
	pgstore "github.com/PaulFidika/fleetauth/storage/postgres"
)

var t0 = time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)

func newStore(t *testing.T) *pgstore.AuditStore {
	return pgstore.NewAuditStore(authtest.Postgres(t), "")
}

func strPtr(s string) *string { return &s }

func appendRec(t *testing.T, s *pgstore.AuditStore, rec audit.Record) audit.Record {
	t.Helper()
	require.NoError(t, s.Append(context.Background(), &rec))
	require.NotZero(t, rec.ID)
	return rec
}

func TestAppendGetRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	uid := uuid.NewString()
	rec := appendRec(t, s, audit.Record{
		UserID:         strPtr(uid),
		EmailAttempted: "driver@fleet.example",
		IPAddress:      "203.0.113.7",
		UserAgent:      "Mozilla/5.0",
		Browser:        "Firefox",
		Result:         audit.ResultSuccess,
		AttemptedAt:    t0,
		SessionID:      strPtr(uuid.NewString()),
	})

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, uid, *got.UserID)
	assert.Equal(t, audit.ResultSuccess, got.Result)
	assert.True(t, got.AttemptedAt.Equal(t0))
	assert.True(t, got.IsOpenSession())

	_, err = s.Get(ctx, -1)
	assert.ErrorIs(t, err, autherr.ErrRecordNotFound)
}

func TestFindFiltersAndOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	uid := uuid.NewString()
	for i, r := range []audit.LoginResult{audit.ResultInvalidCredentials, audit.ResultInvalidCredentials, audit.ResultSuccess, audit.ResultInvalidCredentials} {
		appendRec(t, s, audit.Record{UserID: strPtr(uid), Result: r, IPAddress: "198.51.100.1", AttemptedAt: t0.Add(time.Duration(i) * time.Minute)})
	}

	all, err := s.Find(ctx, audit.Filter{UserID: &uid})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.True(t, all[0].AttemptedAt.After(all[3].AttemptedAt), "newest first")

	asc, err := s.Find(ctx, audit.Filter{UserID: &uid, Ascending: true, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, asc, 2)
	assert.True(t, asc[0].AttemptedAt.Equal(t0.Add(time.Minute)))

	failures, err := s.Count(ctx, audit.Filter{UserID: &uid, Results: []audit.LoginResult{audit.ResultInvalidCredentials}, AfterID: all[1].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, failures, "only the failure after the success counts")

	notFailures, err := s.Count(ctx, audit.Filter{UserID: &uid, ExcludeResults: []audit.LoginResult{audit.ResultInvalidCredentials}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, notFailures)

	windowed, err := s.Count(ctx, audit.Filter{UserID: &uid, Since: t0.Add(time.Minute), Until: t0.Add(3 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 2, windowed)
}

func TestCloseSessionOnce(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	sid := uuid.NewString()
	rec := appendRec(t, s, audit.Record{UserID: strPtr(uuid.NewString()), Result: audit.ResultSuccess, AttemptedAt: t0, SessionID: &sid})

	closed, err := s.CloseSession(ctx, sid, t0.Add(29*time.Minute+59*time.Second), audit.EndReasonLogout)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = s.CloseSession(ctx, sid, t0.Add(time.Hour), audit.EndReasonForced)
	require.NoError(t, err)
	assert.False(t, closed)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SessionDurationMinutes)
	assert.Equal(t, 29, *got.SessionDurationMinutes)
	assert.Equal(t, audit.EndReasonLogout, got.SessionEndReason)
}

func TestCloseSessionsByFilter(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	uid := uuid.NewString()
	for i := 0; i < 3; i++ {
		appendRec(t, s, audit.Record{UserID: strPtr(uid), Result: audit.ResultSuccess, AttemptedAt: t0.Add(time.Duration(i) * time.Minute), SessionID: strPtr(uuid.NewString())})
	}
	appendRec(t, s, audit.Record{UserID: strPtr(uid), Result: audit.ResultInvalidCredentials, AttemptedAt: t0})

	n, err := s.CloseSessions(ctx, audit.Filter{UserID: &uid, Until: t0.Add(2 * time.Minute)}, t0.Add(time.Hour), audit.EndReasonTimeout)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	open, err := s.Count(ctx, audit.Filter{UserID: &uid, OpenSessions: true})
	require.NoError(t, err)
	assert.Equal(t, 1, open)
}

func TestMarkSuspiciousKeepsFirstReason(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	rec := appendRec(t, s, audit.Record{Result: audit.ResultUserNotFound, AttemptedAt: t0, EmailAttempted: "nobody@fleet.example"})

	ok, err := s.MarkSuspicious(ctx, rec.ID, "first")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.MarkSuspicious(ctx, rec.ID, "second")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.IsSuspicious)
	assert.Equal(t, "first", got.SuspiciousReason)

	ok, err = s.MarkSuspicious(ctx, -1, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteBefore(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	// far in the past so other tests' rows are untouched
	ancient := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	uid := uuid.NewString()
	appendRec(t, s, audit.Record{UserID: &uid, Result: audit.ResultLogout, AttemptedAt: ancient})
	appendRec(t, s, audit.Record{UserID: &uid, Result: audit.ResultLogout, AttemptedAt: ancient.Add(48 * time.Hour)})

	n, err := s.DeleteBefore(ctx, ancient.Add(24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	left, err := s.Count(ctx, audit.Filter{UserID: &uid})
	require.NoError(t, err)
	assert.Equal(t, 1, left)
}
