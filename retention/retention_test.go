package retention_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/clock"
	"github.com/PaulFidika/fleetauth/metrics"
	"github.com/PaulFidika/fleetauth/retention"
	memorystore "github.com/PaulFidika/fleetauth/storage/memory"
)

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func newLedger(t *testing.T) (*audit.Service, *memorystore.AuditStore, *clock.Fixed) {
	t.Helper()
	store := memorystore.NewAuditStore()
	clk := clock.NewFixed(t0)
	logger, _ := test.NewNullLogger()
	svc, err := audit.NewService(audit.Options{Store: store, Clock: clk, Logger: logger})
	require.NoError(t, err)
	return svc, store, clk
}

func record(t *testing.T, svc *audit.Service, res audit.LoginResult, session string) {
	t.Helper()
	uid := "user-1"
	a := audit.Attempt{UserID: &uid, Email: "driver@fleet.test", Result: res, IPAddress: "10.1.1.1"}
	if session != "" {
		a.SessionID = &session
	}
	_, err := svc.RecordAttempt(context.Background(), a)
	require.NoError(t, err)
}

func TestNewValidates(t *testing.T) {
	_, err := retention.New(retention.Options{RetentionDays: 30})
	require.Error(t, err)

	svc, _, _ := newLedger(t)
	_, err = retention.New(retention.Options{Ledger: svc})
	require.Error(t, err)

	_, err = retention.New(retention.Options{Ledger: svc, RetentionDays: 30, CleanupSchedule: "not a schedule"})
	require.Error(t, err)
}

func TestRunCleanupDeletesExpiredRecords(t *testing.T) {
	svc, store, clk := newLedger(t)
	record(t, svc, audit.ResultInvalidCredentials, "")
	record(t, svc, audit.ResultUserNotFound, "")
	clk.Advance(40 * 24 * time.Hour)
	record(t, svc, audit.ResultInvalidCredentials, "")

	logger, _ := test.NewNullLogger()
	s, err := retention.New(retention.Options{Ledger: svc, RetentionDays: 30, Logger: logger})
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.RetentionRuns.WithLabelValues(retention.JobCleanup, "ok"))
	require.NoError(t, s.RunCleanup(context.Background()))
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RetentionRuns.WithLabelValues(retention.JobCleanup, "ok")))
}

func TestRunSessionSweepClosesStaleSessions(t *testing.T) {
	svc, _, clk := newLedger(t)
	record(t, svc, audit.ResultSuccess, "sess-old")
	clk.Advance(20 * time.Minute)
	record(t, svc, audit.ResultSuccess, "sess-new")
	clk.Advance(15 * time.Minute)

	logger, _ := test.NewNullLogger()
	s, err := retention.New(retention.Options{Ledger: svc, RetentionDays: 365, SessionMaxAge: 30 * time.Minute, Logger: logger})
	require.NoError(t, err)
	require.NoError(t, s.RunSessionSweep(context.Background()))

	old, err := svc.FindSession(context.Background(), "sess-old")
	require.NoError(t, err)
	require.NotNil(t, old.SessionEndAt)
	assert.Equal(t, audit.EndReasonTimeout, old.SessionEndReason)

	fresh, err := svc.FindSession(context.Background(), "sess-new")
	require.NoError(t, err)
	assert.Nil(t, fresh.SessionEndAt)
}

type failingLedger struct{}

func (failingLedger) CleanupOlderThan(context.Context, int) (int, error) {
	return 0, errors.New("db down")
}

func (failingLedger) CloseExpiredSessions(context.Context, time.Duration) (int, error) {
	return 0, errors.New("db down")
}

func TestFailedRunIsCountedAndLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s, err := retention.New(retention.Options{Ledger: failingLedger{}, RetentionDays: 1, Logger: logger})
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.RetentionRuns.WithLabelValues(retention.JobSessionSweep, "error"))
	require.Error(t, s.RunSessionSweep(context.Background()))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RetentionRuns.WithLabelValues(retention.JobSessionSweep, "error")))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, retention.JobSessionSweep, hook.LastEntry().Data["job"])
}

func TestRunStopsWithContext(t *testing.T) {
	svc, _, _ := newLedger(t)
	logger, _ := test.NewNullLogger()
	s, err := retention.New(retention.Options{
		Ledger:          svc,
		RetentionDays:   30,
		CleanupSchedule: "0 3 * * *",
		SessionSchedule: "@every 1h",
		Logger:          logger,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
