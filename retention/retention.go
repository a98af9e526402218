// Package retention runs the periodic maintenance of the login audit ledger:
// purging records past the retention period and closing sessions that
// outlived the session lifetime.
package retention

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/fleetauth/metrics"
)

const (
	JobCleanup      = "audit_cleanup"
	JobSessionSweep = "session_sweep"
)

// Ledger is the part of the audit service the jobs drive.
type Ledger interface {
	CleanupOlderThan(ctx context.Context, days int) (int, error)
	CloseExpiredSessions(ctx context.Context, maxAge time.Duration) (int, error)
}

// Options configures a Scheduler.
type Options struct {
	Ledger          Ledger // required
	RetentionDays   int
	SessionMaxAge   time.Duration // zero uses the ledger's own policy
	CleanupSchedule string        // cron expression, e.g. "0 3 * * *"
	SessionSchedule string        // cron expression or descriptor, e.g. "@every 5m"
	JobTimeout      time.Duration
	Logger          logrus.FieldLogger
}

// Scheduler runs the maintenance jobs on cron schedules. A job that is still
// running when its next tick fires is skipped.
type Scheduler struct {
	opts Options
	log  logrus.FieldLogger
	cron *cron.Cron

	mu      sync.Mutex
	baseCtx context.Context
}

// New validates opts and registers both jobs.
func New(opts Options) (*Scheduler, error) {
	if opts.Ledger == nil {
		return nil, errors.New("retention: ledger is required")
	}
	if opts.RetentionDays <= 0 {
		return nil, errors.New("retention: retention days must be positive")
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 5 * time.Minute
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "retention")

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{log}),
		cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
	)
	s := &Scheduler{opts: opts, log: log, cron: c, baseCtx: context.Background()}

	if opts.CleanupSchedule != "" {
		if _, err := c.AddFunc(opts.CleanupSchedule, func() { _ = s.RunCleanup(s.context()) }); err != nil {
			return nil, err
		}
	}
	if opts.SessionSchedule != "" {
		if _, err := c.AddFunc(opts.SessionSchedule, func() { _ = s.RunSessionSweep(s.context()) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"cleanup_schedule": s.opts.CleanupSchedule,
		"session_schedule": s.opts.SessionSchedule,
		"retention_days":   s.opts.RetentionDays,
	}).Info("retention scheduler started")
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("retention scheduler stopped")
	return nil
}

// RunCleanup deletes records older than the retention period.
func (s *Scheduler) RunCleanup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.JobTimeout)
	defer cancel()
	n, err := s.opts.Ledger.CleanupOlderThan(ctx, s.opts.RetentionDays)
	s.observe(JobCleanup, n, err)
	return err
}

// RunSessionSweep closes sessions past their maximum age.
func (s *Scheduler) RunSessionSweep(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.JobTimeout)
	defer cancel()
	n, err := s.opts.Ledger.CloseExpiredSessions(ctx, s.opts.SessionMaxAge)
	s.observe(JobSessionSweep, n, err)
	return err
}

func (s *Scheduler) observe(job string, n int, err error) {
	log := s.log.WithField("job", job)
	if err != nil {
		metrics.RetentionRuns.WithLabelValues(job, "error").Inc()
		log.WithError(err).Error("maintenance job failed")
		return
	}
	metrics.RetentionRuns.WithLabelValues(job, "ok").Inc()
	if n > 0 {
		log.WithField("affected", n).Info("maintenance job finished")
	} else {
		log.Debug("maintenance job finished; nothing to do")
	}
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct{ log logrus.FieldLogger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.WithFields(kvFields(kv)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.WithFields(kvFields(kv)).WithError(err).Error("cron: " + msg)
}

func kvFields(kv []any) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			f[k] = kv[i+1]
		}
	}
	return f
}
