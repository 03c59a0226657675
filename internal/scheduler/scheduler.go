// Package scheduler drives the periodic compliance jobs: deadline warnings
// and reminders, window publications, ephemeral cleanup and summaries.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"reportbot/internal/compliance"
	"reportbot/internal/config"
	"reportbot/internal/notify"
	"reportbot/internal/storage"
	"reportbot/internal/window"
)

const everyMinute = "* * * * *"

// Scheduler evaluates every active channel on its jobs' cadences.
type Scheduler struct {
	store    storage.Storage
	eval     *compliance.Evaluator
	dispatch *notify.Dispatcher
	window   *window.Model
	cfg      *config.Config
	log      *slog.Logger
	now      func() time.Time

	warnings     *job
	reminders    *job
	publications *job
	cleanup      *job
	checkouts    *job
	weekly       *job
}

// New creates a Scheduler that delivers through n.
func New(store storage.Storage, n notify.Notifier, cfg *config.Config, log *slog.Logger) *Scheduler {
	s := &Scheduler{
		store:    store,
		eval:     compliance.NewEvaluator(store),
		dispatch: notify.NewDispatcher(n, notify.NewMemory(), log),
		window:   window.New(cfg.Location),
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
	s.warnings = &job{name: "warning_scan", run: s.warningScan}
	s.reminders = &job{name: "reminder_scan", run: s.reminderScan}
	s.publications = &job{name: "publication_scan", run: s.publicationScan}
	s.cleanup = &job{name: "ephemeral_cleanup", run: func(ctx context.Context, log *slog.Logger, now time.Time) {
		s.cleanupEphemeral(ctx, log, now)
	}}
	s.checkouts = &job{name: "checkout_summary", run: s.checkoutSummary}
	s.weekly = &job{name: "weekly_summary", run: s.weeklySummary}
	return s
}

// Run registers the jobs on a cron in the configured timezone and blocks
// until ctx is cancelled. Running jobs are allowed to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(s.window.Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)

	entries := []struct {
		spec string
		job  *job
	}{
		{everyMinute, s.warnings},
		{everyMinute, s.reminders},
		{everyMinute, s.publications},
		{daily(s.cfg.CleanupTime.Hour, s.cfg.CleanupTime.Minute), s.cleanup},
		{daily(s.cfg.CheckoutSummaryTime.Hour, s.cfg.CheckoutSummaryTime.Minute), s.checkouts},
		{weekly(s.cfg.WeeklySummaryDay, s.cfg.WeeklySummaryTime.Hour, s.cfg.WeeklySummaryTime.Minute), s.weekly},
	}
	for _, e := range entries {
		if _, err := c.AddJob(e.spec, s.cronJob(ctx, e.job, logger)); err != nil {
			return fmt.Errorf("schedule %s %q: %w", e.job.name, e.spec, err)
		}
	}

	s.log.Info("scheduler started", "timezone", s.window.Location().String())
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

func daily(hour, minute int) string {
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

func weekly(day time.Weekday, hour, minute int) string {
	return fmt.Sprintf("%d %d * * %d", minute, hour, int(day))
}

// job is a named scheduler task.
type job struct {
	name string
	run  func(ctx context.Context, log *slog.Logger, now time.Time)
}

// cronJob wraps j for the cron. A tick that arrives while the previous run
// of j is still in flight is skipped, not queued.
func (s *Scheduler) cronJob(ctx context.Context, j *job, logger cron.Logger) cron.Job {
	return cron.NewChain(cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		s.runJob(ctx, j)
	}))
}

func (s *Scheduler) runJob(ctx context.Context, j *job) {
	log := s.log.With("job", j.name, "run_id", uuid.NewString())
	start := time.Now()
	j.run(ctx, log, s.now())
	log.Debug("job finished", "duration", time.Since(start))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	if msg == "skip" {
		l.log.Warn("cron: job still running, skipping tick", keysAndValues...)
		return
	}
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
