// Package scheduler runs the periodic maintenance jobs: prediction-log
// retention and report cache warm-up.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/railwatch/railwatch/internal/domain"
	"github.com/robfig/cron/v3"
)

// Pruner deletes prediction logs older than a cutoff.
type Pruner interface {
	DeletePredictionLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Warmer precomputes reports.
type Warmer interface {
	Warm(ctx context.Context) error
}

// Scheduler owns a cron runner and the jobs registered on it.
type Scheduler struct {
	cron   *cron.Cron
	cfg    domain.SchedulerConfig
	pruner Pruner
	warmer Warmer
	now    func() time.Time
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// New creates a scheduler. A nil pruner or warmer disables its job, as does
// an empty schedule.
func New(cfg domain.SchedulerConfig, pruner Pruner, warmer Warmer) *Scheduler {
	logger := slogLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		cfg:    cfg,
		pruner: pruner,
		warmer: warmer,
		now:    time.Now,
	}
}

// Start registers the configured jobs and starts the runner.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.pruner != nil {
		if err := s.add(ctx, "retention", s.cfg.RetentionSchedule, s.RunRetention); err != nil {
			return err
		}
	}
	if s.warmer != nil {
		if err := s.add(ctx, "warm", s.cfg.WarmSchedule, s.RunWarm); err != nil {
			return err
		}
	}

	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

func (s *Scheduler) add(ctx context.Context, name, schedule string, job func(context.Context) error) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		slog.Info("job disabled", "job", name)
		return nil
	}

	_, err := s.cron.AddFunc(schedule, func() {
		start := time.Now()
		if err := job(ctx); err != nil {
			slog.Error("job failed", "job", name, "error", err)
			return
		}
		slog.Debug("job complete", "job", name, "duration_ms", time.Since(start).Milliseconds())
	})
	if err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", name, schedule, err)
	}

	slog.Info("job scheduled", "job", name, "schedule", schedule)
	return nil
}

// RunRetention deletes prediction logs older than the retention window.
func (s *Scheduler) RunRetention(ctx context.Context) error {
	if s.cfg.RetentionDays <= 0 {
		return nil
	}
	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
	n, err := s.pruner.DeletePredictionLogsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune prediction logs: %w", err)
	}
	slog.Info("prediction logs pruned", "deleted", n, "cutoff", cutoff)
	return nil
}

// RunWarm recomputes the default report.
func (s *Scheduler) RunWarm(ctx context.Context) error {
	return s.warmer.Warm(ctx)
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Stop stops the runner and waits for running jobs, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		slog.Warn("scheduler stop timed out")
	}
}

// slogLogger adapts cron's logger to slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
