package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/upstream-pm/upstream/internal/config"
	"github.com/upstream-pm/upstream/internal/logging"
	"github.com/upstream-pm/upstream/internal/milestone"
	"go.uber.org/zap"
)

// Runner delivers due reminders and marks them sent.
type Runner struct {
	scanner  *Scanner
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewRunner returns a Runner scanning the milestones of mgr.
func NewRunner(mgr *milestone.Manager, notifier Notifier, logger *zap.Logger) *Runner {
	return &Runner{
		scanner:  NewScanner(mgr),
		notifier: notifier,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

// RunOnce notifies every due reminder and returns how many were sent. A
// reminder that fails to deliver stays unsent and is retried on the next run.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	due, err := r.scanner.Due(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("reminder: scan: %w", err)
	}

	sent := 0
	var errs []error
	for _, d := range due {
		if err := r.notifier.Notify(ctx, d); err != nil {
			r.logger.Warn("reminder delivery failed",
				zap.Uint("milestone_id", d.MilestoneID),
				zap.String("reminder_id", d.Reminder.ID),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		if err := d.ms.MarkReminderSent(ctx, d.Reminder.ID, r.now()); err != nil {
			errs = append(errs, fmt.Errorf("reminder: mark %s sent: %w", d.Reminder.ID, err))
			continue
		}
		sent++
	}
	if sent > 0 {
		r.logger.Info("reminders sent", zap.Int("count", sent))
	}
	return sent, errors.Join(errs...)
}

// Start runs RunOnce on the given 5-field cron schedule until ctx is done.
func (r *Runner) Start(ctx context.Context, schedule string) error {
	sched, err := config.CronParser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("reminder: parse schedule %q: %w", schedule, err)
	}

	timer := time.NewTimer(r.untilNext(sched))
	defer timer.Stop()
	r.logger.Info("reminder scheduler started", zap.String("schedule", schedule))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reminder scheduler stopped")
			return nil
		case <-timer.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("reminder run failed", zap.Error(err))
			}
			timer.Reset(r.untilNext(sched))
		}
	}
}

func (r *Runner) untilNext(sched cron.Schedule) time.Duration {
	now := r.now()
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
