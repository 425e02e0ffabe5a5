// Package schedule wires the engine's recurring jobs onto a cron scheduler:
// the deadline reminder pass, the weekly digest, and the notification
// retention sweep.
package schedule

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/permtrackhq/permtrack/internal/services"
	"github.com/permtrackhq/permtrack/pkg/logger"
)

const (
	defaultReminderSpec  = "0 9 * * *" // daily, after the calendar day has rolled over everywhere
	defaultDigestSpec    = "0 13 * * 1"
	defaultRetentionSpec = "@daily"

	defaultRetentionDays  = 90
	defaultRetentionBatch = 1000
)

// Runner coordinates the engine's background jobs. Any nil dependency results
// in the corresponding job being skipped.
type Runner struct {
	reminders     *services.ReminderService
	digests       *services.DigestService
	notifications *services.NotificationService
	cron          *cron.Cron
	log           *zap.Logger

	reminderSchedule  string
	digestSchedule    string
	retentionSchedule string
	retentionDays     int
	retentionBatch    int
}

// Option customises the Runner.
type Option func(*Runner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Runner) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithReminderSchedule overrides the cron specification for the reminder pass.
func WithReminderSchedule(spec string) Option {
	return func(r *Runner) {
		if spec != "" {
			r.reminderSchedule = spec
		}
	}
}

// WithDigestSchedule overrides the cron specification for the weekly digest.
func WithDigestSchedule(spec string) Option {
	return func(r *Runner) {
		if spec != "" {
			r.digestSchedule = spec
		}
	}
}

// WithRetentionSchedule overrides the cron specification for the retention sweep.
func WithRetentionSchedule(spec string) Option {
	return func(r *Runner) {
		if spec != "" {
			r.retentionSchedule = spec
		}
	}
}

// WithRetention adjusts how long read notifications are retained and how many
// rows a single sweep may delete.
func WithRetention(days, batch int) Option {
	return func(r *Runner) {
		if days > 0 {
			r.retentionDays = days
		}
		if batch > 0 {
			r.retentionBatch = batch
		}
	}
}

// NewRunner constructs a Runner with sensible defaults.
func NewRunner(reminders *services.ReminderService, digests *services.DigestService, notifications *services.NotificationService, opts ...Option) *Runner {
	r := &Runner{
		reminders:         reminders,
		digests:           digests,
		notifications:     notifications,
		reminderSchedule:  defaultReminderSpec,
		digestSchedule:    defaultDigestSpec,
		retentionSchedule: defaultRetentionSpec,
		retentionDays:     defaultRetentionDays,
		retentionBatch:    defaultRetentionBatch,
		log:               logger.WithModule("schedule"),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.cron == nil {
		r.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return r
}

// Start registers the jobs with the cron scheduler and launches it.
func (r *Runner) Start() error {
	if r.reminders != nil {
		if _, err := r.cron.AddFunc(r.reminderSchedule, func() {
			if _, err := r.reminders.Run(context.Background()); err != nil {
				r.log.Error("reminder pass failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if r.digests != nil {
		if _, err := r.cron.AddFunc(r.digestSchedule, func() {
			if _, err := r.digests.SendWeekly(context.Background()); err != nil {
				r.log.Error("weekly digest failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if r.notifications != nil {
		if _, err := r.cron.AddFunc(r.retentionSchedule, func() {
			if _, err := r.notifications.CleanupRead(context.Background(), r.retentionDays, r.retentionBatch); err != nil {
				r.log.Warn("retention sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	r.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (r *Runner) Stop() context.Context {
	if r.cron == nil {
		return context.Background()
	}
	return r.cron.Stop()
}

// RunOnce executes every configured job sequentially. Used in tests and
// during graceful shutdown so in-flight work is flushed.
func (r *Runner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if r.reminders != nil {
		if _, err := r.reminders.Run(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if r.digests != nil {
		if _, err := r.digests.SendWeekly(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if r.notifications != nil {
		if _, err := r.notifications.CleanupRead(ctx, r.retentionDays, r.retentionBatch); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
