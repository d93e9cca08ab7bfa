package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/metrics"
	"github.com/pulsegate/pulsegate/internal/model"
	"github.com/pulsegate/pulsegate/internal/notify"
	"github.com/pulsegate/pulsegate/internal/recurrence"
	"github.com/pulsegate/pulsegate/internal/repository"
)

// DefaultPollInterval is how often the runner scans for due reminders.
const DefaultPollInterval = 30 * time.Second

// Runner executes due reminders. Due actions are processed sequentially;
// a busy device leaves the reminder due for the next tick, any other failure
// completes it so it cannot fire again. Recurring reminders that fire
// successfully are rescheduled in place.
type Runner struct {
	reminders  repository.ReminderRepository
	dispatcher Dispatcher
	notifier   notify.Notifier
	metrics    *metrics.Metrics
	logger     *zap.Logger
	interval   time.Duration
	now        func() time.Time
}

// NewRunner constructs a Runner. metrics may be nil in tests.
func NewRunner(reminders repository.ReminderRepository, dispatcher Dispatcher, notifier notify.Notifier, m *metrics.Metrics, logger *zap.Logger, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Runner{
		reminders:  reminders,
		dispatcher: dispatcher,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
		interval:   interval,
		now:        time.Now,
	}
}

// Run polls until the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("scheduler started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			r.processDue(ctx)
		}
	}
}

func (r *Runner) processDue(ctx context.Context) {
	if r.metrics != nil {
		r.metrics.SchedulerTicks.Inc()
	}
	due, err := r.reminders.Due(ctx, r.now().UTC())
	if err != nil {
		r.logger.Error("list due reminders", zap.Error(err))
		return
	}
	for i := range due {
		r.processOne(ctx, &due[i])
	}
}

// processOne handles a single due reminder; panics are contained so one bad
// reminder cannot take down the loop. A reminder that panics is completed,
// otherwise it would be re-dispatched every tick forever.
func (r *Runner) processOne(ctx context.Context, rem *model.Reminder) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("reminder processing panicked",
				zap.String("reminder_id", rem.ID.String()),
				zap.Any("panic", p))
			r.count("failed")
			r.complete(ctx, rem)
		}
	}()

	_, err := r.dispatcher.Dispatch(ctx, model.ActionRequest{
		CommunityID:    rem.CommunityID,
		ControllerID:   rem.CreatorID,
		TargetPersonID: rem.TargetPersonID,
		Kind:           rem.Kind,
		Intensity:      rem.Intensity,
		DurationMS:     rem.DurationMS,
		Label:          "reminder: " + rem.Reason,
		Source:         model.SourceReminder,
	})

	switch {
	case err == nil:
		r.count("fired")
		r.onSuccess(ctx, rem)

	case isDeviceCooldown(err):
		// The device itself is still busy. This is the one failure that
		// leaves the reminder due for the next tick.
		r.count("postponed")

	default:
		r.count("failed")
		r.logger.Warn("reminder dispatch failed",
			zap.String("reminder_id", rem.ID.String()),
			zap.Error(err))
		r.complete(ctx, rem)
		r.sendNote(ctx, rem, fmt.Sprintf("Scheduled action %q could not fire: %s", rem.Reason, failureNote(err)))
	}
}

func (r *Runner) onSuccess(ctx context.Context, rem *model.Reminder) {
	r.sendNote(ctx, rem, fmt.Sprintf("Scheduled action fired: %s", rem.Reason))

	if !rem.Recurring {
		r.complete(ctx, rem)
		return
	}

	p, err := recurrence.Parse(rem.Recurrence)
	if err != nil {
		r.logger.Warn("recurring reminder has unparseable pattern, completing",
			zap.String("reminder_id", rem.ID.String()),
			zap.String("recurrence", rem.Recurrence))
		r.complete(ctx, rem)
		return
	}
	next, ok := recurrence.Next(p, r.now().UTC(), rem.CreatedAt.UTC())
	if !ok {
		r.complete(ctx, rem)
		return
	}
	if err := r.reminders.Reschedule(ctx, rem.ID, next); err != nil {
		r.logger.Error("reschedule reminder",
			zap.String("reminder_id", rem.ID.String()),
			zap.Error(err))
	}
}

func (r *Runner) complete(ctx context.Context, rem *model.Reminder) {
	if err := r.reminders.MarkCompleted(ctx, rem.ID); err != nil {
		r.logger.Error("mark reminder completed",
			zap.String("reminder_id", rem.ID.String()),
			zap.Error(err))
	}
}

func (r *Runner) sendNote(ctx context.Context, rem *model.Reminder, text string) {
	err := r.notifier.Send(ctx, notify.Message{
		CommunityID: rem.CommunityID,
		PersonID:    rem.TargetPersonID,
		ChannelID:   rem.ChannelID,
		Text:        text,
	})
	if err != nil {
		r.logger.Debug("reminder notification failed", zap.Error(err))
	}
}

func (r *Runner) count(disposition string) {
	if r.metrics != nil {
		r.metrics.RemindersProcessed.WithLabelValues(disposition).Inc()
	}
}

func isDeviceCooldown(err error) bool {
	ce, ok := errs.IsCooldown(err)
	return ok && ce.Axis == errs.AxisDevice
}

func failureNote(err error) string {
	if ce, ok := errs.IsCooldown(err); ok {
		return fmt.Sprintf("the %s cooldown had not elapsed", ce.Axis)
	}
	switch {
	case errors.Is(err, errs.ErrNotRegistered):
		return "the target is no longer registered"
	case errors.Is(err, errs.ErrNoDevices):
		return "the target has no devices"
	case errors.Is(err, errs.ErrNoConsent):
		return "consent has been revoked"
	case errors.Is(err, errs.ErrDeviceNotWorn):
		return "the device is not being worn"
	}
	var ext *errs.ExternalError
	if errors.As(err, &ext) {
		return "the control service rejected the request"
	}
	return "an internal error occurred"
}
