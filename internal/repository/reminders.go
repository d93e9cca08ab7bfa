package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/pulsegate/pulsegate/internal/model"
)

// ReminderRepository stores scheduled actions.
type ReminderRepository interface {
	// Create inserts a reminder.
	Create(ctx context.Context, r *model.Reminder) error
	// Get loads one reminder scoped to its community.
	Get(ctx context.Context, communityID int64, id uuid.UUID) (*model.Reminder, error)
	// Due returns all non-completed reminders with fire_at <= now, ordered by
	// fire time.
	Due(ctx context.Context, now time.Time) ([]model.Reminder, error)
	// Reschedule moves a recurring reminder to its next fire time in place and
	// stamps last_executed_at.
	Reschedule(ctx context.Context, id uuid.UUID, nextFireAt time.Time) error
	// MarkCompleted flags the reminder as done.
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	// Delete cancels a reminder; reports whether a row was removed.
	Delete(ctx context.Context, communityID int64, id uuid.UUID) (bool, error)
	// ListByCommunity returns the community's reminders, newest fire time last.
	ListByCommunity(ctx context.Context, communityID int64, includeCompleted bool) ([]model.Reminder, error)
	// ListByCreator returns reminders created by the person.
	ListByCreator(ctx context.Context, communityID, creatorID int64, includeCompleted bool) ([]model.Reminder, error)
	// ListForTarget returns reminders aimed at the person.
	ListForTarget(ctx context.Context, communityID, targetID int64, includeCompleted bool) ([]model.Reminder, error)
}
