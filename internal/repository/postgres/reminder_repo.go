package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/model"
)

// ReminderRepo implements ReminderRepository using PostgreSQL.
type ReminderRepo struct{ db *DB }

// NewReminderRepo constructs a reminder repository.
func NewReminderRepo(db *DB) *ReminderRepo { return &ReminderRepo{db: db} }

const reminderColumns = `id, community_id, target_person, creator_id, fire_at, reason, kind,
       intensity, duration_ms, channel_id, completed, recurring, recurrence, last_executed_at, created_at`

// Create inserts a reminder row.
func (r *ReminderRepo) Create(ctx context.Context, rem *model.Reminder) error {
	const q = `
INSERT INTO reminders (id, community_id, target_person, creator_id, fire_at, reason, kind,
                       intensity, duration_ms, channel_id, recurring, recurrence)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.db.Pool.Exec(ctx, q,
		rem.ID, rem.CommunityID, rem.TargetPersonID, rem.CreatorID, rem.FireAt, rem.Reason,
		string(rem.Kind), rem.Intensity, rem.DurationMS, rem.ChannelID, rem.Recurring, rem.Recurrence)
	return err
}

// Get loads one reminder scoped to its community.
func (r *ReminderRepo) Get(ctx context.Context, communityID int64, id uuid.UUID) (*model.Reminder, error) {
	q := `SELECT ` + reminderColumns + ` FROM reminders WHERE community_id=$1 AND id=$2`
	row := r.db.Pool.QueryRow(ctx, q, communityID, id)
	rem, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return rem, nil
}

// Due returns non-completed reminders whose fire time has passed.
func (r *ReminderRepo) Due(ctx context.Context, now time.Time) ([]model.Reminder, error) {
	q := `SELECT ` + reminderColumns + ` FROM reminders WHERE NOT completed AND fire_at <= $1 ORDER BY fire_at`
	rows, err := r.db.Pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

// Reschedule moves a recurring reminder forward and stamps the execution.
func (r *ReminderRepo) Reschedule(ctx context.Context, id uuid.UUID, nextFireAt time.Time) error {
	const q = `UPDATE reminders SET fire_at=$2, last_executed_at=now() WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, nextFireAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// MarkCompleted flags the reminder as done.
func (r *ReminderRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE reminders SET completed=true, last_executed_at=now() WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete cancels a reminder.
func (r *ReminderRepo) Delete(ctx context.Context, communityID int64, id uuid.UUID) (bool, error) {
	const q = `DELETE FROM reminders WHERE community_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, communityID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByCommunity returns the community's reminders ordered by fire time.
func (r *ReminderRepo) ListByCommunity(ctx context.Context, communityID int64, includeCompleted bool) ([]model.Reminder, error) {
	q := `SELECT ` + reminderColumns + ` FROM reminders WHERE community_id=$1`
	if !includeCompleted {
		q += ` AND NOT completed`
	}
	q += ` ORDER BY fire_at`
	rows, err := r.db.Pool.Query(ctx, q, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

// ListByCreator returns reminders created by the person.
func (r *ReminderRepo) ListByCreator(ctx context.Context, communityID, creatorID int64, includeCompleted bool) ([]model.Reminder, error) {
	q := `SELECT ` + reminderColumns + ` FROM reminders WHERE community_id=$1 AND creator_id=$2`
	if !includeCompleted {
		q += ` AND NOT completed`
	}
	q += ` ORDER BY fire_at`
	rows, err := r.db.Pool.Query(ctx, q, communityID, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

// ListForTarget returns reminders aimed at the person.
func (r *ReminderRepo) ListForTarget(ctx context.Context, communityID, targetID int64, includeCompleted bool) ([]model.Reminder, error) {
	q := `SELECT ` + reminderColumns + ` FROM reminders WHERE community_id=$1 AND target_person=$2`
	if !includeCompleted {
		q += ` AND NOT completed`
	}
	q += ` ORDER BY fire_at`
	rows, err := r.db.Pool.Query(ctx, q, communityID, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

func scanReminder(row pgx.Row) (*model.Reminder, error) {
	var rem model.Reminder
	err := row.Scan(&rem.ID, &rem.CommunityID, &rem.TargetPersonID, &rem.CreatorID, &rem.FireAt,
		&rem.Reason, &rem.Kind, &rem.Intensity, &rem.DurationMS, &rem.ChannelID,
		&rem.Completed, &rem.Recurring, &rem.Recurrence, &rem.LastExecutedAt, &rem.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rem, nil
}

func scanReminders(rows pgx.Rows) ([]model.Reminder, error) {
	var out []model.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rem)
	}
	return out, rows.Err()
}
