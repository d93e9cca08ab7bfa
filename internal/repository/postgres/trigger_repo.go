package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/model"
)

// TriggerRepo implements TriggerRepository using PostgreSQL.
type TriggerRepo struct{ db *DB }

// NewTriggerRepo constructs a trigger repository.
func NewTriggerRepo(db *DB) *TriggerRepo { return &TriggerRepo{db: db} }

// Create inserts a trigger row.
func (r *TriggerRepo) Create(ctx context.Context, t *model.Trigger) error {
	const q = `
INSERT INTO triggers (id, registration_id, name, pattern, kind, intensity, duration_ms, cooldown_sec, enabled)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.db.Pool.Exec(ctx, q,
		t.ID, t.RegistrationID, t.Name, t.Pattern, string(t.Kind), t.Intensity, t.DurationMS, t.CooldownSec, t.Enabled)
	return err
}

// Get loads a single trigger.
func (r *TriggerRepo) Get(ctx context.Context, id uuid.UUID) (*model.Trigger, error) {
	const q = `
SELECT id, registration_id, name, pattern, kind, intensity, duration_ms, cooldown_sec, last_fired_at, enabled, created_at
FROM triggers WHERE id=$1`
	row := r.db.Pool.QueryRow(ctx, q, id)
	var t model.Trigger
	err := row.Scan(&t.ID, &t.RegistrationID, &t.Name, &t.Pattern, &t.Kind,
		&t.Intensity, &t.DurationMS, &t.CooldownSec, &t.LastFiredAt, &t.Enabled, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Delete removes a trigger scoped to its owner registration.
func (r *TriggerRepo) Delete(ctx context.Context, registrationID, id uuid.UUID) (bool, error) {
	const q = `DELETE FROM triggers WHERE registration_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, registrationID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetEnabled toggles a trigger.
func (r *TriggerRepo) SetEnabled(ctx context.Context, registrationID, id uuid.UUID, enabled bool) (bool, error) {
	const q = `UPDATE triggers SET enabled=$3 WHERE registration_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, registrationID, id, enabled)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByRegistration returns triggers in creation order. Insertion order is
// load-bearing: the matcher honors it for first-match-wins.
func (r *TriggerRepo) ListByRegistration(ctx context.Context, registrationID uuid.UUID, includeDisabled bool) ([]model.Trigger, error) {
	q := `
SELECT id, registration_id, name, pattern, kind, intensity, duration_ms, cooldown_sec, last_fired_at, enabled, created_at
FROM triggers WHERE registration_id=$1`
	if !includeDisabled {
		q += ` AND enabled`
	}
	q += ` ORDER BY created_at`

	rows, err := r.db.Pool.Query(ctx, q, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTriggers(rows)
}

// ListEnabledByCommunity returns enabled triggers grouped by owner person.
func (r *TriggerRepo) ListEnabledByCommunity(ctx context.Context, communityID int64) (map[int64][]model.Trigger, error) {
	const q = `
SELECT reg.person_id, t.id, t.registration_id, t.name, t.pattern, t.kind, t.intensity,
       t.duration_ms, t.cooldown_sec, t.last_fired_at, t.enabled, t.created_at
FROM triggers t
JOIN registrations reg ON reg.id = t.registration_id
WHERE reg.community_id=$1 AND t.enabled
ORDER BY t.created_at`
	rows, err := r.db.Pool.Query(ctx, q, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]model.Trigger)
	for rows.Next() {
		var personID int64
		var t model.Trigger
		if err := rows.Scan(&personID, &t.ID, &t.RegistrationID, &t.Name, &t.Pattern, &t.Kind,
			&t.Intensity, &t.DurationMS, &t.CooldownSec, &t.LastFiredAt, &t.Enabled, &t.CreatedAt); err != nil {
			return nil, err
		}
		out[personID] = append(out[personID], t)
	}
	return out, rows.Err()
}

func scanTriggers(rows pgx.Rows) ([]model.Trigger, error) {
	var out []model.Trigger
	for rows.Next() {
		var t model.Trigger
		if err := rows.Scan(&t.ID, &t.RegistrationID, &t.Name, &t.Pattern, &t.Kind,
			&t.Intensity, &t.DurationMS, &t.CooldownSec, &t.LastFiredAt, &t.Enabled, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
