package cooldown

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsegate/pulsegate/internal/errs"
)

// PG is the PostgreSQL-backed Tracker. Device and trigger timestamps live on
// their entity rows; pair state has its own table keyed by
// (controller, target, community).
type PG struct {
	pool pgxQuerier
	now  func() time.Time
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed tracker.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// NewPGWithQuerier constructs a tracker over any querier, for tests.
func NewPGWithQuerier(q pgxQuerier, now func() time.Time) *PG {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &PG{pool: q, now: now}
}

// remaining returns how much of window is left since last, clamped at zero.
func (t *PG) remaining(last time.Time, window time.Duration) time.Duration {
	elapsed := t.now().Sub(last.UTC())
	if elapsed >= window {
		return 0
	}
	return window - elapsed
}

// DeviceReady reports whether the device window has elapsed.
func (t *PG) DeviceReady(ctx context.Context, registrationID uuid.UUID, deviceRef string, window time.Duration) (bool, time.Duration, error) {
	const q = `SELECT last_action_at FROM devices WHERE registration_id=$1 AND ref=$2`
	var last *time.Time
	err := t.pool.QueryRow(ctx, q, registrationID, deviceRef).Scan(&last)
	switch {
	case err == nil:
		if last == nil {
			return true, 0, nil
		}
		rem := t.remaining(*last, window)
		return rem == 0, rem, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, 0, errs.ErrNotFound
	default:
		return false, 0, err
	}
}

// MarkDeviceUsed stamps the device's last action.
func (t *PG) MarkDeviceUsed(ctx context.Context, registrationID uuid.UUID, deviceRef string) error {
	const q = `UPDATE devices SET last_action_at=now() WHERE registration_id=$1 AND ref=$2`
	tag, err := t.pool.Exec(ctx, q, registrationID, deviceRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// PairCheck reports readiness of a controller-target pair.
func (t *PG) PairCheck(ctx context.Context, controllerID, targetID, communityID int64, defaultWindow time.Duration) (bool, time.Duration, error) {
	if controllerID == targetID {
		return true, 0, nil
	}
	const q = `
SELECT last_action_at, window_seconds FROM controller_cooldowns
WHERE controller_id=$1 AND target_person=$2 AND community_id=$3`
	var last time.Time
	var windowSec int
	err := t.pool.QueryRow(ctx, q, controllerID, targetID, communityID).Scan(&last, &windowSec)
	switch {
	case err == nil:
		window := defaultWindow
		if windowSec > 0 {
			window = time.Duration(windowSec) * time.Second
		}
		rem := t.remaining(last, window)
		return rem == 0, rem, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// PairUpdate upserts the pair's last action and window.
func (t *PG) PairUpdate(ctx context.Context, controllerID, targetID, communityID int64, window time.Duration) error {
	if controllerID == targetID {
		return nil
	}
	const q = `
INSERT INTO controller_cooldowns (controller_id, target_person, community_id, last_action_at, window_seconds)
VALUES ($1,$2,$3,now(),$4)
ON CONFLICT (controller_id, target_person, community_id)
DO UPDATE SET last_action_at=now(), window_seconds=EXCLUDED.window_seconds`
	_, err := t.pool.Exec(ctx, q, controllerID, targetID, communityID, int(window.Seconds()))
	return err
}

// SetPairWindow changes the window on every existing pair row for the target.
func (t *PG) SetPairWindow(ctx context.Context, targetID, communityID int64, window time.Duration) error {
	const q = `UPDATE controller_cooldowns SET window_seconds=$3 WHERE target_person=$1 AND community_id=$2`
	_, err := t.pool.Exec(ctx, q, targetID, communityID, int(window.Seconds()))
	return err
}

// PairWindow returns the target's configured window, if any row exists.
func (t *PG) PairWindow(ctx context.Context, targetID, communityID int64, defaultWindow time.Duration) (time.Duration, error) {
	const q = `SELECT window_seconds FROM controller_cooldowns WHERE target_person=$1 AND community_id=$2 LIMIT 1`
	var windowSec int
	err := t.pool.QueryRow(ctx, q, targetID, communityID).Scan(&windowSec)
	switch {
	case err == nil:
		return time.Duration(windowSec) * time.Second, nil
	case errors.Is(err, pgx.ErrNoRows):
		return defaultWindow, nil
	default:
		return 0, err
	}
}

// TriggerCheck reports readiness of a trigger's cooldown.
func (t *PG) TriggerCheck(ctx context.Context, triggerID uuid.UUID) (bool, time.Duration, error) {
	const q = `SELECT last_fired_at, cooldown_sec FROM triggers WHERE id=$1`
	var last *time.Time
	var cooldownSec int
	err := t.pool.QueryRow(ctx, q, triggerID).Scan(&last, &cooldownSec)
	switch {
	case err == nil:
		if last == nil {
			return true, 0, nil
		}
		rem := t.remaining(*last, time.Duration(cooldownSec)*time.Second)
		return rem == 0, rem, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, 0, errs.ErrNotFound
	default:
		return false, 0, err
	}
}

// MarkTriggerFired stamps the trigger's last-fired time.
func (t *PG) MarkTriggerFired(ctx context.Context, triggerID uuid.UUID) error {
	const q = `UPDATE triggers SET last_fired_at=now() WHERE id=$1`
	tag, err := t.pool.Exec(ctx, q, triggerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
