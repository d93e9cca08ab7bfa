package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/pulsegate/pulsegate/internal/model"
)

// PrefRepo implements PreferenceRepository using PostgreSQL. Each controller
// holds up to one row per target plus a community-wide wildcard row with a
// NULL target; upserts key on COALESCE(target_person, -1).
type PrefRepo struct{ db *DB }

// NewPrefRepo constructs a preference repository.
func NewPrefRepo(db *DB) *PrefRepo { return &PrefRepo{db: db} }

const prefColumns = `id, controller_id, community_id, target_person, default_kind, default_int,
       default_dur_ms, last_kind, last_int, last_dur_ms, last_target, smart_defaults, updated_at`

// Get returns the preference row, preferring target-specific over wildcard.
func (r *PrefRepo) Get(ctx context.Context, controllerID, communityID int64, targetID *int64) (*model.Preference, error) {
	// Specific row sorts first, wildcard acts as the fallback.
	q := `SELECT ` + prefColumns + `
FROM controller_prefs
WHERE controller_id=$1 AND community_id=$2 AND (target_person=$3 OR target_person IS NULL)
ORDER BY target_person NULLS LAST
LIMIT 1`
	row := r.db.Pool.QueryRow(ctx, q, controllerID, communityID, targetID)
	var p model.Preference
	err := row.Scan(&p.ID, &p.ControllerID, &p.CommunityID, &p.TargetPersonID,
		&p.DefaultKind, &p.DefaultInt, &p.DefaultDurMS,
		&p.LastKind, &p.LastInt, &p.LastDurMS, &p.LastTargetID, &p.SmartDefaults, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// SetDefaults upserts configured defaults on the addressed row.
func (r *PrefRepo) SetDefaults(ctx context.Context, p *model.Preference) error {
	const q = `
INSERT INTO controller_prefs (id, controller_id, community_id, target_person,
                              default_kind, default_int, default_dur_ms, smart_defaults)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (controller_id, community_id, COALESCE(target_person, -1)) DO UPDATE SET
    default_kind=EXCLUDED.default_kind,
    default_int=EXCLUDED.default_int,
    default_dur_ms=EXCLUDED.default_dur_ms,
    smart_defaults=EXCLUDED.smart_defaults,
    updated_at=now()`
	id := p.ID
	if id.IsNil() {
		id = uuid.Must(uuid.NewV4())
	}
	_, err := r.db.Pool.Exec(ctx, q, id, p.ControllerID, p.CommunityID, p.TargetPersonID,
		string(p.DefaultKind), p.DefaultInt, p.DefaultDurMS, p.SmartDefaults)
	return err
}

// UpdateLastUsed records the action on both the target-specific row and the
// community wildcard row, creating either if missing.
func (r *PrefRepo) UpdateLastUsed(ctx context.Context, controllerID, communityID, targetID int64, kind model.ActionKind, intensity, durationMS int) error {
	const q = `
INSERT INTO controller_prefs (id, controller_id, community_id, target_person,
                              last_kind, last_int, last_dur_ms, last_target)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (controller_id, community_id, COALESCE(target_person, -1)) DO UPDATE SET
    last_kind=EXCLUDED.last_kind,
    last_int=EXCLUDED.last_int,
    last_dur_ms=EXCLUDED.last_dur_ms,
    last_target=EXCLUDED.last_target,
    updated_at=now()`
	specific := targetID
	for _, target := range []*int64{&specific, nil} {
		id := uuid.Must(uuid.NewV4())
		_, err := r.db.Pool.Exec(ctx, q, id, controllerID, communityID, target,
			string(kind), intensity, durationMS, targetID)
		if err != nil {
			return err
		}
	}
	return nil
}
