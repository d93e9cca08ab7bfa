package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/model"
)

// RegistrationRepo implements RegistrationRepository using PostgreSQL.
type RegistrationRepo struct{ db *DB }

// NewRegistrationRepo constructs a registration repository.
func NewRegistrationRepo(db *DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

// Upsert inserts or replaces the registration for (community, person).
func (r *RegistrationRepo) Upsert(ctx context.Context, reg *model.Registration) error {
	const q = `
INSERT INTO registrations (id, community_id, person_id, display_name, credential_enc, api_base, device_worn)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (community_id, person_id) DO UPDATE SET
    display_name=EXCLUDED.display_name,
    credential_enc=EXCLUDED.credential_enc,
    api_base=EXCLUDED.api_base,
    updated_at=now()`
	_, err := r.db.Pool.Exec(ctx, q,
		reg.ID, reg.CommunityID, reg.PersonID, reg.DisplayName, reg.CredentialEnc, reg.APIBase, reg.DeviceWorn)
	return err
}

// Get selects the registration for a person within a community.
func (r *RegistrationRepo) Get(ctx context.Context, communityID, personID int64) (*model.Registration, error) {
	const q = `
SELECT id, community_id, person_id, display_name, credential_enc, api_base, device_worn, created_at, updated_at
FROM registrations WHERE community_id=$1 AND person_id=$2`
	row := r.db.Pool.QueryRow(ctx, q, communityID, personID)
	var reg model.Registration
	err := row.Scan(&reg.ID, &reg.CommunityID, &reg.PersonID, &reg.DisplayName,
		&reg.CredentialEnc, &reg.APIBase, &reg.DeviceWorn, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &reg, nil
}

// SetWorn flips the device-worn flag.
func (r *RegistrationRepo) SetWorn(ctx context.Context, communityID, personID int64, worn bool) error {
	const q = `UPDATE registrations SET device_worn=$3, updated_at=now() WHERE community_id=$1 AND person_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, communityID, personID, worn)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a registration; dependent rows cascade via FK.
func (r *RegistrationRepo) Delete(ctx context.Context, communityID, personID int64) (bool, error) {
	const q = `DELETE FROM registrations WHERE community_id=$1 AND person_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, communityID, personID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByCommunity returns all registrations within a community.
func (r *RegistrationRepo) ListByCommunity(ctx context.Context, communityID int64) ([]model.Registration, error) {
	const q = `
SELECT id, community_id, person_id, display_name, credential_enc, api_base, device_worn, created_at, updated_at
FROM registrations WHERE community_id=$1 ORDER BY created_at`
	rows, err := r.db.Pool.Query(ctx, q, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Registration
	for rows.Next() {
		var reg model.Registration
		if err := rows.Scan(&reg.ID, &reg.CommunityID, &reg.PersonID, &reg.DisplayName,
			&reg.CredentialEnc, &reg.APIBase, &reg.DeviceWorn, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}
