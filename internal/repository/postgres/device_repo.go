package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/model"
)

// DeviceRepo implements DeviceRepository using PostgreSQL.
type DeviceRepo struct{ db *DB }

// NewDeviceRepo constructs a device repository.
func NewDeviceRepo(db *DB) *DeviceRepo { return &DeviceRepo{db: db} }

// Add inserts a device row.
func (r *DeviceRepo) Add(ctx context.Context, d *model.Device) error {
	const q = `
INSERT INTO devices (id, registration_id, ref, name)
VALUES ($1,$2,$3,$4)`
	_, err := r.db.Pool.Exec(ctx, q, d.ID, d.RegistrationID, d.Ref, d.Name)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Remove deletes a device by ref.
func (r *DeviceRepo) Remove(ctx context.Context, registrationID uuid.UUID, ref string) (bool, error) {
	const q = `DELETE FROM devices WHERE registration_id=$1 AND ref=$2`
	tag, err := r.db.Pool.Exec(ctx, q, registrationID, ref)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// List returns the registration's devices in insertion order.
func (r *DeviceRepo) List(ctx context.Context, registrationID uuid.UUID) ([]model.Device, error) {
	const q = `
SELECT id, registration_id, ref, name, last_action_at, created_at
FROM devices WHERE registration_id=$1 ORDER BY created_at`
	rows, err := r.db.Pool.Query(ctx, q, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Device
	for rows.Next() {
		var d model.Device
		if err := rows.Scan(&d.ID, &d.RegistrationID, &d.Ref, &d.Name, &d.LastActionAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
