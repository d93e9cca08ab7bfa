package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pulsegate/pulsegate/internal/model"
)

// AuditRepo implements AuditRepository using PostgreSQL.
type AuditRepo struct{ db *DB }

// NewAuditRepo constructs an audit repository.
func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

const auditColumns = `id, community_id, controller_id, controller_name, target_id, target_name,
       kind, intensity, duration_ms, device_ref, device_name, success, error_detail, source, created_at`

// Append records one dispatch attempt.
func (r *AuditRepo) Append(ctx context.Context, e *model.AuditEntry) error {
	const q = `
INSERT INTO audit_log (id, community_id, controller_id, controller_name, target_id, target_name,
                       kind, intensity, duration_ms, device_ref, device_name, success, error_detail, source)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := r.db.Pool.Exec(ctx, q,
		e.ID, e.CommunityID, e.ControllerID, e.ControllerName, e.TargetID, e.TargetName,
		string(e.Kind), e.Intensity, e.DurationMS, e.DeviceRef, e.DeviceName,
		e.Success, e.ErrorDetail, string(e.Source))
	return err
}

// ListForTarget returns entries about the target, newest first.
func (r *AuditRepo) ListForTarget(ctx context.Context, communityID, targetID int64, limit, offset int) ([]model.AuditEntry, error) {
	q := `SELECT ` + auditColumns + `
FROM audit_log WHERE community_id=$1 AND target_id=$2
ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	rows, err := r.db.Pool.Query(ctx, q, communityID, targetID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

// ListByController returns entries initiated by the controller, newest first.
func (r *AuditRepo) ListByController(ctx context.Context, communityID, controllerID int64, limit, offset int) ([]model.AuditEntry, error) {
	q := `SELECT ` + auditColumns + `
FROM audit_log WHERE community_id=$1 AND controller_id=$2
ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	rows, err := r.db.Pool.Query(ctx, q, communityID, controllerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

// CountForTarget returns the number of entries about the target.
func (r *AuditRepo) CountForTarget(ctx context.Context, communityID, targetID int64) (int64, error) {
	const q = `SELECT count(*) FROM audit_log WHERE community_id=$1 AND target_id=$2`
	var n int64
	if err := r.db.Pool.QueryRow(ctx, q, communityID, targetID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteOlderThan prunes entries past the retention horizon.
func (r *AuditRepo) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", days)
	}
	const q = `DELETE FROM audit_log WHERE created_at < now() - make_interval(days => $1)`
	tag, err := r.db.Pool.Exec(ctx, q, days)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanAuditEntries(rows pgx.Rows) ([]model.AuditEntry, error) {
	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.CommunityID, &e.ControllerID, &e.ControllerName,
			&e.TargetID, &e.TargetName, &e.Kind, &e.Intensity, &e.DurationMS,
			&e.DeviceRef, &e.DeviceName, &e.Success, &e.ErrorDetail, &e.Source, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
