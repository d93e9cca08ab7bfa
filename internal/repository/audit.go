package repository

import (
	"context"

	"github.com/pulsegate/pulsegate/internal/model"
)

// AuditRepository is the append-only action history.
type AuditRepository interface {
	// Append records one dispatch attempt.
	Append(ctx context.Context, e *model.AuditEntry) error
	// ListForTarget returns entries about the target, newest first.
	ListForTarget(ctx context.Context, communityID, targetID int64, limit, offset int) ([]model.AuditEntry, error)
	// ListByController returns entries initiated by the controller, newest first.
	ListByController(ctx context.Context, communityID, controllerID int64, limit, offset int) ([]model.AuditEntry, error)
	// CountForTarget returns the number of entries about the target.
	CountForTarget(ctx context.Context, communityID, targetID int64) (int64, error)
	// DeleteOlderThan prunes entries older than the given number of days and
	// returns how many were removed. The only sanctioned mutation.
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}
