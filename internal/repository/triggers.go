package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/pulsegate/pulsegate/internal/model"
)

// TriggerRepository stores regex chat triggers.
type TriggerRepository interface {
	// Create inserts a trigger.
	Create(ctx context.Context, t *model.Trigger) error
	// Get loads one trigger.
	Get(ctx context.Context, id uuid.UUID) (*model.Trigger, error)
	// Delete removes a trigger belonging to the registration; reports whether
	// a row was removed.
	Delete(ctx context.Context, registrationID, id uuid.UUID) (bool, error)
	// SetEnabled toggles a trigger; reports whether a row was updated.
	SetEnabled(ctx context.Context, registrationID, id uuid.UUID, enabled bool) (bool, error)
	// ListByRegistration returns the registration's triggers in creation order.
	ListByRegistration(ctx context.Context, registrationID uuid.UUID, includeDisabled bool) ([]model.Trigger, error)
	// ListEnabledByCommunity returns all enabled triggers in a community
	// grouped by owner person ID, each group in creation order.
	ListEnabledByCommunity(ctx context.Context, communityID int64) (map[int64][]model.Trigger, error)
}
