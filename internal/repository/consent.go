package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/pulsegate/pulsegate/internal/model"
)

// ConsentRepository stores directed consent edges.
type ConsentRepository interface {
	// Add inserts a grant edge. No uniqueness beyond what the schema allows;
	// callers check before granting.
	Add(ctx context.Context, g *model.ConsentGrant) error
	// Remove deletes edges matching the grantee; reports whether any row was
	// removed.
	Remove(ctx context.Context, registrationID uuid.UUID, grantee model.Grantee) (bool, error)
	// RemoveAll deletes every edge for the registration.
	RemoveAll(ctx context.Context, registrationID uuid.UUID) error
	// List returns the owner's current grants split by grantee kind.
	List(ctx context.Context, registrationID uuid.UUID) (model.ConsentList, error)
	// HasEdge reports whether a direct-person edge for the controller exists,
	// or any group edge matching the supplied group memberships.
	HasEdge(ctx context.Context, registrationID uuid.UUID, controllerID int64, groupIDs []int64) (bool, error)
	// ControllableTargets returns person IDs within the community that the
	// controller holds a grant for.
	ControllableTargets(ctx context.Context, communityID, controllerID int64, groupIDs []int64) ([]int64, error)
}
