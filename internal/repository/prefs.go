package repository

import (
	"context"

	"github.com/pulsegate/pulsegate/internal/model"
)

// PreferenceRepository stores controller action-parameter preferences.
type PreferenceRepository interface {
	// Get returns the controller's preference row, preferring a
	// target-specific row over the community-wide wildcard. Nil when neither
	// exists.
	Get(ctx context.Context, controllerID, communityID int64, targetID *int64) (*model.Preference, error)
	// SetDefaults upserts configured defaults on the addressed row.
	SetDefaults(ctx context.Context, p *model.Preference) error
	// UpdateLastUsed upserts last-used values on both the target-specific row
	// and the community wildcard row.
	UpdateLastUsed(ctx context.Context, controllerID, communityID, targetID int64, kind model.ActionKind, intensity, durationMS int) error
}
