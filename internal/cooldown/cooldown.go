// Package cooldown defines interfaces and implementations for the action
// throttles: per-device, per-(controller,target) pair, and per-trigger.
package cooldown

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
)

// DefaultDeviceWindow is the system-wide per-device window.
const DefaultDeviceWindow = 60 * time.Second

// DefaultPairWindow is the controller-pair window used until an owner
// configures one.
const DefaultPairWindow = 300 * time.Second

// Tracker records and queries last-action timestamps across all three axes.
// All elapsed-time arithmetic is done in UTC.
type Tracker interface {
	// DeviceReady reports whether the device's window has elapsed since its
	// last recorded action. A device with no recorded action is ready.
	DeviceReady(ctx context.Context, registrationID uuid.UUID, deviceRef string, window time.Duration) (bool, time.Duration, error)
	// MarkDeviceUsed sets the device's last-action timestamp to now.
	MarkDeviceUsed(ctx context.Context, registrationID uuid.UUID, deviceRef string) error

	// PairCheck reports readiness of a (controller, target) pair. Self-pairs
	// are always ready and never hit storage. The effective window is the
	// stored per-pair value when present, else defaultWindow.
	PairCheck(ctx context.Context, controllerID, targetID, communityID int64, defaultWindow time.Duration) (bool, time.Duration, error)
	// PairUpdate upserts last-action=now and the window for the pair.
	// Self-pairs are a no-op.
	PairUpdate(ctx context.Context, controllerID, targetID, communityID int64, window time.Duration) error
	// SetPairWindow rewrites the window on all existing pair rows for the
	// target, so the change applies retroactively.
	SetPairWindow(ctx context.Context, targetID, communityID int64, window time.Duration) error
	// PairWindow returns the target's configured window, or defaultWindow if
	// no pair row exists yet.
	PairWindow(ctx context.Context, targetID, communityID int64, defaultWindow time.Duration) (time.Duration, error)

	// TriggerCheck reports readiness of a trigger's own cooldown. A trigger
	// that has never fired is ready.
	TriggerCheck(ctx context.Context, triggerID uuid.UUID) (bool, time.Duration, error)
	// MarkTriggerFired sets the trigger's last-fired timestamp to now.
	MarkTriggerFired(ctx context.Context, triggerID uuid.UUID) error
}
