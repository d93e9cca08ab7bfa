// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/pulsegate/pulsegate/internal/model"
)

// RegistrationRepository provides access to registrations.
type RegistrationRepository interface {
	// Upsert inserts a registration or replaces the credential/endpoint of an
	// existing (community, person) row.
	Upsert(ctx context.Context, r *model.Registration) error
	// Get loads the registration for a person within a community.
	Get(ctx context.Context, communityID, personID int64) (*model.Registration, error)
	// SetWorn flips the device-worn flag.
	SetWorn(ctx context.Context, communityID, personID int64, worn bool) error
	// Delete removes the registration; devices, triggers and consent grants
	// cascade. Reports whether a row was removed.
	Delete(ctx context.Context, communityID, personID int64) (bool, error)
	// ListByCommunity returns all registrations within a community.
	ListByCommunity(ctx context.Context, communityID int64) ([]model.Registration, error)
}

// DeviceRepository provides access to a registration's devices.
type DeviceRepository interface {
	// Add inserts a device; duplicate (registration, ref) yields ErrAlreadyExists.
	Add(ctx context.Context, d *model.Device) error
	// Remove deletes one device by ref; reports whether a row was removed.
	Remove(ctx context.Context, registrationID uuid.UUID, ref string) (bool, error)
	// List returns the registration's devices in insertion order.
	List(ctx context.Context, registrationID uuid.UUID) ([]model.Device, error)
}
