package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/pulsegate/pulsegate/internal/crypto/credcrypto"
	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/model"
	"github.com/pulsegate/pulsegate/internal/repository"
	"github.com/pulsegate/pulsegate/internal/shockapi"
)

// RegistrationService manages enrollment and devices.
type RegistrationService interface {
	// Setup validates the credential against the control API, stores it
	// encrypted, and returns the devices it can control. Re-running setup
	// replaces the stored credential and endpoint.
	Setup(ctx context.Context, communityID, personID int64, displayName, credential, apiBase string) ([]shockapi.Shocker, error)
	// Get returns the person's registration.
	Get(ctx context.Context, communityID, personID int64) (*model.Registration, error)
	// Unregister removes the registration; devices, triggers and grants
	// cascade. Reports whether a registration existed.
	Unregister(ctx context.Context, communityID, personID int64) (bool, error)
	// SetWorn flips the device-worn flag.
	SetWorn(ctx context.Context, communityID, personID int64, worn bool) error
	// AddDevice attaches a device after verifying the ref belongs to the
	// stored credential.
	AddDevice(ctx context.Context, communityID, personID int64, ref, name string) (*model.Device, error)
	// RemoveDevice detaches a device by ref; reports whether one existed.
	RemoveDevice(ctx context.Context, communityID, personID int64, ref string) (bool, error)
	// ListDevices returns the person's devices in insertion order.
	ListDevices(ctx context.Context, communityID, personID int64) ([]model.Device, error)
}

type RegistrationServiceImpl struct {
	regs    repository.RegistrationRepository
	devices repository.DeviceRepository
	keeper  *credcrypto.Keeper
	api     shockapi.Sender
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(regs repository.RegistrationRepository, devices repository.DeviceRepository, keeper *credcrypto.Keeper, api shockapi.Sender) *RegistrationServiceImpl {
	return &RegistrationServiceImpl{regs: regs, devices: devices, keeper: keeper, api: api}
}

func (s *RegistrationServiceImpl) Setup(ctx context.Context, communityID, personID int64, displayName, credential, apiBase string) ([]shockapi.Shocker, error) {
	if credential == "" {
		return nil, &errs.ConfigError{Field: "credential", Reason: "empty"}
	}

	shockers, err := s.api.ValidateCredential(ctx, credential, apiBase)
	if err != nil {
		return nil, fmt.Errorf("validate credential: %w", err)
	}

	sealed, err := s.keeper.Seal(credential, personID, communityID)
	if err != nil {
		return nil, fmt.Errorf("seal credential: %w", err)
	}

	reg := &model.Registration{
		ID:            uuid.Must(uuid.NewV4()),
		CommunityID:   communityID,
		PersonID:      personID,
		DisplayName:   displayName,
		CredentialEnc: sealed,
		APIBase:       apiBase,
		DeviceWorn:    true,
	}
	if err := s.regs.Upsert(ctx, reg); err != nil {
		return nil, err
	}
	return shockers, nil
}

func (s *RegistrationServiceImpl) Get(ctx context.Context, communityID, personID int64) (*model.Registration, error) {
	reg, err := s.regs.Get(ctx, communityID, personID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrNotRegistered
		}
		return nil, err
	}
	return reg, nil
}

func (s *RegistrationServiceImpl) Unregister(ctx context.Context, communityID, personID int64) (bool, error) {
	return s.regs.Delete(ctx, communityID, personID)
}

func (s *RegistrationServiceImpl) SetWorn(ctx context.Context, communityID, personID int64, worn bool) error {
	err := s.regs.SetWorn(ctx, communityID, personID, worn)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.ErrNotRegistered
	}
	return err
}

func (s *RegistrationServiceImpl) AddDevice(ctx context.Context, communityID, personID int64, ref, name string) (*model.Device, error) {
	if ref == "" {
		return nil, &errs.ConfigError{Field: "device ref", Reason: "empty"}
	}
	reg, err := s.Get(ctx, communityID, personID)
	if err != nil {
		return nil, err
	}

	credential, err := s.keeper.Open(reg.CredentialEnc, personID, communityID)
	if err != nil {
		return nil, fmt.Errorf("open credential: %w", err)
	}
	shockers, err := s.api.ValidateCredential(ctx, credential, reg.APIBase)
	if err != nil {
		return nil, fmt.Errorf("validate credential: %w", err)
	}
	known := false
	for _, sh := range shockers {
		if sh.Ref == ref {
			known = true
			if name == "" {
				name = sh.Name
			}
			break
		}
	}
	if !known {
		return nil, &errs.ConfigError{Field: "device ref", Reason: "not controllable by the stored credential"}
	}

	d := &model.Device{
		ID:             uuid.Must(uuid.NewV4()),
		RegistrationID: reg.ID,
		Ref:            ref,
		Name:           name,
	}
	if err := s.devices.Add(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *RegistrationServiceImpl) RemoveDevice(ctx context.Context, communityID, personID int64, ref string) (bool, error) {
	reg, err := s.Get(ctx, communityID, personID)
	if err != nil {
		return false, err
	}
	return s.devices.Remove(ctx, reg.ID, ref)
}

func (s *RegistrationServiceImpl) ListDevices(ctx context.Context, communityID, personID int64) ([]model.Device, error) {
	reg, err := s.Get(ctx, communityID, personID)
	if err != nil {
		return nil, err
	}
	return s.devices.List(ctx, reg.ID)
}
