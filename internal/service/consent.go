// Package service implements the application core on top of the storage and
// external-API layers.
package service

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/model"
	"github.com/pulsegate/pulsegate/internal/repository"
)

// ConsentService manages consent edges and answers control-permission checks.
type ConsentService interface {
	// Grant adds an edge from the owner to the grantee. Granting to an
	// unregistered owner fails with ErrNotRegistered; duplicate grants with
	// ErrAlreadyExists.
	Grant(ctx context.Context, communityID, ownerID int64, grantee model.Grantee) error
	// Revoke removes the edge; reports whether one existed.
	Revoke(ctx context.Context, communityID, ownerID int64, grantee model.Grantee) (bool, error)
	// RevokeAll removes every edge of the owner.
	RevokeAll(ctx context.Context, communityID, ownerID int64) error
	// List returns the owner's current grants.
	List(ctx context.Context, communityID, ownerID int64) (model.ConsentList, error)
	// CanControl reports whether the controller may act on the target.
	// Self-control is always permitted. groupIDs is the controller's live
	// group membership as supplied by the caller.
	CanControl(ctx context.Context, communityID, controllerID, targetID int64, groupIDs []int64) (bool, error)
	// ControllableTargets lists the person IDs the controller holds a grant
	// for within the community.
	ControllableTargets(ctx context.Context, communityID, controllerID int64, groupIDs []int64) ([]int64, error)
}

type ConsentServiceImpl struct {
	regs    repository.RegistrationRepository
	consent repository.ConsentRepository
}

// NewConsentService constructs a ConsentService.
func NewConsentService(regs repository.RegistrationRepository, consent repository.ConsentRepository) *ConsentServiceImpl {
	return &ConsentServiceImpl{regs: regs, consent: consent}
}

func (s *ConsentServiceImpl) Grant(ctx context.Context, communityID, ownerID int64, grantee model.Grantee) error {
	if grantee.IsZero() {
		return &errs.ConfigError{Field: "grantee", Reason: "empty"}
	}
	reg, err := s.regs.Get(ctx, communityID, ownerID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrNotRegistered
		}
		return err
	}

	list, err := s.consent.List(ctx, reg.ID)
	if err != nil {
		return err
	}
	for _, p := range list.People {
		if grantee.Kind() == model.GranteePerson && p == grantee.ID() {
			return errs.ErrAlreadyExists
		}
	}
	for _, g := range list.Groups {
		if grantee.Kind() == model.GranteeGroup && g == grantee.ID() {
			return errs.ErrAlreadyExists
		}
	}

	return s.consent.Add(ctx, &model.ConsentGrant{
		ID:             uuid.Must(uuid.NewV4()),
		RegistrationID: reg.ID,
		Grantee:        grantee,
	})
}

func (s *ConsentServiceImpl) Revoke(ctx context.Context, communityID, ownerID int64, grantee model.Grantee) (bool, error) {
	reg, err := s.regs.Get(ctx, communityID, ownerID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, errs.ErrNotRegistered
		}
		return false, err
	}
	return s.consent.Remove(ctx, reg.ID, grantee)
}

func (s *ConsentServiceImpl) RevokeAll(ctx context.Context, communityID, ownerID int64) error {
	reg, err := s.regs.Get(ctx, communityID, ownerID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrNotRegistered
		}
		return err
	}
	return s.consent.RemoveAll(ctx, reg.ID)
}

func (s *ConsentServiceImpl) List(ctx context.Context, communityID, ownerID int64) (model.ConsentList, error) {
	reg, err := s.regs.Get(ctx, communityID, ownerID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.ConsentList{}, errs.ErrNotRegistered
		}
		return model.ConsentList{}, err
	}
	return s.consent.List(ctx, reg.ID)
}

func (s *ConsentServiceImpl) CanControl(ctx context.Context, communityID, controllerID, targetID int64, groupIDs []int64) (bool, error) {
	if controllerID == targetID {
		return true, nil
	}
	reg, err := s.regs.Get(ctx, communityID, targetID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.consent.HasEdge(ctx, reg.ID, controllerID, groupIDs)
}

func (s *ConsentServiceImpl) ControllableTargets(ctx context.Context, communityID, controllerID int64, groupIDs []int64) ([]int64, error) {
	return s.consent.ControllableTargets(ctx, communityID, controllerID, groupIDs)
}
