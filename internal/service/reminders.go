package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/model"
	"github.com/pulsegate/pulsegate/internal/recurrence"
	"github.com/pulsegate/pulsegate/internal/repository"
)

// ReminderService manages scheduled actions.
type ReminderService interface {
	// Create schedules an action. The creator must be allowed to control the
	// target at creation time; consent is re-checked again at fire time.
	Create(ctx context.Context, p CreateReminderParams) (*model.Reminder, error)
	// Get returns one reminder.
	Get(ctx context.Context, communityID int64, id uuid.UUID) (*model.Reminder, error)
	// Cancel deletes a reminder. Only its creator or its target may cancel.
	Cancel(ctx context.Context, communityID int64, id uuid.UUID, callerID int64) (bool, error)
	// ListByCommunity returns the community's reminders ordered by fire time.
	ListByCommunity(ctx context.Context, communityID int64, includeCompleted bool) ([]model.Reminder, error)
	// ListByCreator returns reminders created by the person.
	ListByCreator(ctx context.Context, communityID, creatorID int64, includeCompleted bool) ([]model.Reminder, error)
	// ListForTarget returns reminders aimed at the person.
	ListForTarget(ctx context.Context, communityID, targetID int64, includeCompleted bool) ([]model.Reminder, error)
}

// CreateReminderParams carries everything needed to schedule an action.
type CreateReminderParams struct {
	CommunityID     int64
	CreatorID       int64
	CreatorGroupIDs []int64
	TargetPersonID  int64
	FireAt          time.Time
	Reason          string
	Kind            model.ActionKind
	Intensity       int
	DurationMS      int
	ChannelID       *int64
	Recurrence      string // empty for one-shot
}

type ReminderServiceImpl struct {
	reminders repository.ReminderRepository
	consent   ConsentService
	now       func() time.Time
}

// NewReminderService constructs a ReminderService.
func NewReminderService(reminders repository.ReminderRepository, consent ConsentService) *ReminderServiceImpl {
	return &ReminderServiceImpl{reminders: reminders, consent: consent, now: time.Now}
}

func (s *ReminderServiceImpl) Create(ctx context.Context, p CreateReminderParams) (*model.Reminder, error) {
	if p.Intensity < model.MinIntensity || p.Intensity > model.MaxIntensity {
		return nil, &errs.ConfigError{Field: "intensity", Reason: "out of range"}
	}
	if p.DurationMS < model.MinDurationMS || p.DurationMS > model.MaxDurationMS {
		return nil, &errs.ConfigError{Field: "duration", Reason: "out of range"}
	}
	if !p.FireAt.After(s.now()) {
		return nil, &errs.ConfigError{Field: "fire time", Reason: "must be in the future"}
	}
	if p.Recurrence != "" {
		if _, err := recurrence.Parse(p.Recurrence); err != nil {
			return nil, &errs.ConfigError{Field: "recurrence", Reason: err.Error()}
		}
	}

	ok, err := s.consent.CanControl(ctx, p.CommunityID, p.CreatorID, p.TargetPersonID, p.CreatorGroupIDs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrNoConsent
	}

	rem := &model.Reminder{
		ID:             uuid.Must(uuid.NewV4()),
		CommunityID:    p.CommunityID,
		TargetPersonID: p.TargetPersonID,
		CreatorID:      p.CreatorID,
		FireAt:         p.FireAt.UTC(),
		Reason:         p.Reason,
		Kind:           p.Kind,
		Intensity:      p.Intensity,
		DurationMS:     p.DurationMS,
		ChannelID:      p.ChannelID,
		Recurring:      p.Recurrence != "",
		Recurrence:     p.Recurrence,
	}
	if err := s.reminders.Create(ctx, rem); err != nil {
		return nil, err
	}
	return rem, nil
}

func (s *ReminderServiceImpl) Get(ctx context.Context, communityID int64, id uuid.UUID) (*model.Reminder, error) {
	return s.reminders.Get(ctx, communityID, id)
}

func (s *ReminderServiceImpl) Cancel(ctx context.Context, communityID int64, id uuid.UUID, callerID int64) (bool, error) {
	rem, err := s.reminders.Get(ctx, communityID, id)
	if err != nil {
		return false, err
	}
	if rem.CreatorID != callerID && rem.TargetPersonID != callerID {
		return false, errs.ErrUnauthorized
	}
	return s.reminders.Delete(ctx, communityID, id)
}

func (s *ReminderServiceImpl) ListByCommunity(ctx context.Context, communityID int64, includeCompleted bool) ([]model.Reminder, error) {
	return s.reminders.ListByCommunity(ctx, communityID, includeCompleted)
}

func (s *ReminderServiceImpl) ListByCreator(ctx context.Context, communityID, creatorID int64, includeCompleted bool) ([]model.Reminder, error) {
	return s.reminders.ListByCreator(ctx, communityID, creatorID, includeCompleted)
}

func (s *ReminderServiceImpl) ListForTarget(ctx context.Context, communityID, targetID int64, includeCompleted bool) ([]model.Reminder, error) {
	return s.reminders.ListForTarget(ctx, communityID, targetID, includeCompleted)
}
