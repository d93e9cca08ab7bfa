package service

import (
	"context"
	"errors"
	"regexp"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/pulsegate/pulsegate/internal/cooldown"
	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/metrics"
	"github.com/pulsegate/pulsegate/internal/model"
	"github.com/pulsegate/pulsegate/internal/repository"
	"github.com/pulsegate/pulsegate/internal/trigger"
)

const defaultTriggerCooldownSec = 60

// TriggerService manages chat triggers and feeds messages into the matcher.
type TriggerService interface {
	// Create stores a trigger after validating the pattern and parameters.
	Create(ctx context.Context, communityID, ownerID int64, name, pattern string, kind model.ActionKind, intensity, durationMS, cooldownSec int) (*model.Trigger, error)
	// Delete removes the owner's trigger; reports whether one existed.
	Delete(ctx context.Context, communityID, ownerID int64, id uuid.UUID) (bool, error)
	// SetEnabled toggles the owner's trigger.
	SetEnabled(ctx context.Context, communityID, ownerID int64, id uuid.UUID, enabled bool) (bool, error)
	// List returns the owner's triggers in creation order.
	List(ctx context.Context, communityID, ownerID int64, includeDisabled bool) ([]model.Trigger, error)
	// HandleMessage evaluates chat text against the author's triggers and
	// fires the first match, subject to the trigger's own cooldown. Returns
	// (nil, nil, nil) when nothing matched. A matched trigger is returned
	// even when the fire fails, a cooling-down trigger alongside a
	// trigger-axis CooldownError, so callers can report throttling.
	HandleMessage(ctx context.Context, communityID, personID int64, personName, text string) (*model.DispatchResult, *model.Trigger, error)
}

type TriggerServiceImpl struct {
	regs       repository.RegistrationRepository
	triggers   repository.TriggerRepository
	matcher    *trigger.Matcher
	tracker    cooldown.Tracker
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewTriggerService constructs a TriggerService. metrics may be nil in tests.
func NewTriggerService(
	regs repository.RegistrationRepository,
	triggers repository.TriggerRepository,
	matcher *trigger.Matcher,
	tracker cooldown.Tracker,
	dispatcher Dispatcher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *TriggerServiceImpl {
	return &TriggerServiceImpl{
		regs: regs, triggers: triggers, matcher: matcher,
		tracker: tracker, dispatcher: dispatcher, metrics: m, logger: logger,
	}
}

func (s *TriggerServiceImpl) Create(ctx context.Context, communityID, ownerID int64, name, pattern string, kind model.ActionKind, intensity, durationMS, cooldownSec int) (*model.Trigger, error) {
	if pattern == "" {
		return nil, &errs.ConfigError{Field: "pattern", Reason: "empty"}
	}
	if _, err := regexp.Compile("(?i)" + pattern); err != nil {
		return nil, &errs.ConfigError{Field: "pattern", Reason: err.Error()}
	}
	if intensity < model.MinIntensity || intensity > model.MaxIntensity {
		return nil, &errs.ConfigError{Field: "intensity", Reason: "out of range"}
	}
	if durationMS < model.MinDurationMS || durationMS > model.MaxDurationMS {
		return nil, &errs.ConfigError{Field: "duration", Reason: "out of range"}
	}
	if cooldownSec <= 0 {
		cooldownSec = defaultTriggerCooldownSec
	}

	reg, err := s.regs.Get(ctx, communityID, ownerID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrNotRegistered
		}
		return nil, err
	}

	t := &model.Trigger{
		ID:             uuid.Must(uuid.NewV4()),
		RegistrationID: reg.ID,
		Name:           name,
		Pattern:        pattern,
		Kind:           kind,
		Intensity:      intensity,
		DurationMS:     durationMS,
		CooldownSec:    cooldownSec,
		Enabled:        true,
	}
	if err := s.triggers.Create(ctx, t); err != nil {
		return nil, err
	}
	s.matcher.Invalidate(communityID)
	return t, nil
}

func (s *TriggerServiceImpl) Delete(ctx context.Context, communityID, ownerID int64, id uuid.UUID) (bool, error) {
	reg, err := s.regs.Get(ctx, communityID, ownerID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, errs.ErrNotRegistered
		}
		return false, err
	}
	ok, err := s.triggers.Delete(ctx, reg.ID, id)
	if ok {
		s.matcher.Invalidate(communityID)
	}
	return ok, err
}

func (s *TriggerServiceImpl) SetEnabled(ctx context.Context, communityID, ownerID int64, id uuid.UUID, enabled bool) (bool, error) {
	reg, err := s.regs.Get(ctx, communityID, ownerID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, errs.ErrNotRegistered
		}
		return false, err
	}
	ok, err := s.triggers.SetEnabled(ctx, reg.ID, id, enabled)
	if ok {
		s.matcher.Invalidate(communityID)
	}
	return ok, err
}

func (s *TriggerServiceImpl) List(ctx context.Context, communityID, ownerID int64, includeDisabled bool) ([]model.Trigger, error) {
	reg, err := s.regs.Get(ctx, communityID, ownerID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrNotRegistered
		}
		return nil, err
	}
	return s.triggers.ListByRegistration(ctx, reg.ID, includeDisabled)
}

func (s *TriggerServiceImpl) HandleMessage(ctx context.Context, communityID, personID int64, personName, text string) (*model.DispatchResult, *model.Trigger, error) {
	matched, ok, err := s.matcher.Match(ctx, communityID, personID, text)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, nil
	}
	if s.metrics != nil {
		s.metrics.TriggerMatches.Inc()
		s.metrics.CachedCommunities.Set(float64(s.matcher.CachedCommunities()))
		s.metrics.CachedRegexes.Set(float64(s.matcher.CachedRegexes()))
	}

	ready, remaining, err := s.tracker.TriggerCheck(ctx, matched.ID)
	if err != nil {
		return nil, nil, err
	}
	if !ready {
		s.logger.Debug("trigger cooling down",
			zap.String("trigger_id", matched.ID.String()),
			zap.Duration("remaining", remaining))
		// The matched trigger is still returned so callers can tell the
		// owner it is throttled rather than broken.
		return nil, matched, &errs.CooldownError{Axis: errs.AxisTrigger, Remaining: remaining}
	}

	res, err := s.dispatcher.Dispatch(ctx, model.ActionRequest{
		CommunityID:    communityID,
		ControllerID:   personID,
		ControllerName: personName,
		TargetPersonID: personID,
		TargetName:     personName,
		Kind:           matched.Kind,
		Intensity:      matched.Intensity,
		DurationMS:     matched.DurationMS,
		Label:          "trigger: " + matched.Name,
		Source:         model.SourceTrigger,
	})
	if err != nil {
		return nil, matched, err
	}

	if err := s.tracker.MarkTriggerFired(ctx, matched.ID); err != nil {
		s.logger.Error("mark trigger fired", zap.Error(err))
	}
	return res, matched, nil
}
