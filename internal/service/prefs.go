package service

import (
	"context"

	"github.com/pulsegate/pulsegate/internal/model"
	"github.com/pulsegate/pulsegate/internal/repository"
)

// Built-in action defaults used when a controller has no stored preference.
const (
	fallbackKind       = model.KindShock
	fallbackIntensity  = 30
	fallbackDurationMS = 1000
)

// ResolvedDefaults is what the host pre-fills a control command with.
type ResolvedDefaults struct {
	Kind       model.ActionKind
	Intensity  int
	DurationMS int
}

// PreferenceService resolves and stores controller action defaults.
type PreferenceService interface {
	// Resolve returns the parameters to pre-fill for the controller acting on
	// the target: last-used values when smart defaults are on and present,
	// else configured defaults, else built-ins. Target-specific rows win over
	// the community wildcard.
	Resolve(ctx context.Context, controllerID, communityID int64, targetID *int64) (ResolvedDefaults, error)
	// SetDefaults stores configured defaults for the controller, optionally
	// scoped to one target.
	SetDefaults(ctx context.Context, p *model.Preference) error
	// Get returns the raw preference row, nil when none exists.
	Get(ctx context.Context, controllerID, communityID int64, targetID *int64) (*model.Preference, error)
}

type PreferenceServiceImpl struct {
	prefs repository.PreferenceRepository
}

// NewPreferenceService constructs a PreferenceService.
func NewPreferenceService(prefs repository.PreferenceRepository) *PreferenceServiceImpl {
	return &PreferenceServiceImpl{prefs: prefs}
}

func (s *PreferenceServiceImpl) Resolve(ctx context.Context, controllerID, communityID int64, targetID *int64) (ResolvedDefaults, error) {
	out := ResolvedDefaults{Kind: fallbackKind, Intensity: fallbackIntensity, DurationMS: fallbackDurationMS}

	p, err := s.prefs.Get(ctx, controllerID, communityID, targetID)
	if err != nil {
		return out, err
	}
	if p == nil {
		return out, nil
	}

	if p.DefaultKind != "" {
		out.Kind = p.DefaultKind
	}
	if p.DefaultInt > 0 {
		out.Intensity = p.DefaultInt
	}
	if p.DefaultDurMS > 0 {
		out.DurationMS = p.DefaultDurMS
	}

	if p.SmartDefaults && p.LastKind != "" && p.LastInt > 0 && p.LastDurMS > 0 {
		out.Kind = p.LastKind
		out.Intensity = p.LastInt
		out.DurationMS = p.LastDurMS
	}
	return out, nil
}

func (s *PreferenceServiceImpl) SetDefaults(ctx context.Context, p *model.Preference) error {
	return s.prefs.SetDefaults(ctx, p)
}

func (s *PreferenceServiceImpl) Get(ctx context.Context, controllerID, communityID int64, targetID *int64) (*model.Preference, error) {
	return s.prefs.Get(ctx, controllerID, communityID, targetID)
}
