package service

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/model"
	"github.com/pulsegate/pulsegate/internal/trigger"
)

type fakeTriggerRepo struct {
	triggers map[uuid.UUID]*model.Trigger
	byPerson map[int64][]model.Trigger // served to the matcher
}

func newFakeTriggerRepo() *fakeTriggerRepo {
	return &fakeTriggerRepo{
		triggers: make(map[uuid.UUID]*model.Trigger),
		byPerson: make(map[int64][]model.Trigger),
	}
}

func (f *fakeTriggerRepo) Create(_ context.Context, t *model.Trigger) error {
	f.triggers[t.ID] = t
	return nil
}

func (f *fakeTriggerRepo) Get(_ context.Context, id uuid.UUID) (*model.Trigger, error) {
	t, ok := f.triggers[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return t, nil
}

func (f *fakeTriggerRepo) Delete(_ context.Context, registrationID, id uuid.UUID) (bool, error) {
	t, ok := f.triggers[id]
	if !ok || t.RegistrationID != registrationID {
		return false, nil
	}
	delete(f.triggers, id)
	return true, nil
}

func (f *fakeTriggerRepo) SetEnabled(_ context.Context, registrationID, id uuid.UUID, enabled bool) (bool, error) {
	t, ok := f.triggers[id]
	if !ok || t.RegistrationID != registrationID {
		return false, nil
	}
	t.Enabled = enabled
	return true, nil
}

func (f *fakeTriggerRepo) ListByRegistration(_ context.Context, registrationID uuid.UUID, includeDisabled bool) ([]model.Trigger, error) {
	var out []model.Trigger
	for _, t := range f.triggers {
		if t.RegistrationID == registrationID && (includeDisabled || t.Enabled) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTriggerRepo) ListEnabledByCommunity(_ context.Context, _ int64) (map[int64][]model.Trigger, error) {
	return f.byPerson, nil
}

func newTriggerEnv(t *testing.T) (*TriggerServiceImpl, *fakeRegRepo, *fakeTriggerRepo, *fakeTracker, *fakeDispatcher) {
	t.Helper()
	regs := newFakeRegRepo()
	triggers := newFakeTriggerRepo()
	tracker := newFakeTracker()
	dispatcher := &fakeDispatcher{}
	matcher := trigger.NewMatcher(triggers, zap.NewNop())
	svc := NewTriggerService(regs, triggers, matcher, tracker, dispatcher, nil, zap.NewNop())
	return svc, regs, triggers, tracker, dispatcher
}

func registerPerson(t *testing.T, regs *fakeRegRepo, personID int64) uuid.UUID {
	t.Helper()
	reg := &model.Registration{
		ID:          uuid.Must(uuid.NewV4()),
		CommunityID: testCommunity,
		PersonID:    personID,
		DeviceWorn:  true,
	}
	require.NoError(t, regs.Upsert(context.Background(), reg))
	return reg.ID
}

func TestTriggerService_Create_Validation(t *testing.T) {
	svc, regs, _, _, _ := newTriggerEnv(t)
	registerPerson(t, regs, testTarget)
	ctx := context.Background()

	_, err := svc.Create(ctx, testCommunity, testTarget, "bad", "[unclosed", model.KindShock, 30, 1000, 60)
	var cfg *errs.ConfigError
	require.ErrorAs(t, err, &cfg)

	_, err = svc.Create(ctx, testCommunity, testTarget, "bad", "ok", model.KindShock, 0, 1000, 60)
	require.ErrorAs(t, err, &cfg)

	_, err = svc.Create(ctx, testCommunity, 999, "t", "ok", model.KindShock, 30, 1000, 60)
	require.ErrorIs(t, err, errs.ErrNotRegistered)

	got, err := svc.Create(ctx, testCommunity, testTarget, "t", "ouch", model.KindShock, 30, 1000, 0)
	require.NoError(t, err)
	require.Equal(t, defaultTriggerCooldownSec, got.CooldownSec)
	require.True(t, got.Enabled)
}

func TestTriggerService_HandleMessage_FiresAndMarks(t *testing.T) {
	svc, regs, triggers, tracker, dispatcher := newTriggerEnv(t)
	registerPerson(t, regs, testTarget)

	matched := model.Trigger{
		ID:         uuid.Must(uuid.NewV4()),
		Name:       "ouch",
		Pattern:    `\bouch\b`,
		Kind:       model.KindShock,
		Intensity:  25,
		DurationMS: 800,
		Enabled:    true,
	}
	triggers.byPerson[testTarget] = []model.Trigger{matched}

	res, got, err := svc.HandleMessage(context.Background(), testCommunity, testTarget, "alice", "OUCH that hurt")
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, matched.ID, got.ID)

	// The dispatch is self-directed with the trigger's parameters.
	require.Len(t, dispatcher.requests, 1)
	req := dispatcher.requests[0]
	require.Equal(t, model.SourceTrigger, req.Source)
	require.True(t, req.SelfControl())
	require.Equal(t, 25, req.Intensity)

	require.Equal(t, []uuid.UUID{matched.ID}, tracker.firedTriggers)
}

func TestTriggerService_HandleMessage_NoMatch(t *testing.T) {
	svc, regs, _, _, dispatcher := newTriggerEnv(t)
	registerPerson(t, regs, testTarget)

	res, got, err := svc.HandleMessage(context.Background(), testCommunity, testTarget, "alice", "nothing here")
	require.NoError(t, err)
	require.Nil(t, res)
	require.Nil(t, got)
	require.Empty(t, dispatcher.requests)
}

func TestTriggerService_HandleMessage_TriggerCooldownIndependent(t *testing.T) {
	svc, regs, triggers, tracker, dispatcher := newTriggerEnv(t)
	registerPerson(t, regs, testTarget)

	matched := model.Trigger{
		ID: uuid.Must(uuid.NewV4()), Name: "ouch", Pattern: "ouch",
		Kind: model.KindShock, Intensity: 25, DurationMS: 800, Enabled: true,
	}
	triggers.byPerson[testTarget] = []model.Trigger{matched}

	// The trigger's own cooldown blocks the fire even though the device
	// cooldown (checked later, inside dispatch) would have allowed it. The
	// matched trigger still comes back so the owner can be told it is
	// throttled, not broken.
	tracker.triggerReady = false

	res, got, err := svc.HandleMessage(context.Background(), testCommunity, testTarget, "alice", "ouch")
	ce, isCooldown := errs.IsCooldown(err)
	require.True(t, isCooldown)
	require.Equal(t, errs.AxisTrigger, ce.Axis)
	require.Nil(t, res)
	require.Equal(t, matched.ID, got.ID)
	require.Empty(t, dispatcher.requests)
	require.Empty(t, tracker.firedTriggers)
}

func TestTriggerService_HandleMessage_DispatchFailure_NotMarked(t *testing.T) {
	svc, regs, triggers, tracker, dispatcher := newTriggerEnv(t)
	registerPerson(t, regs, testTarget)

	matched := model.Trigger{
		ID: uuid.Must(uuid.NewV4()), Name: "ouch", Pattern: "ouch",
		Kind: model.KindShock, Intensity: 25, DurationMS: 800, Enabled: true,
	}
	triggers.byPerson[testTarget] = []model.Trigger{matched}
	dispatcher.err = &errs.CooldownError{Axis: errs.AxisDevice, Remaining: 10}

	_, got, err := svc.HandleMessage(context.Background(), testCommunity, testTarget, "alice", "ouch")
	require.Error(t, err)
	require.Equal(t, matched.ID, got.ID)
	require.Empty(t, tracker.firedTriggers)
}

func TestTriggerService_Delete(t *testing.T) {
	svc, regs, _, _, _ := newTriggerEnv(t)
	registerPerson(t, regs, testTarget)
	ctx := context.Background()

	created, err := svc.Create(ctx, testCommunity, testTarget, "t", "ouch", model.KindShock, 30, 1000, 60)
	require.NoError(t, err)

	ok, err := svc.Delete(ctx, testCommunity, testTarget, created.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Delete(ctx, testCommunity, testTarget, created.ID)
	require.NoError(t, err)
	require.False(t, ok)
}
