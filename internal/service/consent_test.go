package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/model"
)

func newConsentEnv(t *testing.T) (*ConsentServiceImpl, *fakeRegRepo, *fakeConsentRepo) {
	t.Helper()
	regs := newFakeRegRepo()
	consent := newFakeConsentRepo()
	return NewConsentService(regs, consent), regs, consent
}

func TestConsentService_GrantRevoke(t *testing.T) {
	svc, regs, _ := newConsentEnv(t)
	registerPerson(t, regs, testTarget)
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, testCommunity, testTarget, model.PersonGrantee(testController)))
	require.ErrorIs(t, svc.Grant(ctx, testCommunity, testTarget, model.PersonGrantee(testController)), errs.ErrAlreadyExists)
	require.NoError(t, svc.Grant(ctx, testCommunity, testTarget, model.GroupGrantee(777)))

	list, err := svc.List(ctx, testCommunity, testTarget)
	require.NoError(t, err)
	require.Equal(t, []int64{testController}, list.People)
	require.Equal(t, []int64{777}, list.Groups)

	ok, err := svc.Revoke(ctx, testCommunity, testTarget, model.PersonGrantee(testController))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = svc.Revoke(ctx, testCommunity, testTarget, model.PersonGrantee(testController))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConsentService_Grant_NotRegistered(t *testing.T) {
	svc, _, _ := newConsentEnv(t)
	err := svc.Grant(context.Background(), testCommunity, 999, model.PersonGrantee(testController))
	require.ErrorIs(t, err, errs.ErrNotRegistered)
}

func TestConsentService_CanControl(t *testing.T) {
	svc, regs, consent := newConsentEnv(t)
	regID := registerPerson(t, regs, testTarget)
	ctx := context.Background()

	// Self-control always allowed, even with no edges.
	ok, err := svc.CanControl(ctx, testCommunity, testTarget, testTarget, nil)
	require.NoError(t, err)
	require.True(t, ok)

	// No edge yet.
	ok, err = svc.CanControl(ctx, testCommunity, testController, testTarget, nil)
	require.NoError(t, err)
	require.False(t, ok)

	// Direct person edge.
	consent.edges[regID] = []model.Grantee{model.PersonGrantee(testController)}
	ok, err = svc.CanControl(ctx, testCommunity, testController, testTarget, nil)
	require.NoError(t, err)
	require.True(t, ok)

	// Group edge honours the live membership the caller supplies.
	consent.edges[regID] = []model.Grantee{model.GroupGrantee(777)}
	ok, err = svc.CanControl(ctx, testCommunity, testController, testTarget, []int64{555})
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = svc.CanControl(ctx, testCommunity, testController, testTarget, []int64{555, 777})
	require.NoError(t, err)
	require.True(t, ok)

	// Unregistered target is simply uncontrollable, not an error.
	ok, err = svc.CanControl(ctx, testCommunity, testController, 999, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReminderService_Create_Validation(t *testing.T) {
	regs := newFakeRegRepo()
	consentRepo := newFakeConsentRepo()
	consent := NewConsentService(regs, consentRepo)
	reminders := newFakeReminderRepo()
	svc := NewReminderService(reminders, consent)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	regID := registerPerson(t, regs, testTarget)
	ctx := context.Background()

	base := CreateReminderParams{
		CommunityID:    testCommunity,
		CreatorID:      testController,
		TargetPersonID: testTarget,
		FireAt:         now.Add(time.Hour),
		Reason:         "hydrate",
		Kind:           model.KindVibrate,
		Intensity:      40,
		DurationMS:     1500,
	}

	// Creator holds no grant yet.
	_, err := svc.Create(ctx, base)
	require.ErrorIs(t, err, errs.ErrNoConsent)

	consentRepo.edges[regID] = []model.Grantee{model.PersonGrantee(testController)}

	p := base
	p.FireAt = now.Add(-time.Minute)
	_, err = svc.Create(ctx, p)
	var cfg *errs.ConfigError
	require.ErrorAs(t, err, &cfg)

	p = base
	p.Recurrence = "every blue moon"
	_, err = svc.Create(ctx, p)
	require.ErrorAs(t, err, &cfg)

	p = base
	p.Recurrence = "every 3 days"
	rem, err := svc.Create(ctx, p)
	require.NoError(t, err)
	require.True(t, rem.Recurring)
	require.Equal(t, base.FireAt.UTC(), rem.FireAt)

	// Self reminders need no grant.
	p = base
	p.CreatorID = testTarget
	_, err = svc.Create(ctx, p)
	require.NoError(t, err)
}

func TestReminderService_Cancel_Authorization(t *testing.T) {
	regs := newFakeRegRepo()
	consent := NewConsentService(regs, newFakeConsentRepo())
	reminders := newFakeReminderRepo()
	svc := NewReminderService(reminders, consent)
	ctx := context.Background()

	rem := dueReminder(time.Now().UTC())
	require.NoError(t, reminders.Create(ctx, rem))

	_, err := svc.Cancel(ctx, testCommunity, rem.ID, 12345)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	ok, err := svc.Cancel(ctx, testCommunity, rem.ID, rem.TargetPersonID)
	require.NoError(t, err)
	require.True(t, ok)
}
