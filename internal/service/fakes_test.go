package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/model"
	"github.com/pulsegate/pulsegate/internal/shockapi"
)

// In-memory fakes for the storage and external collaborators.

type fakeRegRepo struct {
	regs map[string]*model.Registration // key: community:person
}

func regKey(communityID, personID int64) string {
	return fmt.Sprintf("%d:%d", communityID, personID)
}

func newFakeRegRepo() *fakeRegRepo {
	return &fakeRegRepo{regs: make(map[string]*model.Registration)}
}

func (f *fakeRegRepo) Upsert(_ context.Context, r *model.Registration) error {
	f.regs[regKey(r.CommunityID, r.PersonID)] = r
	return nil
}

func (f *fakeRegRepo) Get(_ context.Context, communityID, personID int64) (*model.Registration, error) {
	r, ok := f.regs[regKey(communityID, personID)]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRegRepo) SetWorn(_ context.Context, communityID, personID int64, worn bool) error {
	r, ok := f.regs[regKey(communityID, personID)]
	if !ok {
		return errs.ErrNotFound
	}
	r.DeviceWorn = worn
	return nil
}

func (f *fakeRegRepo) Delete(_ context.Context, communityID, personID int64) (bool, error) {
	k := regKey(communityID, personID)
	_, ok := f.regs[k]
	delete(f.regs, k)
	return ok, nil
}

func (f *fakeRegRepo) ListByCommunity(_ context.Context, communityID int64) ([]model.Registration, error) {
	var out []model.Registration
	for _, r := range f.regs {
		if r.CommunityID == communityID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeDeviceRepo struct {
	devices map[uuid.UUID][]model.Device
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: make(map[uuid.UUID][]model.Device)}
}

func (f *fakeDeviceRepo) Add(_ context.Context, d *model.Device) error {
	for _, existing := range f.devices[d.RegistrationID] {
		if existing.Ref == d.Ref {
			return errs.ErrAlreadyExists
		}
	}
	f.devices[d.RegistrationID] = append(f.devices[d.RegistrationID], *d)
	return nil
}

func (f *fakeDeviceRepo) Remove(_ context.Context, registrationID uuid.UUID, ref string) (bool, error) {
	devs := f.devices[registrationID]
	for i, d := range devs {
		if d.Ref == ref {
			f.devices[registrationID] = append(devs[:i], devs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDeviceRepo) List(_ context.Context, registrationID uuid.UUID) ([]model.Device, error) {
	return append([]model.Device(nil), f.devices[registrationID]...), nil
}

type fakeConsentRepo struct {
	edges map[uuid.UUID][]model.Grantee
}

func newFakeConsentRepo() *fakeConsentRepo {
	return &fakeConsentRepo{edges: make(map[uuid.UUID][]model.Grantee)}
}

func (f *fakeConsentRepo) Add(_ context.Context, g *model.ConsentGrant) error {
	f.edges[g.RegistrationID] = append(f.edges[g.RegistrationID], g.Grantee)
	return nil
}

func (f *fakeConsentRepo) Remove(_ context.Context, registrationID uuid.UUID, grantee model.Grantee) (bool, error) {
	edges := f.edges[registrationID]
	for i, e := range edges {
		if e == grantee {
			f.edges[registrationID] = append(edges[:i], edges[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeConsentRepo) RemoveAll(_ context.Context, registrationID uuid.UUID) error {
	delete(f.edges, registrationID)
	return nil
}

func (f *fakeConsentRepo) List(_ context.Context, registrationID uuid.UUID) (model.ConsentList, error) {
	var list model.ConsentList
	for _, e := range f.edges[registrationID] {
		switch e.Kind() {
		case model.GranteePerson:
			list.People = append(list.People, e.ID())
		case model.GranteeGroup:
			list.Groups = append(list.Groups, e.ID())
		}
	}
	return list, nil
}

func (f *fakeConsentRepo) HasEdge(_ context.Context, registrationID uuid.UUID, controllerID int64, groupIDs []int64) (bool, error) {
	for _, e := range f.edges[registrationID] {
		if e.Kind() == model.GranteePerson && e.ID() == controllerID {
			return true, nil
		}
		if e.Kind() == model.GranteeGroup {
			for _, g := range groupIDs {
				if e.ID() == g {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

func (f *fakeConsentRepo) ControllableTargets(context.Context, int64, int64, []int64) ([]int64, error) {
	return nil, nil
}

type fakeAuditRepo struct {
	entries []model.AuditEntry
}

func (f *fakeAuditRepo) Append(_ context.Context, e *model.AuditEntry) error {
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeAuditRepo) ListForTarget(context.Context, int64, int64, int, int) ([]model.AuditEntry, error) {
	return f.entries, nil
}

func (f *fakeAuditRepo) ListByController(context.Context, int64, int64, int, int) ([]model.AuditEntry, error) {
	return f.entries, nil
}

func (f *fakeAuditRepo) CountForTarget(context.Context, int64, int64) (int64, error) {
	return int64(len(f.entries)), nil
}

func (f *fakeAuditRepo) DeleteOlderThan(context.Context, int) (int64, error) { return 0, nil }

type lastUsedCall struct {
	controllerID, communityID, targetID int64
	kind                                model.ActionKind
	intensity, durationMS               int
}

type fakePrefRepo struct {
	lastUsed []lastUsedCall
	stored   *model.Preference
}

func (f *fakePrefRepo) Get(context.Context, int64, int64, *int64) (*model.Preference, error) {
	return f.stored, nil
}

func (f *fakePrefRepo) SetDefaults(_ context.Context, p *model.Preference) error {
	f.stored = p
	return nil
}

func (f *fakePrefRepo) UpdateLastUsed(_ context.Context, controllerID, communityID, targetID int64, kind model.ActionKind, intensity, durationMS int) error {
	f.lastUsed = append(f.lastUsed, lastUsedCall{controllerID, communityID, targetID, kind, intensity, durationMS})
	return nil
}

// fakeTracker records cooldown mutations and serves scripted readiness.
type fakeTracker struct {
	deviceReady     bool
	deviceRemaining time.Duration
	pairReady       bool
	pairRemaining   time.Duration
	pairWindow      time.Duration
	triggerReady    bool

	markedDevices  []string
	pairUpdates    []time.Duration
	firedTriggers  []uuid.UUID
	pairChecked    bool
	triggerChecked bool
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{deviceReady: true, pairReady: true, triggerReady: true, pairWindow: 300 * time.Second}
}

func (f *fakeTracker) DeviceReady(context.Context, uuid.UUID, string, time.Duration) (bool, time.Duration, error) {
	return f.deviceReady, f.deviceRemaining, nil
}

func (f *fakeTracker) MarkDeviceUsed(_ context.Context, _ uuid.UUID, ref string) error {
	f.markedDevices = append(f.markedDevices, ref)
	return nil
}

func (f *fakeTracker) PairCheck(context.Context, int64, int64, int64, time.Duration) (bool, time.Duration, error) {
	f.pairChecked = true
	return f.pairReady, f.pairRemaining, nil
}

func (f *fakeTracker) PairUpdate(_ context.Context, _, _, _ int64, window time.Duration) error {
	f.pairUpdates = append(f.pairUpdates, window)
	return nil
}

func (f *fakeTracker) SetPairWindow(context.Context, int64, int64, time.Duration) error { return nil }

func (f *fakeTracker) PairWindow(context.Context, int64, int64, time.Duration) (time.Duration, error) {
	return f.pairWindow, nil
}

func (f *fakeTracker) TriggerCheck(context.Context, uuid.UUID) (bool, time.Duration, error) {
	f.triggerChecked = true
	return f.triggerReady, 30 * time.Second, nil
}

func (f *fakeTracker) MarkTriggerFired(_ context.Context, id uuid.UUID) error {
	f.firedTriggers = append(f.firedTriggers, id)
	return nil
}

type sendCall struct {
	credential, baseURL, deviceRef string
	kind                           model.ActionKind
	intensity, durationMS          int
	label                          string
}

type fakeSender struct {
	sendErr    error
	sendStatus int
	shockers   []shockapi.Shocker
	valErr     error
	calls      []sendCall
}

func (f *fakeSender) SendControl(_ context.Context, credential, baseURL, deviceRef string, kind model.ActionKind, intensity, durationMS int, label string) (int, error) {
	f.calls = append(f.calls, sendCall{credential, baseURL, deviceRef, kind, intensity, durationMS, label})
	if f.sendErr != nil {
		return f.sendStatus, f.sendErr
	}
	if f.sendStatus == 0 {
		return 200, nil
	}
	return f.sendStatus, nil
}

func (f *fakeSender) ValidateCredential(context.Context, string, string) ([]shockapi.Shocker, error) {
	if f.valErr != nil {
		return nil, f.valErr
	}
	return f.shockers, nil
}

type fakeReminderRepo struct {
	reminders   map[uuid.UUID]*model.Reminder
	completed   []uuid.UUID
	rescheduled map[uuid.UUID]time.Time
}

func newFakeReminderRepo() *fakeReminderRepo {
	return &fakeReminderRepo{
		reminders:   make(map[uuid.UUID]*model.Reminder),
		rescheduled: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeReminderRepo) Create(_ context.Context, r *model.Reminder) error {
	f.reminders[r.ID] = r
	return nil
}

func (f *fakeReminderRepo) Get(_ context.Context, communityID int64, id uuid.UUID) (*model.Reminder, error) {
	r, ok := f.reminders[id]
	if !ok || r.CommunityID != communityID {
		return nil, errs.ErrNotFound
	}
	return r, nil
}

func (f *fakeReminderRepo) Due(_ context.Context, now time.Time) ([]model.Reminder, error) {
	var out []model.Reminder
	for _, r := range f.reminders {
		if !r.Completed && !r.FireAt.After(now) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReminderRepo) Reschedule(_ context.Context, id uuid.UUID, next time.Time) error {
	f.rescheduled[id] = next
	if r, ok := f.reminders[id]; ok {
		r.FireAt = next
	}
	return nil
}

func (f *fakeReminderRepo) MarkCompleted(_ context.Context, id uuid.UUID) error {
	f.completed = append(f.completed, id)
	if r, ok := f.reminders[id]; ok {
		r.Completed = true
	}
	return nil
}

func (f *fakeReminderRepo) Delete(_ context.Context, _ int64, id uuid.UUID) (bool, error) {
	_, ok := f.reminders[id]
	delete(f.reminders, id)
	return ok, nil
}

func (f *fakeReminderRepo) ListByCommunity(context.Context, int64, bool) ([]model.Reminder, error) {
	return nil, nil
}

func (f *fakeReminderRepo) ListByCreator(context.Context, int64, int64, bool) ([]model.Reminder, error) {
	return nil, nil
}

func (f *fakeReminderRepo) ListForTarget(context.Context, int64, int64, bool) ([]model.Reminder, error) {
	return nil, nil
}

// fakeDispatcher scripts dispatch outcomes for runner and trigger tests.
type fakeDispatcher struct {
	err      error
	requests []model.ActionRequest
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req model.ActionRequest) (*model.DispatchResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &model.DispatchResult{StatusCode: 200}, nil
}
