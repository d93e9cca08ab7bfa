package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/pulsegate/pulsegate/internal/cooldown"
	"github.com/pulsegate/pulsegate/internal/crypto/credcrypto"
	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/metrics"
	"github.com/pulsegate/pulsegate/internal/model"
	"github.com/pulsegate/pulsegate/internal/repository"
	"github.com/pulsegate/pulsegate/internal/shockapi"
)

// Dispatcher is the single choke point for firing actions. Every origin
// (manual command, chat trigger, scheduled reminder) funnels through Dispatch
// so the gate order and side effects cannot diverge.
type Dispatcher interface {
	Dispatch(ctx context.Context, req model.ActionRequest) (*model.DispatchResult, error)
}

type DispatcherImpl struct {
	regs    repository.RegistrationRepository
	devices repository.DeviceRepository
	consent repository.ConsentRepository
	audit   repository.AuditRepository
	prefs   repository.PreferenceRepository
	tracker cooldown.Tracker
	keeper  *credcrypto.Keeper
	api     shockapi.Sender
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewDispatcher constructs the dispatcher. metrics may be nil in tests.
func NewDispatcher(
	regs repository.RegistrationRepository,
	devices repository.DeviceRepository,
	consent repository.ConsentRepository,
	audit repository.AuditRepository,
	prefs repository.PreferenceRepository,
	tracker cooldown.Tracker,
	keeper *credcrypto.Keeper,
	api shockapi.Sender,
	m *metrics.Metrics,
	logger *zap.Logger,
) *DispatcherImpl {
	return &DispatcherImpl{
		regs: regs, devices: devices, consent: consent, audit: audit,
		prefs: prefs, tracker: tracker, keeper: keeper, api: api,
		metrics: m, logger: logger,
	}
}

// Dispatch runs the gate sequence and, when every gate passes, fires the
// action. Gate order: parameters, registration, devices, consent, device
// worn, device cooldown, controller-pair cooldown. Gate failures return
// typed errors and leave all cooldown state untouched. Once the external
// call is attempted an audit entry is written regardless of outcome;
// cooldown and preference updates happen only on success.
func (d *DispatcherImpl) Dispatch(ctx context.Context, req model.ActionRequest) (*model.DispatchResult, error) {
	started := time.Now()
	res, err := d.dispatch(ctx, req)
	if d.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = outcomeLabel(err)
		}
		d.metrics.DispatchTotal.WithLabelValues(string(req.Source), outcome).Inc()
		d.metrics.DispatchDuration.Observe(time.Since(started).Seconds())
	}
	return res, err
}

func (d *DispatcherImpl) dispatch(ctx context.Context, req model.ActionRequest) (*model.DispatchResult, error) {
	if req.Intensity < model.MinIntensity || req.Intensity > model.MaxIntensity {
		return nil, &errs.ConfigError{Field: "intensity",
			Reason: fmt.Sprintf("must be %d..%d", model.MinIntensity, model.MaxIntensity)}
	}
	if req.DurationMS < model.MinDurationMS || req.DurationMS > model.MaxDurationMS {
		return nil, &errs.ConfigError{Field: "duration",
			Reason: fmt.Sprintf("must be %d..%d ms", model.MinDurationMS, model.MaxDurationMS)}
	}

	reg, err := d.regs.Get(ctx, req.CommunityID, req.TargetPersonID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrNotRegistered
		}
		return nil, err
	}

	devs, err := d.devices.List(ctx, reg.ID)
	if err != nil {
		return nil, err
	}
	if len(devs) == 0 {
		return nil, errs.ErrNoDevices
	}
	device, err := pickDevice(devs, req.DeviceRef)
	if err != nil {
		return nil, err
	}

	if !req.SelfControl() {
		ok, err := d.consent.HasEdge(ctx, reg.ID, req.ControllerID, req.ControllerGroupIDs)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.ErrNoConsent
		}
	}

	if !reg.DeviceWorn {
		return nil, errs.ErrDeviceNotWorn
	}

	ready, remaining, err := d.tracker.DeviceReady(ctx, reg.ID, device.Ref, cooldown.DefaultDeviceWindow)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, &errs.CooldownError{Axis: errs.AxisDevice, Remaining: remaining}
	}

	pairWindow := cooldown.DefaultPairWindow
	if !req.SelfControl() {
		ready, remaining, err = d.tracker.PairCheck(ctx, req.ControllerID, req.TargetPersonID, req.CommunityID, cooldown.DefaultPairWindow)
		if err != nil {
			return nil, err
		}
		if !ready {
			return nil, &errs.CooldownError{Axis: errs.AxisController, Remaining: remaining}
		}
		pairWindow, err = d.tracker.PairWindow(ctx, req.TargetPersonID, req.CommunityID, cooldown.DefaultPairWindow)
		if err != nil {
			return nil, err
		}
	}

	credential, err := d.keeper.Open(reg.CredentialEnc, req.TargetPersonID, req.CommunityID)
	if err != nil {
		return nil, fmt.Errorf("open credential: %w", err)
	}

	status, sendErr := d.api.SendControl(ctx, credential, reg.APIBase, device.Ref,
		req.Kind, req.Intensity, req.DurationMS, req.Label)

	d.appendAudit(ctx, req, device, sendErr)

	if sendErr != nil {
		return nil, sendErr
	}

	if err := d.tracker.MarkDeviceUsed(ctx, reg.ID, device.Ref); err != nil {
		d.logger.Error("mark device used", zap.Error(err))
	}
	if !req.SelfControl() {
		if err := d.tracker.PairUpdate(ctx, req.ControllerID, req.TargetPersonID, req.CommunityID, pairWindow); err != nil {
			d.logger.Error("update pair cooldown", zap.Error(err))
		}
		if req.Source == model.SourceManual {
			if err := d.prefs.UpdateLastUsed(ctx, req.ControllerID, req.CommunityID, req.TargetPersonID,
				req.Kind, req.Intensity, req.DurationMS); err != nil {
				d.logger.Error("update preferences", zap.Error(err))
			}
		}
	}

	return &model.DispatchResult{Device: *device, StatusCode: status}, nil
}

// appendAudit records the attempt. Audit failures are logged, not returned;
// the action already happened.
func (d *DispatcherImpl) appendAudit(ctx context.Context, req model.ActionRequest, device *model.Device, sendErr error) {
	entry := &model.AuditEntry{
		ID:             uuid.Must(uuid.NewV4()),
		CommunityID:    req.CommunityID,
		ControllerID:   req.ControllerID,
		ControllerName: req.ControllerName,
		TargetID:       req.TargetPersonID,
		TargetName:     req.TargetName,
		Kind:           req.Kind,
		Intensity:      req.Intensity,
		DurationMS:     req.DurationMS,
		DeviceRef:      model.RedactRef(device.Ref),
		DeviceName:     device.Name,
		Success:        sendErr == nil,
		Source:         req.Source,
	}
	if sendErr != nil {
		entry.ErrorDetail = sendErr.Error()
	}
	if err := d.audit.Append(ctx, entry); err != nil {
		d.logger.Error("append audit entry", zap.Error(err))
	}
}

func pickDevice(devs []model.Device, ref string) (*model.Device, error) {
	if ref == "" {
		return &devs[0], nil
	}
	for i := range devs {
		if devs[i].Ref == ref {
			return &devs[i], nil
		}
	}
	return nil, errs.ErrNotFound
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, errs.ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, errs.ErrNoDevices):
		return "no_devices"
	case errors.Is(err, errs.ErrNoConsent):
		return "no_consent"
	case errors.Is(err, errs.ErrDeviceNotWorn):
		return "not_worn"
	}
	if ce, ok := errs.IsCooldown(err); ok {
		return string(ce.Axis) + "_cooldown"
	}
	var ext *errs.ExternalError
	if errors.As(err, &ext) {
		return "api_error"
	}
	var cfg *errs.ConfigError
	if errors.As(err, &cfg) {
		return "invalid_params"
	}
	return "error"
}
