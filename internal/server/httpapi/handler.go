// Package httpapi exposes the application core to the chat-bot host over
// authenticated JSON endpoints.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"

	"github.com/pulsegate/pulsegate/internal/cooldown"
	"github.com/pulsegate/pulsegate/internal/errs"
	"github.com/pulsegate/pulsegate/internal/model"
	"github.com/pulsegate/pulsegate/internal/repository"
	"github.com/pulsegate/pulsegate/internal/service"
)

// Handler carries the services the endpoints delegate to.
type Handler struct {
	Registrations service.RegistrationService
	Consent       service.ConsentService
	Triggers      service.TriggerService
	Reminders     service.ReminderService
	Prefs         service.PreferenceService
	Dispatcher    service.Dispatcher
	Audit         repository.AuditRepository
	Tracker       cooldown.Tracker
}

func pathInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.FromString(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return v, true
}

// --- registrations ---

type setupRequest struct {
	PersonID    int64  `json:"person_id" binding:"required"`
	DisplayName string `json:"display_name"`
	Credential  string `json:"credential" binding:"required"`
	APIBase     string `json:"api_base"`
}

func (h *Handler) Setup(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	var in setupRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	shockers, err := h.Registrations.Setup(c.Request.Context(), community, in.PersonID, in.DisplayName, in.Credential, in.APIBase)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(shockers))
	for _, s := range shockers {
		out = append(out, gin.H{"ref": s.Ref, "name": s.Name})
	}
	c.JSON(http.StatusCreated, gin.H{"controllable_devices": out})
}

func (h *Handler) GetRegistration(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	reg, err := h.Registrations.Get(c.Request.Context(), community, person)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"person_id":    reg.PersonID,
		"display_name": reg.DisplayName,
		"device_worn":  reg.DeviceWorn,
		"api_base":     reg.APIBase,
		"created_at":   reg.CreatedAt,
	})
}

func (h *Handler) Unregister(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	removed, err := h.Registrations.Unregister(c.Request.Context(), community, person)
	if err != nil {
		writeError(c, err)
		return
	}
	if !removed {
		writeError(c, errs.ErrNotRegistered)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unregistered"})
}

func (h *Handler) SetWorn(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	var in struct {
		Worn *bool `json:"worn" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Registrations.SetWorn(c.Request.Context(), community, person, *in.Worn); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"worn": *in.Worn})
}

// --- devices ---

func (h *Handler) AddDevice(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	var in struct {
		Ref  string `json:"ref" binding:"required"`
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := h.Registrations.AddDevice(c.Request.Context(), community, person, in.Ref, in.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ref": model.RedactRef(d.Ref), "name": d.Name})
}

func (h *Handler) ListDevices(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	devs, err := h.Registrations.ListDevices(c.Request.Context(), community, person)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(devs))
	for _, d := range devs {
		out = append(out, gin.H{
			"ref":            model.RedactRef(d.Ref),
			"name":           d.Name,
			"last_action_at": d.LastActionAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"devices": out})
}

func (h *Handler) RemoveDevice(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	removed, err := h.Registrations.RemoveDevice(c.Request.Context(), community, person, c.Param("ref"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !removed {
		writeError(c, errs.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// --- consent ---

type granteeRequest struct {
	PersonID *int64 `json:"person_id"`
	GroupID  *int64 `json:"group_id"`
}

func (r granteeRequest) grantee() (model.Grantee, bool) {
	switch {
	case r.PersonID != nil && r.GroupID == nil:
		return model.PersonGrantee(*r.PersonID), true
	case r.GroupID != nil && r.PersonID == nil:
		return model.GroupGrantee(*r.GroupID), true
	}
	return model.Grantee{}, false
}

func (h *Handler) Grant(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	var in granteeRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, valid := in.grantee()
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of person_id or group_id required"})
		return
	}
	if err := h.Consent.Grant(c.Request.Context(), community, person, g); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "granted"})
}

func (h *Handler) Revoke(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	var in granteeRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, valid := in.grantee()
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of person_id or group_id required"})
		return
	}
	removed, err := h.Consent.Revoke(c.Request.Context(), community, person, g)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *Handler) RevokeAll(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	if err := h.Consent.RevokeAll(c.Request.Context(), community, person); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked all"})
}

func (h *Handler) ListConsent(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	list, err := h.Consent.List(c.Request.Context(), community, person)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"people": list.People, "groups": list.Groups})
}

func (h *Handler) CanControl(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	var in struct {
		ControllerID int64   `json:"controller_id" binding:"required"`
		TargetID     int64   `json:"target_id" binding:"required"`
		GroupIDs     []int64 `json:"group_ids"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	allowed, err := h.Consent.CanControl(c.Request.Context(), community, in.ControllerID, in.TargetID, in.GroupIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": allowed})
}

func (h *Handler) ControllableTargets(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	var in struct {
		ControllerID int64   `json:"controller_id" binding:"required"`
		GroupIDs     []int64 `json:"group_ids"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	targets, err := h.Consent.ControllableTargets(c.Request.Context(), community, in.ControllerID, in.GroupIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"targets": targets})
}

// --- cooldown configuration ---

func (h *Handler) SetCooldown(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	var in struct {
		Seconds int `json:"seconds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if in.Seconds < 1 {
		writeError(c, &errs.ConfigError{Field: "seconds", Reason: "must be positive"})
		return
	}
	err := h.Tracker.SetPairWindow(c.Request.Context(), person, community, time.Duration(in.Seconds)*time.Second)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seconds": in.Seconds})
}

func (h *Handler) GetCooldown(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	window, err := h.Tracker.PairWindow(c.Request.Context(), person, community, cooldown.DefaultPairWindow)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seconds": int(window.Seconds())})
}

// --- actions ---

type actionRequest struct {
	ControllerID   int64   `json:"controller_id" binding:"required"`
	ControllerName string  `json:"controller_name"`
	GroupIDs       []int64 `json:"group_ids"`
	TargetID       int64   `json:"target_id" binding:"required"`
	TargetName     string  `json:"target_name"`
	DeviceRef      string  `json:"device_ref"`
	Kind           string  `json:"kind" binding:"required"`
	Intensity      int     `json:"intensity" binding:"required"`
	DurationMS     int     `json:"duration_ms" binding:"required"`
	Label          string  `json:"label"`
}

func (h *Handler) DispatchAction(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	var in actionRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.Dispatcher.Dispatch(c.Request.Context(), model.ActionRequest{
		CommunityID:        community,
		ControllerID:       in.ControllerID,
		ControllerName:     in.ControllerName,
		ControllerGroupIDs: in.GroupIDs,
		TargetPersonID:     in.TargetID,
		TargetName:         in.TargetName,
		DeviceRef:          in.DeviceRef,
		Kind:               model.ActionKind(in.Kind),
		Intensity:          in.Intensity,
		DurationMS:         in.DurationMS,
		Label:              in.Label,
		Source:             model.SourceManual,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"device": gin.H{"ref": model.RedactRef(res.Device.Ref), "name": res.Device.Name},
		"status": res.StatusCode,
	})
}

// --- messages (trigger pipeline) ---

func (h *Handler) HandleMessage(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	var in struct {
		PersonID   int64  `json:"person_id" binding:"required"`
		PersonName string `json:"person_name"`
		Text       string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, matched, err := h.Triggers.HandleMessage(c.Request.Context(), community, in.PersonID, in.PersonName, in.Text)
	if err != nil {
		// A cooling-down trigger is a normal outcome of message handling,
		// not a failed request: report it so the host can say so.
		if ce, ok := errs.IsCooldown(err); ok && matched != nil {
			c.JSON(http.StatusOK, gin.H{
				"matched":      true,
				"throttled":    true,
				"trigger":      gin.H{"id": matched.ID, "name": matched.Name},
				"axis":         string(ce.Axis),
				"retry_in_sec": int(ce.Remaining.Seconds()),
			})
			return
		}
		writeError(c, err)
		return
	}
	if matched == nil {
		c.JSON(http.StatusOK, gin.H{"matched": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"matched": true,
		"trigger": gin.H{"id": matched.ID, "name": matched.Name},
		"status":  res.StatusCode,
	})
}

// --- triggers ---

type createTriggerRequest struct {
	Name        string `json:"name"`
	Pattern     string `json:"pattern" binding:"required"`
	Kind        string `json:"kind" binding:"required"`
	Intensity   int    `json:"intensity" binding:"required"`
	DurationMS  int    `json:"duration_ms" binding:"required"`
	CooldownSec int    `json:"cooldown_sec"`
}

func (h *Handler) CreateTrigger(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	var in createTriggerRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.Triggers.Create(c.Request.Context(), community, person, in.Name, in.Pattern,
		model.ActionKind(in.Kind), in.Intensity, in.DurationMS, in.CooldownSec)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, triggerView(t))
}

func triggerView(t *model.Trigger) gin.H {
	return gin.H{
		"id":           t.ID,
		"name":         t.Name,
		"pattern":      t.Pattern,
		"kind":         t.Kind,
		"intensity":    t.Intensity,
		"duration_ms":  t.DurationMS,
		"cooldown_sec": t.CooldownSec,
		"enabled":      t.Enabled,
	}
}

func (h *Handler) ListTriggers(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	includeDisabled := c.Query("include_disabled") == "true"
	triggers, err := h.Triggers.List(c.Request.Context(), community, person, includeDisabled)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(triggers))
	for i := range triggers {
		out = append(out, triggerView(&triggers[i]))
	}
	c.JSON(http.StatusOK, gin.H{"triggers": out})
}

func (h *Handler) DeleteTrigger(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	removed, err := h.Triggers.Delete(c.Request.Context(), community, person, id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !removed {
		writeError(c, errs.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) SetTriggerEnabled(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	person, ok := pathInt64(c, "person")
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var in struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := h.Triggers.SetEnabled(c.Request.Context(), community, person, id, *in.Enabled)
	if err != nil {
		writeError(c, err)
		return
	}
	if !updated {
		writeError(c, errs.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": *in.Enabled})
}

// --- reminders ---

type createReminderRequest struct {
	CreatorID  int64   `json:"creator_id" binding:"required"`
	GroupIDs   []int64 `json:"group_ids"`
	TargetID   int64   `json:"target_id" binding:"required"`
	FireAt     string  `json:"fire_at" binding:"required"` // RFC 3339
	Reason     string  `json:"reason"`
	Kind       string  `json:"kind" binding:"required"`
	Intensity  int     `json:"intensity" binding:"required"`
	DurationMS int     `json:"duration_ms" binding:"required"`
	ChannelID  *int64  `json:"channel_id"`
	Recurrence string  `json:"recurrence"`
}

func (h *Handler) CreateReminder(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	var in createReminderRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fireAt, err := time.Parse(time.RFC3339, in.FireAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fire_at must be RFC 3339"})
		return
	}
	rem, err := h.Reminders.Create(c.Request.Context(), service.CreateReminderParams{
		CommunityID:     community,
		CreatorID:       in.CreatorID,
		CreatorGroupIDs: in.GroupIDs,
		TargetPersonID:  in.TargetID,
		FireAt:          fireAt,
		Reason:          in.Reason,
		Kind:            model.ActionKind(in.Kind),
		Intensity:       in.Intensity,
		DurationMS:      in.DurationMS,
		ChannelID:       in.ChannelID,
		Recurrence:      in.Recurrence,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reminderView(rem))
}

func reminderView(r *model.Reminder) gin.H {
	return gin.H{
		"id":          r.ID,
		"target_id":   r.TargetPersonID,
		"creator_id":  r.CreatorID,
		"fire_at":     r.FireAt,
		"reason":      r.Reason,
		"kind":        r.Kind,
		"intensity":   r.Intensity,
		"duration_ms": r.DurationMS,
		"recurring":   r.Recurring,
		"recurrence":  r.Recurrence,
		"completed":   r.Completed,
	}
}

func (h *Handler) GetReminder(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	rem, err := h.Reminders.Get(c.Request.Context(), community, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reminderView(rem))
}

func (h *Handler) ListReminders(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	includeCompleted := c.Query("include_completed") == "true"
	ctx := c.Request.Context()

	var (
		out []model.Reminder
		err error
	)
	switch {
	case c.Query("creator") != "":
		creator, perr := strconv.ParseInt(c.Query("creator"), 10, 64)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid creator"})
			return
		}
		out, err = h.Reminders.ListByCreator(ctx, community, creator, includeCompleted)
	case c.Query("target") != "":
		target, perr := strconv.ParseInt(c.Query("target"), 10, 64)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target"})
			return
		}
		out, err = h.Reminders.ListForTarget(ctx, community, target, includeCompleted)
	default:
		out, err = h.Reminders.ListByCommunity(ctx, community, includeCompleted)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]gin.H, 0, len(out))
	for i := range out {
		views = append(views, reminderView(&out[i]))
	}
	c.JSON(http.StatusOK, gin.H{"reminders": views})
}

func (h *Handler) CancelReminder(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	caller, err := strconv.ParseInt(c.Query("caller"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "caller query parameter required"})
		return
	}
	removed, err := h.Reminders.Cancel(c.Request.Context(), community, id, caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// --- audit ---

func (h *Handler) ListAudit(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	ctx := c.Request.Context()

	var (
		entries []model.AuditEntry
		total   *int64
		err     error
	)
	switch {
	case c.Query("target") != "":
		target, perr := strconv.ParseInt(c.Query("target"), 10, 64)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target"})
			return
		}
		entries, err = h.Audit.ListForTarget(ctx, community, target, limit, offset)
		if err == nil {
			n, cerr := h.Audit.CountForTarget(ctx, community, target)
			if cerr == nil {
				total = &n
			}
		}
	case c.Query("controller") != "":
		controller, perr := strconv.ParseInt(c.Query("controller"), 10, 64)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid controller"})
			return
		}
		entries, err = h.Audit.ListByController(ctx, community, controller, limit, offset)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "target or controller query parameter required"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		views = append(views, gin.H{
			"controller_id":   e.ControllerID,
			"controller_name": e.ControllerName,
			"target_id":       e.TargetID,
			"target_name":     e.TargetName,
			"kind":            e.Kind,
			"intensity":       e.Intensity,
			"duration_ms":     e.DurationMS,
			"device_ref":      e.DeviceRef,
			"success":         e.Success,
			"error":           e.ErrorDetail,
			"source":          e.Source,
			"created_at":      e.CreatedAt,
		})
	}
	out := gin.H{"entries": views}
	if total != nil {
		out["total"] = *total
	}
	c.JSON(http.StatusOK, out)
}

// --- preferences ---

func (h *Handler) ResolvePrefs(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	controller, ok := pathInt64(c, "controller")
	if !ok {
		return
	}
	var target *int64
	if q := c.Query("target"); q != "" {
		v, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target"})
			return
		}
		target = &v
	}
	defaults, err := h.Prefs.Resolve(c.Request.Context(), controller, community, target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"kind":        defaults.Kind,
		"intensity":   defaults.Intensity,
		"duration_ms": defaults.DurationMS,
	})
}

func (h *Handler) SetPrefs(c *gin.Context) {
	community, ok := pathInt64(c, "community")
	if !ok {
		return
	}
	controller, ok := pathInt64(c, "controller")
	if !ok {
		return
	}
	var in struct {
		TargetID      *int64 `json:"target_id"`
		Kind          string `json:"kind" binding:"required"`
		Intensity     int    `json:"intensity" binding:"required"`
		DurationMS    int    `json:"duration_ms" binding:"required"`
		SmartDefaults *bool  `json:"smart_defaults"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	smart := true
	if in.SmartDefaults != nil {
		smart = *in.SmartDefaults
	}
	err := h.Prefs.SetDefaults(c.Request.Context(), &model.Preference{
		ControllerID:   controller,
		CommunityID:    community,
		TargetPersonID: in.TargetID,
		DefaultKind:    model.ActionKind(in.Kind),
		DefaultInt:     in.Intensity,
		DefaultDurMS:   in.DurationMS,
		SmartDefaults:  smart,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}
