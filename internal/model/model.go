// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// ActionKind is the stimulation type understood by the control API.
type ActionKind string

const (
	KindShock   ActionKind = "Shock"
	KindVibrate ActionKind = "Vibrate"
	KindSound   ActionKind = "Sound"
)

// ActionSource tags where an ActionRequest originated.
type ActionSource string

const (
	SourceManual   ActionSource = "manual"
	SourceTrigger  ActionSource = "trigger"
	SourceReminder ActionSource = "reminder"
)

// Parameter bounds accepted by the dispatcher.
const (
	MinIntensity  = 1
	MaxIntensity  = 100
	MinDurationMS = 300
	MaxDurationMS = 65535
)

// Registration is a person's enrollment of a control credential within one
// community. The credential is stored encrypted at rest; CredentialEnc is the
// ciphertext as persisted.
type Registration struct {
	ID            uuid.UUID
	CommunityID   int64
	PersonID      int64
	DisplayName   string
	CredentialEnc []byte // AEAD ciphertext of the control API token
	APIBase       string // optional alternate API endpoint, empty for default
	DeviceWorn    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Device is one controllable hardware unit tied to a registration. Ref is the
// external identifier understood by the control API; it is a capability token
// and must never be surfaced in full (see RedactRef).
type Device struct {
	ID             uuid.UUID
	RegistrationID uuid.UUID
	Ref            string
	Name           string
	LastActionAt   *time.Time // nil until the device first fires
	CreatedAt      time.Time
}

// RedactRef returns the displayable form of a device ref: the last four
// characters prefixed with an ellipsis, or a fully masked placeholder for
// refs too short to redact meaningfully.
func RedactRef(ref string) string {
	if len(ref) > 4 {
		return "..." + ref[len(ref)-4:]
	}
	return "****"
}

// GranteeKind discriminates the Grantee union.
type GranteeKind string

const (
	GranteePerson GranteeKind = "person"
	GranteeGroup  GranteeKind = "group"
)

// Grantee identifies who a consent grant applies to: exactly one person or
// exactly one group. Construct via PersonGrantee or GroupGrantee so the
// "both or neither" state cannot be expressed.
type Grantee struct {
	kind GranteeKind
	id   int64
}

// PersonGrantee builds a person-directed grantee.
func PersonGrantee(personID int64) Grantee {
	return Grantee{kind: GranteePerson, id: personID}
}

// GroupGrantee builds a group-directed grantee.
func GroupGrantee(groupID int64) Grantee {
	return Grantee{kind: GranteeGroup, id: groupID}
}

// Kind returns the union discriminator.
func (g Grantee) Kind() GranteeKind { return g.kind }

// ID returns the person or group identifier.
func (g Grantee) ID() int64 { return g.id }

// IsZero reports whether the grantee was never initialized.
func (g Grantee) IsZero() bool { return g.kind == "" }

// ConsentGrant is a directed consent edge: the owning registration allows the
// grantee to control the owner's devices within one community.
type ConsentGrant struct {
	ID             uuid.UUID
	RegistrationID uuid.UUID
	Grantee        Grantee
	CreatedAt      time.Time
}

// ConsentList is the owner-facing view of current grants.
type ConsentList struct {
	People []int64
	Groups []int64
}

// Trigger is a stored regex pattern that auto-fires a control action when
// matched against chat text from its owner.
type Trigger struct {
	ID             uuid.UUID
	RegistrationID uuid.UUID
	Name           string
	Pattern        string
	Kind           ActionKind
	Intensity      int
	DurationMS     int
	CooldownSec    int
	LastFiredAt    *time.Time
	Enabled        bool
	CreatedAt      time.Time
}

// Reminder is a time-scheduled, optionally recurring, control action.
type Reminder struct {
	ID             uuid.UUID
	CommunityID    int64
	TargetPersonID int64
	CreatorID      int64
	FireAt         time.Time
	Reason         string
	Kind           ActionKind
	Intensity      int
	DurationMS     int
	ChannelID      *int64 // optional notification fallback channel
	Completed      bool
	Recurring      bool
	Recurrence     string // raw pattern string, empty unless Recurring
	LastExecutedAt *time.Time
	CreatedAt      time.Time
}

// AuditEntry records one dispatched action attempt, success or failure.
// DeviceRef is stored pre-redacted.
type AuditEntry struct {
	ID             uuid.UUID
	CommunityID    int64
	ControllerID   int64
	ControllerName string
	TargetID       int64
	TargetName     string
	Kind           ActionKind
	Intensity      int
	DurationMS     int
	DeviceRef      string
	DeviceName     string
	Success        bool
	ErrorDetail    string
	Source         ActionSource
	CreatedAt      time.Time
}

// Preference holds a controller's configured defaults and last-used action
// parameters. TargetPersonID is nil for the community-wide wildcard row.
type Preference struct {
	ID             uuid.UUID
	ControllerID   int64
	CommunityID    int64
	TargetPersonID *int64
	DefaultKind    ActionKind
	DefaultInt     int
	DefaultDurMS   int
	LastKind       ActionKind
	LastInt        int
	LastDurMS      int
	LastTargetID   *int64
	SmartDefaults  bool
	UpdatedAt      time.Time
}

// ActionRequest is the single value type consumed by the dispatcher for all
// three origins.
type ActionRequest struct {
	CommunityID    int64
	ControllerID   int64
	ControllerName string
	// ControllerGroupIDs is the caller-supplied live group membership of the
	// controller, used for group-directed consent edges.
	ControllerGroupIDs []int64
	TargetPersonID     int64
	TargetName         string
	DeviceRef          string // empty selects the target's first device
	Kind               ActionKind
	Intensity          int
	DurationMS         int
	Label              string // free-text name passed to the control API
	Source             ActionSource
}

// SelfControl reports whether the request targets the controller's own device.
func (r ActionRequest) SelfControl() bool { return r.ControllerID == r.TargetPersonID }

// DispatchResult is returned by the dispatcher on success.
type DispatchResult struct {
	Device     Device
	StatusCode int
}
