// Package errs contains sentinel and structured errors used across layers
// for stable error mapping.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotRegistered indicates the target has no registration in the community.
	ErrNotRegistered = errors.New("not registered")

	// ErrNoDevices indicates the target registration has no devices.
	ErrNoDevices = errors.New("no devices")

	// ErrNoConsent indicates the controller holds no grant for the target.
	ErrNoConsent = errors.New("no consent")

	// ErrDeviceNotWorn indicates the target's device-worn flag is off.
	ErrDeviceNotWorn = errors.New("device not worn")

	// ErrAlreadyExists indicates a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates failed authentication of the host caller.
	ErrUnauthorized = errors.New("unauthorized")
)

// CooldownAxis names which throttle rejected an action.
type CooldownAxis string

const (
	AxisDevice     CooldownAxis = "device"
	AxisController CooldownAxis = "controller"
	AxisTrigger    CooldownAxis = "trigger"
)

// CooldownError reports a throttled action and the wait remaining.
type CooldownError struct {
	Axis      CooldownAxis
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s cooldown active, %s remaining", e.Axis, e.Remaining.Round(time.Second))
}

// IsCooldown reports whether err is a CooldownError and returns it.
func IsCooldown(err error) (*CooldownError, bool) {
	var ce *CooldownError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// ExternalError carries the control API's status and raw body so the
// presentation layer can build remediation hints. Status 0 means the service
// was unreachable (transport failure).
type ExternalError struct {
	Status int
	Body   string
}

func (e *ExternalError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("control api unreachable: %s", e.Body)
	}
	return fmt.Sprintf("control api status %d: %s", e.Status, e.Body)
}

// ConfigError rejects malformed user-supplied configuration (regex patterns,
// recurrence specs, parameter ranges) before anything is persisted.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
