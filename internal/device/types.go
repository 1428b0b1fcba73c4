package device

import (
	"fmt"
	"strings"
	"time"
)

// Device represents a cuckoo: a remote client capable of playing a scheduled
// sound file.
type Device struct {
	// ID is the immutable identifier (dev-xxxxxxxx).
	ID string `json:"id"`

	// Name is the human-readable device name.
	Name string `json:"name"`

	// Type is a free-form category such as "wall_clock" or "speaker".
	Type string `json:"type,omitempty"`

	// PublicUse marks the device as schedulable by any user without an
	// explicit trustee grant.
	PublicUse bool `json:"public_use"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validation constants.
const (
	maxNameLength = 100
	maxTypeLength = 50
)

// Validate checks a device for storable field values.
// Returns an error describing the first validation failure found.
func Validate(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	if len(d.Type) > maxTypeLength {
		return fmt.Errorf("%w: type exceeds %d characters", ErrInvalidDevice, maxTypeLength)
	}
	return nil
}
