package device

import "errors"

// Domain errors for the device package. Check with errors.Is().
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrDeviceInUse is returned when deleting a device that schedules still
	// reference. Devices are never silently removed from under a schedule.
	ErrDeviceInUse = errors.New("device: referenced by schedules")
)
