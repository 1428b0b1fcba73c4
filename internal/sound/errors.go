package sound

import "errors"

// Domain errors for the sound package. Check with errors.Is().
var (
	// ErrSoundNotFound is returned when a sound ID does not exist.
	ErrSoundNotFound = errors.New("sound: not found")

	// ErrInvalidSound is returned when sound validation fails.
	ErrInvalidSound = errors.New("sound: invalid")

	// ErrSoundInUse is returned when deleting a sound still referenced by a
	// schedule.
	ErrSoundInUse = errors.New("sound: referenced by existing schedules")

	// ErrPayloadTooLarge is returned when an upload exceeds the configured
	// size cap.
	ErrPayloadTooLarge = errors.New("sound: payload exceeds size limit")

	// ErrDeviceMismatch is returned when a device requests the payload of a
	// schedule that does not target it.
	ErrDeviceMismatch = errors.New("sound: schedule does not target requesting device")
)
