package identity

import "errors"

// Domain errors for the identity package. Check with errors.Is().
var (
	// ErrUserNotFound is returned when a user ID or handle does not exist.
	ErrUserNotFound = errors.New("identity: user not found")

	// ErrHandleExists is returned when registering a chat handle that is
	// already taken by another user.
	ErrHandleExists = errors.New("identity: chat handle already registered")

	// ErrInvalidUser is returned when user validation fails.
	ErrInvalidUser = errors.New("identity: invalid user")

	// ErrUserInUse is returned when deleting a user that schedules still reference.
	ErrUserInUse = errors.New("identity: user referenced by schedules")
)
