package permission

import "errors"

// Domain errors for the permission package. Check with errors.Is().
var (
	// ErrAccessDenied is returned when a user holds neither a trustee grant
	// nor public-use access for a device.
	ErrAccessDenied = errors.New("permission: access denied")
)
