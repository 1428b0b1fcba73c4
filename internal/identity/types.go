package identity

import (
	"regexp"
	"time"
)

// User represents a conductor: a human actor who schedules sound playback.
type User struct {
	// ID is the immutable internal identifier (usr-xxxxxxxx).
	ID string `json:"id"`

	// ChatHandle is the external-identity handle the chat layer knows the
	// user by (e.g. a Telegram account id). Unique across users.
	ChatHandle string `json:"chat_handle"`

	// DisplayName is the mutable human-readable name.
	DisplayName string `json:"display_name"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// maxHandleLength is the maximum allowed chat handle length.
const maxHandleLength = 64

// maxDisplayNameLength is the maximum allowed display name length.
const maxDisplayNameLength = 100

/// handlePattern defines the valid chat handle format:
// alphanumeric with dots, hyphens, underscores and an optional leading @.
var handlePattern = regexp.MustCompile(`^@?[a-zA-Z0-9._-]{1,64}$`)

// IsValidChatHandle checks if a chat handle meets format requirements.
func IsValidChatHandle(handle string) bool {
	return len(handle) <= maxHandleLength+1 && handlePattern.MatchString(handle)
}
