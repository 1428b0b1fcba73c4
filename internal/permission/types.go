package permission

import "time"

// Grant represents a trustee grant: an explicit authorisation linking a user
// to a device. Grants have no implicit expiry.
type Grant struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`

	// CountUsed tracks how many schedules the user has created on the
	// device through this grant.
	CountUsed int `json:"count_used"`

	GrantedAt time.Time `json:"granted_at"`
}
