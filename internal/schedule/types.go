package schedule

import "time"

// Schedule is a stored playback rule binding a device, the user who created
// it, a timing expression and a sound payload.
//
// Exactly one of CronExpr and ActivatesAt is set: a recurring schedule
// carries a five-field cron expression, a one-shot schedule carries an
// explicit activation timestamp and fires at most once.
type Schedule struct {
	// ID is the immutable identifier (sch-xxxxxxxx).
	ID string `json:"id"`

	// DeviceID is the target cuckoo. The owning user must hold permission
	// for this device at creation time.
	DeviceID string `json:"device_id"`

	// UserID is the granter/owner of the schedule.
	UserID string `json:"user_id"`

	// CronExpr is the five-field recurrence rule, empty for one-shots.
	CronExpr string `json:"cron_expr,omitempty"`

	// ActivatesAt is the one-shot activation instant, nil for cron schedules.
	ActivatesAt *time.Time `json:"activates_at,omitempty"`

	// SoundID references the sound payload to play.
	SoundID string `json:"sound_id"`

	// Enabled gates evaluation; disabled schedules are never due.
	Enabled bool `json:"enabled"`

	// LastFiredAt records the occurrence the schedule last fired for.
	// Nil until the first firing. For one-shots, non-nil means spent.
	LastFiredAt *time.Time `json:"last_fired_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOneShot reports whether the schedule fires once at a fixed instant.
func (s *Schedule) IsOneShot() bool {
	return s.ActivatesAt != nil
}

// Firing records a single due occurrence produced by the evaluator.
type Firing struct {
	ScheduleID string    `json:"schedule_id"`
	DeviceID   string    `json:"device_id"`
	SoundID    string    `json:"sound_id"`
	OneShot    bool      `json:"one_shot"`
	FiredAt    time.Time `json:"fired_at"`
}

// CreateInput carries the fields for Service.Create.
type CreateInput struct {
	DeviceID    string     `json:"device_id"`
	UserID      string     `json:"user_id"`
	CronExpr    string     `json:"cron_expr,omitempty"`
	ActivatesAt *time.Time `json:"activates_at,omitempty"`
	SoundID     string     `json:"sound_id"`
}

// Patch carries the partial update for Service.Update. Only non-nil fields
// change; validation re-runs on changed fields only.
type Patch struct {
	CronExpr    *string    `json:"cron_expr,omitempty"`
	ActivatesAt *time.Time `json:"activates_at,omitempty"`
	SoundID     *string    `json:"sound_id,omitempty"`
	Enabled     *bool      `json:"enabled,omitempty"`
}
