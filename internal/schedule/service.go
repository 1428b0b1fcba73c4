package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/automated-cuckoo/cuckoo-core/internal/identity"
	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/logging"
	"github.com/automated-cuckoo/cuckoo-core/internal/permission"
	"github.com/automated-cuckoo/cuckoo-core/internal/sound"
)

// UserLookup is the slice of the user registry the service needs.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*identity.User, error)
}

// SoundLookup is the slice of the sound catalogue the service needs.
type SoundLookup interface {
	GetByID(ctx context.Context, id string) (*sound.Sound, error)
}

// AccessChecker is the slice of the permission resolver the service needs.
type AccessChecker interface {
	CanAccess(ctx context.Context, userID, deviceID string) (bool, error)
	RecordUse(ctx context.Context, userID, deviceID string) error
}

// Service validates and persists schedules. Every create runs the full
// reference and permission checks; updates re-validate only what changed.
type Service struct {
	store  Store
	users  UserLookup
	sounds SoundLookup
	access AccessChecker
	logger *logging.Logger
}

// NewService creates a schedule service over the given stores.
func NewService(store Store, users UserLookup, sounds SoundLookup, access AccessChecker, logger *logging.Logger) *Service {
	return &Service{
		store:  store,
		users:  users,
		sounds: sounds,
		access: access,
		logger: logger.With("component", "schedule"),
	}
}

// Create validates the input and persists a new enabled schedule.
//
// The owning user, target device and sound must all exist, exactly one of
// cron_expr and activates_at must be set, and the user must hold permission
// for the device. Returns permission.ErrAccessDenied when the permission
// check fails.
func (sv *Service) Create(ctx context.Context, in CreateInput) (*Schedule, error) {
	if in.UserID == "" || in.DeviceID == "" || in.SoundID == "" {
		return nil, fmt.Errorf("%w: user_id, device_id and sound_id are required", ErrInvalidSchedule)
	}
	if err := validateTiming(in.CronExpr, in.ActivatesAt); err != nil {
		return nil, err
	}

	if _, err := sv.users.GetByID(ctx, in.UserID); err != nil {
		return nil, err
	}
	if _, err := sv.sounds.GetByID(ctx, in.SoundID); err != nil {
		return nil, err
	}

	ok, err := sv.access.CanAccess(ctx, in.UserID, in.DeviceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: user %s has no grant for device %s",
			permission.ErrAccessDenied, in.UserID, in.DeviceID)
	}

	s := &Schedule{
		DeviceID:    in.DeviceID,
		UserID:      in.UserID,
		CronExpr:    in.CronExpr,
		ActivatesAt: normalizeTime(in.ActivatesAt),
		SoundID:     in.SoundID,
		Enabled:     true,
	}
	if err := sv.store.Insert(ctx, s); err != nil {
		return nil, err
	}

	// Usage bookkeeping on the grant; a no-op for public devices.
	if err := sv.access.RecordUse(ctx, in.UserID, in.DeviceID); err != nil {
		sv.logger.Warn("recording grant use failed",
			"user_id", in.UserID, "device_id", in.DeviceID, "error", err)
	}

	sv.logger.Info("schedule created",
		"schedule_id", s.ID, "device_id", s.DeviceID, "user_id", s.UserID,
		"one_shot", s.IsOneShot())
	return s, nil
}

// Get retrieves a schedule by ID.
func (sv *Service) Get(ctx context.Context, id string) (*Schedule, error) {
	return sv.store.GetByID(ctx, id)
}

// ListByUser returns all schedules owned by the user.
func (sv *Service) ListByUser(ctx context.Context, userID string) ([]Schedule, error) {
	return sv.store.ListByUser(ctx, userID)
}

// ListByUserAndDevice returns the user's schedules targeting a device.
func (sv *Service) ListByUserAndDevice(ctx context.Context, userID, deviceID string) ([]Schedule, error) {
	return sv.store.ListByUserAndDevice(ctx, userID, deviceID)
}

// Update applies a partial update. Changing the timing keeps the one-of
// invariant: supplying a cron expression clears the activation timestamp and
// vice versa; supplying both is a conflict. Changing the timing also resets
// the last-fired bookkeeping so the new rule starts fresh.
func (sv *Service) Update(ctx context.Context, id string, patch Patch) (*Schedule, error) {
	s, err := sv.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.CronExpr != nil && patch.ActivatesAt != nil {
		return nil, ErrTimingConflict
	}

	timingChanged := false
	if patch.CronExpr != nil {
		if _, err := ParseCron(*patch.CronExpr); err != nil {
			return nil, err
		}
		s.CronExpr = *patch.CronExpr
		s.ActivatesAt = nil
		timingChanged = true
	}
	if patch.ActivatesAt != nil {
		s.ActivatesAt = normalizeTime(patch.ActivatesAt)
		s.CronExpr = ""
		timingChanged = true
	}
	if patch.SoundID != nil {
		if _, err := sv.sounds.GetByID(ctx, *patch.SoundID); err != nil {
			return nil, err
		}
		s.SoundID = *patch.SoundID
	}
	if patch.Enabled != nil {
		s.Enabled = *patch.Enabled
	}

	if err := validateTiming(s.CronExpr, s.ActivatesAt); err != nil {
		return nil, err
	}

	if err := sv.store.Update(ctx, s); err != nil {
		return nil, err
	}
	if timingChanged {
		if err := sv.store.ClearLastFired(ctx, id); err != nil {
			return nil, err
		}
		s.LastFiredAt = nil
	}

	sv.logger.Info("schedule updated", "schedule_id", s.ID)
	return s, nil
}

// LookupSchedule resolves a schedule to its device/sound binding for the
// payload resolver. Satisfies sound.ScheduleLookup.
func (sv *Service) LookupSchedule(ctx context.Context, id string) (sound.ScheduleInfo, error) {
	s, err := sv.store.GetByID(ctx, id)
	if err != nil {
		return sound.ScheduleInfo{}, err
	}
	return sound.ScheduleInfo{ID: s.ID, DeviceID: s.DeviceID, SoundID: s.SoundID}, nil
}

// Delete removes a schedule. Idempotent.
func (sv *Service) Delete(ctx context.Context, id string) error {
	if err := sv.store.Delete(ctx, id); err != nil {
		return err
	}
	sv.logger.Info("schedule deleted", "schedule_id", id)
	return nil
}

func validateTiming(cronExpr string, activatesAt *time.Time) error {
	hasCron := cronExpr != ""
	hasOneShot := activatesAt != nil
	if hasCron == hasOneShot {
		return ErrTimingConflict
	}
	if hasCron {
		if _, err := ParseCron(cronExpr); err != nil {
			return err
		}
	}
	return nil
}

func normalizeTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC().Truncate(time.Second)
	return &u
}
