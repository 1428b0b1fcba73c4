package sound

import (
	"context"
	"fmt"
	"io"

	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/logging"
)

// ScheduleInfo is the slice of a schedule the payload resolver needs.
type ScheduleInfo struct {
	ID       string
	DeviceID string
	SoundID  string
}

// ScheduleLookup resolves a schedule ID to its target device and sound.
type ScheduleLookup interface {
	LookupSchedule(ctx context.Context, id string) (ScheduleInfo, error)
}

// Resolver maps a firing back to its audio payload for the device that was
// told to play it. A device may only fetch payloads of schedules that target
// it; the binding is checked on every resolve since a schedule can be
// repointed between the firing notification and the fetch.
type Resolver struct {
	schedules ScheduleLookup
	store     *Store
	logger    *logging.Logger
}

// NewResolver creates a payload resolver.
func NewResolver(schedules ScheduleLookup, store *Store, logger *logging.Logger) *Resolver {
	return &Resolver{
		schedules: schedules,
		store:     store,
		logger:    logger.With("component", "payload"),
	}
}

// ResolveFile returns the sound metadata and payload stream for a schedule,
// on behalf of the requesting device. Returns ErrDeviceMismatch when the
// schedule does not target that device. The caller closes the reader.
func (r *Resolver) ResolveFile(ctx context.Context, scheduleID, requestingDeviceID string) (*Sound, io.ReadCloser, error) {
	info, err := r.schedules.LookupSchedule(ctx, scheduleID)
	if err != nil {
		return nil, nil, err
	}
	if info.DeviceID != requestingDeviceID {
		r.logger.Warn("payload request from wrong device",
			"schedule_id", scheduleID, "device_id", requestingDeviceID,
			"target_device_id", info.DeviceID)
		return nil, nil, fmt.Errorf("%w: schedule %s targets %s",
			ErrDeviceMismatch, scheduleID, info.DeviceID)
	}
	return r.store.Open(ctx, info.SoundID)
}
