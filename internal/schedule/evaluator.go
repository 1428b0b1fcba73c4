package schedule

import (
	"context"
	"time"

	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/logging"
)

// catchUpHorizon bounds how far back the evaluator looks for a missed cron
// occurrence after downtime. One occurrence inside the horizon fires on the
// next pass; anything older is forfeit.
const catchUpHorizon = 24 * time.Hour

// Evaluator decides which schedules are due for a device and records their
// firings. Evaluation is stateless between passes; all bookkeeping lives in
// the store's last_fired_at column, and the store's conditional update makes
// concurrent passes fire each occurrence at most once.
type Evaluator struct {
	store    Store
	location *time.Location
	logger   *logging.Logger
}

// NewEvaluator creates an evaluator. Cron fields are interpreted in the
// given location, the site's local timezone.
func NewEvaluator(store Store, location *time.Location, logger *logging.Logger) *Evaluator {
	if location == nil {
		location = time.Local
	}
	return &Evaluator{
		store:    store,
		location: location,
		logger:   logger.With("component", "evaluator"),
	}
}

// DueForDevice evaluates every enabled schedule targeting the device against
// now and returns the firings it won. A schedule with a malformed cron
// expression is logged and skipped, never aborting the pass. Losing the
// conditional update to a concurrent pass drops the firing silently.
func (e *Evaluator) DueForDevice(ctx context.Context, deviceID string, now time.Time) ([]Firing, error) {
	schedules, err := e.store.ListEnabledByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	now = now.In(e.location)
	firings := []Firing{}
	for i := range schedules {
		s := &schedules[i]

		var firedAt time.Time
		if s.IsOneShot() {
			firedAt = e.dueOneShot(s, now)
		} else {
			firedAt = e.dueRecurring(s, now)
		}
		if firedAt.IsZero() {
			continue
		}

		won, err := e.store.Fire(ctx, s.ID, s.LastFiredAt, firedAt)
		if err != nil {
			return nil, err
		}
		if !won {
			continue
		}

		e.logger.Info("schedule fired",
			"schedule_id", s.ID, "device_id", s.DeviceID,
			"sound_id", s.SoundID, "fired_at", firedAt.UTC().Format(time.RFC3339))
		firings = append(firings, Firing{
			ScheduleID: s.ID,
			DeviceID:   s.DeviceID,
			SoundID:    s.SoundID,
			OneShot:    s.IsOneShot(),
			FiredAt:    firedAt.UTC(),
		})
	}
	return firings, nil
}

// dueOneShot returns the firing instant for a due one-shot, or zero.
// A one-shot is due once its activation instant has passed and it has never
// fired; afterwards it is spent regardless of the enabled flag.
func (e *Evaluator) dueOneShot(s *Schedule, now time.Time) time.Time {
	if s.LastFiredAt != nil {
		return time.Time{}
	}
	if now.Before(*s.ActivatesAt) {
		return time.Time{}
	}
	return now
}

// dueRecurring returns the cron occurrence to fire for, or zero. The firing
// instant is the occurrence itself, not the evaluation time, so a pass
// arriving late still records the scheduled minute.
func (e *Evaluator) dueRecurring(s *Schedule, now time.Time) time.Time {
	sched, err := ParseCron(s.CronExpr)
	if err != nil {
		e.logger.Warn("skipping schedule with malformed cron expression",
			"schedule_id", s.ID, "cron_expr", s.CronExpr, "error", err)
		return time.Time{}
	}

	// Scan from the later of the last firing (or creation) and the
	// catch-up horizon; older occurrences are intentionally forfeit.
	after := s.CreatedAt
	if s.LastFiredAt != nil {
		after = *s.LastFiredAt
	}
	if horizon := now.Add(-catchUpHorizon); after.Before(horizon) {
		after = horizon
	}

	occ := lastOccurrence(sched, after.In(e.location), now)
	if occ.IsZero() {
		return time.Time{}
	}
	if s.LastFiredAt != nil && !occ.After(*s.LastFiredAt) {
		return time.Time{}
	}
	return occ
}
