package schedule

import "errors"

// Domain errors for the schedule package. Check with errors.Is().
var (
	// ErrScheduleNotFound is returned when a schedule ID does not exist.
	ErrScheduleNotFound = errors.New("schedule: not found")

	// ErrInvalidSchedule is returned when schedule validation fails. The
	// wrapping message names the offending field.
	ErrInvalidSchedule = errors.New("schedule: invalid")

	// ErrInvalidCron is returned when a cron expression does not parse
	// under the standard five-field grammar.
	ErrInvalidCron = errors.New("schedule: invalid cron expression")

	// ErrTimingConflict is returned when a create or update supplies both a
	// cron expression and a one-shot timestamp, or neither.
	ErrTimingConflict = errors.New("schedule: exactly one of cron expression and activation timestamp must be set")
)
