package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the standard five-field grammar
// (minute, hour, day-of-month, month, day-of-week) plus @descriptors.
// Day-of-month and day-of-week keep standard OR semantics when both
// are restricted.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCron validates and compiles a cron expression.
// Returns ErrInvalidCron for anything the grammar rejects.
func ParseCron(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCron, expr, err)
	}
	return sched, nil
}

// ValidateCron checks a cron expression without keeping the compiled form.
func ValidateCron(expr string) error {
	_, err := ParseCron(expr)
	return err
}

// lastOccurrence returns the most recent activation of sched at or before
// now, scanning forward from after (exclusive). Returns the zero time when
// no activation falls inside (after, now].
//
// Cron granularity is one minute, so the scan walks real occurrences rather
// than candidate minutes; callers bound `after` to keep it cheap.
func lastOccurrence(sched cron.Schedule, after, now time.Time) time.Time {
	var last time.Time
	for t := sched.Next(after); !t.IsZero() && !t.After(now); t = sched.Next(t) {
		last = t
	}
	return last
}
