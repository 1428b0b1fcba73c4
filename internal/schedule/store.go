package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store defines the interface for schedule persistence. The Store owns the
// set of schedule records exclusively; other components reach schedules only
// through it.
type Store interface {
	// Insert adds a new schedule. The ID is generated if empty.
	Insert(ctx context.Context, s *Schedule) error

	// GetByID retrieves a schedule.
	// Returns ErrScheduleNotFound if the ID does not exist.
	GetByID(ctx context.Context, id string) (*Schedule, error)

	// ListByUser returns all schedules owned by a user. Empty slice, not an
	// error, when nothing matches.
	ListByUser(ctx context.Context, userID string) ([]Schedule, error)

	// ListByUserAndDevice returns the user's schedules targeting a device.
	ListByUserAndDevice(ctx context.Context, userID, deviceID string) ([]Schedule, error)

	// ListEnabledByDevice returns the enabled schedules targeting a device,
	// the evaluator's working set.
	ListEnabledByDevice(ctx context.Context, deviceID string) ([]Schedule, error)

	// Update persists a schedule's mutable fields.
	// Returns ErrScheduleNotFound if the ID does not exist.
	Update(ctx context.Context, s *Schedule) error

	// Delete removes a schedule. Idempotent: deleting an unknown ID is a no-op.
	Delete(ctx context.Context, id string) error

	// Fire performs the atomic conditional update of the last-fired
	// bookkeeping: last_fired_at moves from prev to firedAt only if it still
	// equals prev. Returns false when another evaluator pass won the race;
	// the occurrence is then already accounted for.
	Fire(ctx context.Context, id string, prev *time.Time, firedAt time.Time) (bool, error)

	// ClearLastFired nulls the last-fired bookkeeping, used when a timing
	// change should restart evaluation from scratch.
	ClearLastFired(ctx context.Context, id string) error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed schedule store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const scheduleColumns = `id, device_id, user_id, cron_expr, activates_at, sound_id,
	enabled, last_fired_at, created_at, updated_at`

// Insert adds a new schedule.
func (st *SQLiteStore) Insert(ctx context.Context, s *Schedule) error {
	if s.ID == "" {
		s.ID = "sch-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Truncate(time.Second)
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := st.db.ExecContext(ctx,
		`INSERT INTO schedules (id, device_id, user_id, cron_expr, activates_at, sound_id,
			enabled, last_fired_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.DeviceID, s.UserID,
		nullString(s.CronExpr), nullTime(s.ActivatesAt), s.SoundID,
		boolToInt(s.Enabled), nullTime(s.LastFiredAt),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting schedule: %w", err)
	}
	return nil
}

// GetByID retrieves a schedule by its identifier.
func (st *SQLiteStore) GetByID(ctx context.Context, id string) (*Schedule, error) {
	row := st.db.QueryRowContext(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE id = ?", id)
	s, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("querying schedule: %w", err)
	}
	return s, nil
}

// ListByUser returns all schedules owned by a user.
func (st *SQLiteStore) ListByUser(ctx context.Context, userID string) ([]Schedule, error) {
	return st.querySchedules(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE user_id = ? ORDER BY created_at", userID)
}

// ListByUserAndDevice returns the user's schedules targeting a device.
func (st *SQLiteStore) ListByUserAndDevice(ctx context.Context, userID, deviceID string) ([]Schedule, error) {
	return st.querySchedules(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE user_id = ? AND device_id = ? ORDER BY created_at",
		userID, deviceID)
}

// ListEnabledByDevice returns the enabled schedules targeting a device.
func (st *SQLiteStore) ListEnabledByDevice(ctx context.Context, deviceID string) ([]Schedule, error) {
	return st.querySchedules(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE device_id = ? AND enabled = 1 ORDER BY created_at",
		deviceID)
}

// Update persists cron_expr, activates_at, sound_id and enabled.
func (st *SQLiteStore) Update(ctx context.Context, s *Schedule) error {
	now := time.Now().UTC().Truncate(time.Second)
	s.UpdatedAt = now

	result, err := st.db.ExecContext(ctx,
		`UPDATE schedules SET cron_expr = ?, activates_at = ?, sound_id = ?, enabled = ?, updated_at = ?
		 WHERE id = ?`,
		nullString(s.CronExpr), nullTime(s.ActivatesAt), s.SoundID,
		boolToInt(s.Enabled), now.Format(time.RFC3339), s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// Delete removes a schedule. Idempotent.
func (st *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := st.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	return nil
}

// Fire performs the compare-and-set on last_fired_at. The IS comparison
// treats two NULLs as equal, so a never-fired schedule is matched by a nil
// prev. The losing pass of a concurrent evaluation matches zero rows.
func (st *SQLiteStore) Fire(ctx context.Context, id string, prev *time.Time, firedAt time.Time) (bool, error) {
	result, err := st.db.ExecContext(ctx,
		`UPDATE schedules SET last_fired_at = ?, updated_at = ?
		 WHERE id = ? AND enabled = 1 AND last_fired_at IS ?`,
		firedAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		id, nullTime(prev),
	)
	if err != nil {
		return false, fmt.Errorf("firing schedule: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return rows > 0, nil
}

// ClearLastFired nulls last_fired_at for a schedule.
func (st *SQLiteStore) ClearLastFired(ctx context.Context, id string) error {
	_, err := st.db.ExecContext(ctx,
		"UPDATE schedules SET last_fired_at = NULL, updated_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("clearing last fired: %w", err)
	}
	return nil
}

func (st *SQLiteStore) querySchedules(ctx context.Context, query string, args ...any) ([]Schedule, error) {
	rows, err := st.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		schedules = append(schedules, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedules: %w", err)
	}

	if schedules == nil {
		schedules = []Schedule{}
	}
	return schedules, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(sc scanner) (*Schedule, error) {
	var s Schedule
	var cronExpr, activatesAt, lastFiredAt sql.NullString
	var enabled int
	var createdAt, updatedAt string

	if err := sc.Scan(&s.ID, &s.DeviceID, &s.UserID, &cronExpr, &activatesAt, &s.SoundID,
		&enabled, &lastFiredAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	s.CronExpr = cronExpr.String
	s.Enabled = enabled != 0
	s.ActivatesAt = parseNullTime(activatesAt)
	s.LastFiredAt = parseNullTime(lastFiredAt)
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &s, nil
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
