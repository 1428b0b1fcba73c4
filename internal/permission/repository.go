package permission

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository defines the interface for trustee grant persistence.
type Repository interface {
	// Grant records a trustee grant for (userID, deviceID). Granting an
	// already-granted pair is a no-op.
	Grant(ctx context.Context, userID, deviceID string) error

	// Revoke removes the grant for (userID, deviceID). Revoking a
	// non-existent grant is a no-op.
	Revoke(ctx context.Context, userID, deviceID string) error

	// HasGrant reports whether an explicit grant exists for the pair.
	HasGrant(ctx context.Context, userID, deviceID string) (bool, error)

	// ListByUser returns all grants held by a user, ordered by device.
	ListByUser(ctx context.Context, userID string) ([]Grant, error)

	// AccessibleDeviceIDs returns the de-duplicated union of devices the
	// user holds grants for and devices flagged public-use.
	AccessibleDeviceIDs(ctx context.Context, userID string) ([]string, error)

	// IncrementUse bumps the grant's usage counter, if a grant exists.
	IncrementUse(ctx context.Context, userID, deviceID string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed grant repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Grant records a trustee grant. INSERT OR IGNORE makes the operation
// idempotent: an existing grant keeps its original timestamp and counter.
func (r *SQLiteRepository) Grant(ctx context.Context, userID, deviceID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO device_grants (user_id, device_id, count_used, granted_at)
		 VALUES (?, ?, 0, ?)`,
		userID, deviceID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("granting device access: %w", err)
	}
	return nil
}

// Revoke removes the grant for the pair. Idempotent.
func (r *SQLiteRepository) Revoke(ctx context.Context, userID, deviceID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM device_grants WHERE user_id = ? AND device_id = ?", userID, deviceID)
	if err != nil {
		return fmt.Errorf("revoking device access: %w", err)
	}
	return nil
}

// RevokeAndDisableSchedules removes the grant and disables the user's
// schedules on the device in a single transaction. Used when the revocation
// cascade policy is enabled.
func (r *SQLiteRepository) RevokeAndDisableSchedules(ctx context.Context, userID, deviceID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM device_grants WHERE user_id = ? AND device_id = ?", userID, deviceID); err != nil {
		return fmt.Errorf("revoking device access: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE schedules SET enabled = 0, updated_at = ?
		 WHERE user_id = ? AND device_id = ?`,
		time.Now().UTC().Format(time.RFC3339), userID, deviceID); err != nil {
		return fmt.Errorf("disabling schedules: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing revocation: %w", err)
	}
	return nil
}

// HasGrant reports whether an explicit grant exists for the pair.
func (r *SQLiteRepository) HasGrant(ctx context.Context, userID, deviceID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM device_grants WHERE user_id = ? AND device_id = ?", userID, deviceID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("checking grant: %w", err)
	}
	return true, nil
}

// ListByUser returns all grants held by a user.
func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]Grant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, device_id, count_used, granted_at
		 FROM device_grants WHERE user_id = ? ORDER BY device_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var g Grant
		var grantedAt string
		if err := rows.Scan(&g.UserID, &g.DeviceID, &g.CountUsed, &grantedAt); err != nil {
			return nil, fmt.Errorf("scanning grant: %w", err)
		}
		g.GrantedAt, _ = time.Parse(time.RFC3339, grantedAt) //nolint:errcheck // format is controlled
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grants: %w", err)
	}

	if grants == nil {
		grants = []Grant{}
	}
	return grants, nil
}

// AccessibleDeviceIDs returns the union of granted and public devices.
// UNION de-duplicates a device present in both categories.
func (r *SQLiteRepository) AccessibleDeviceIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT device_id FROM device_grants WHERE user_id = ?
		 UNION
		 SELECT id FROM devices WHERE public_use = 1
		 ORDER BY 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing accessible devices: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning device id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device ids: %w", err)
	}

	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// IncrementUse bumps the usage counter on the grant, if one exists.
// Public-use scheduling without a grant leaves no counter to bump.
func (r *SQLiteRepository) IncrementUse(ctx context.Context, userID, deviceID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE device_grants SET count_used = count_used + 1 WHERE user_id = ? AND device_id = ?",
		userID, deviceID)
	if err != nil {
		return fmt.Errorf("incrementing grant use: %w", err)
	}
	return nil
}
