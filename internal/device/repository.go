package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for device persistence operations.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices ordered by name.
	List(ctx context.Context) ([]Device, error)

	// ListPublic retrieves all devices flagged for public use.
	ListPublic(ctx context.Context) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, device *Device) error

	// Update modifies an existing device's name, type and public-use flag.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, device *Device) error

	// Delete removes a device by ID. Returns ErrDeviceInUse while schedules
	// reference the device, ErrDeviceNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, type, public_use, created_at, updated_at FROM devices WHERE id = ?", id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// List retrieves all devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx,
		"SELECT id, name, type, public_use, created_at, updated_at FROM devices ORDER BY name")
}

// ListPublic retrieves all devices flagged for public use.
func (r *SQLiteRepository) ListPublic(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx,
		"SELECT id, name, type, public_use, created_at, updated_at FROM devices WHERE public_use = 1 ORDER BY name")
}

// Create inserts a new device. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	if err := Validate(device); err != nil {
		return err
	}
	if device.ID == "" {
		device.ID = "dev-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Truncate(time.Second)
	device.CreatedAt = now
	device.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (id, name, type, public_use, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		device.ID, device.Name, device.Type, boolToInt(device.PublicUse),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("creating device: %w", err)
	}
	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	if err := Validate(device); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	device.UpdatedAt = now

	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET name = ?, type = ?, public_use = ?, updated_at = ? WHERE id = ?",
		device.Name, device.Type, boolToInt(device.PublicUse), now.Format(time.RFC3339), device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Delete removes a device by ID. The schedules table references devices with
// ON DELETE RESTRICT, so deletion fails while schedules point at the device.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrDeviceInUse
		}
		return fmt.Errorf("deleting device: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	if devices == nil {
		devices = []Device{}
	}
	return devices, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*Device, error) {
	var d Device
	var publicUse int
	var createdAt, updatedAt string

	if err := s.Scan(&d.ID, &d.Name, &d.Type, &publicUse, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	d.PublicUse = publicUse != 0
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation checks if a SQLite error is a FOREIGN KEY constraint violation.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
