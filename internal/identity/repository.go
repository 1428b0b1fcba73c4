package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for user persistence.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByChatHandle(ctx context.Context, handle string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed user repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new user. The ID is generated if empty.
// Returns ErrHandleExists if the chat handle is already registered.
func (r *SQLiteRepository) Create(ctx context.Context, user *User) error {
	if !IsValidChatHandle(user.ChatHandle) {
		return fmt.Errorf("%w: chat handle %q", ErrInvalidUser, user.ChatHandle)
	}
	if strings.TrimSpace(user.DisplayName) == "" {
		return fmt.Errorf("%w: display name cannot be empty", ErrInvalidUser)
	}
	if len(user.DisplayName) > maxDisplayNameLength {
		return fmt.Errorf("%w: display name exceeds %d characters", ErrInvalidUser, maxDisplayNameLength)
	}
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Truncate(time.Second)
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, chat_handle, display_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.ChatHandle, user.DisplayName,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrHandleExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their internal identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx,
		"SELECT id, chat_handle, display_name, created_at, updated_at FROM users WHERE id = ?", id)
}

// GetByChatHandle retrieves a user by their external chat handle.
func (r *SQLiteRepository) GetByChatHandle(ctx context.Context, handle string) (*User, error) {
	return r.getUser(ctx,
		"SELECT id, chat_handle, display_name, created_at, updated_at FROM users WHERE chat_handle = ?", handle)
}

// List returns all users ordered by creation date.
func (r *SQLiteRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, chat_handle, display_name, created_at, updated_at FROM users ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	if users == nil {
		users = []User{}
	}
	return users, nil
}

// Update modifies a user's mutable fields (display name only; the identifier
// and chat handle are fixed at registration).
func (r *SQLiteRepository) Update(ctx context.Context, user *User) error {
	if strings.TrimSpace(user.DisplayName) == "" {
		return fmt.Errorf("%w: display name cannot be empty", ErrInvalidUser)
	}

	now := time.Now().UTC().Truncate(time.Second)
	user.UpdatedAt = now

	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET display_name = ?, updated_at = ? WHERE id = ?",
		user.DisplayName, now.Format(time.RFC3339), user.ID,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user by ID. Returns ErrUserNotFound if the user does not
// exist and ErrUserInUse while schedules still reference the user.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserInUse
		}
		return fmt.Errorf("deleting user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *SQLiteRepository) getUser(ctx context.Context, query string, arg any) (*User, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*User, error) {
	var u User
	var createdAt, updatedAt string

	if err := s.Scan(&u.ID, &u.ChatHandle, &u.DisplayName, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &u, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation checks if a SQLite error is a FOREIGN KEY constraint violation.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
