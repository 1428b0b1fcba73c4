package sound

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/logging"
)

// Store manages the sound catalogue: metadata rows in SQLite, payload bytes
// as files under the configured directory. Payloads are written once at
// upload and opened lazily per read, so a device can re-fetch and restart a
// stream any number of times.
type Store struct {
	db       *sql.DB
	dir      string
	maxBytes int64
	logger   *logging.Logger
}

// NewStore creates a sound store rooted at dir, creating it if needed.
func NewStore(db *sql.DB, dir string, maxBytes int64, logger *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating sounds directory: %w", err)
	}
	return &Store{
		db:       db,
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logger.With("component", "sound"),
	}, nil
}

// Create stores a new sound: the payload is drained from r onto disk, then
// the metadata row is inserted. Returns ErrPayloadTooLarge when r yields
// more than the configured cap, ErrInvalidSound on a bad name or an empty
// payload.
func (st *Store) Create(ctx context.Context, name, contentType string, r io.Reader) (*Sound, error) {
	if !IsValidName(name) {
		return nil, fmt.Errorf("%w: name must be 1-128 characters (letters, digits, space, dot, underscore, hyphen)", ErrInvalidSound)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	id := "snd-" + uuid.NewString()[:8]
	path := filepath.Join(st.dir, id)

	size, err := st.writePayload(path, r)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		os.Remove(path) //nolint:errcheck // best effort cleanup
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidSound)
	}

	now := time.Now().UTC().Truncate(time.Second)
	_, err = st.db.ExecContext(ctx,
		`INSERT INTO sounds (id, name, content_type, path, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, contentType, path, size, now.Format(time.RFC3339),
	)
	if err != nil {
		os.Remove(path) //nolint:errcheck // best effort cleanup
		return nil, fmt.Errorf("inserting sound: %w", err)
	}

	st.logger.Info("sound stored", "sound_id", id, "name", name, "size_bytes", size)
	return &Sound{
		ID:          id,
		Name:        name,
		ContentType: contentType,
		Path:        path,
		SizeBytes:   size,
		CreatedAt:   now,
	}, nil
}

// writePayload streams r to path, enforcing the size cap without buffering
// the payload in memory.
func (st *Store) writePayload(path string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return 0, fmt.Errorf("creating sound file: %w", err)
	}

	// Read one byte past the cap to distinguish at-limit from over-limit.
	size, err := io.Copy(f, io.LimitReader(r, st.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path) //nolint:errcheck // best effort cleanup
		return 0, fmt.Errorf("writing sound file: %w", err)
	}
	if size > st.maxBytes {
		os.Remove(path) //nolint:errcheck // best effort cleanup
		return 0, fmt.Errorf("%w: limit is %d bytes", ErrPayloadTooLarge, st.maxBytes)
	}
	return size, nil
}

// GetByID retrieves a sound's metadata.
// Returns ErrSoundNotFound if the ID does not exist.
func (st *Store) GetByID(ctx context.Context, id string) (*Sound, error) {
	row := st.db.QueryRowContext(ctx,
		"SELECT id, name, content_type, path, size_bytes, created_at FROM sounds WHERE id = ?", id)

	s, err := scanSound(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSoundNotFound
		}
		return nil, fmt.Errorf("querying sound: %w", err)
	}
	return s, nil
}

// List returns all sounds ordered by name.
func (st *Store) List(ctx context.Context) ([]Sound, error) {
	rows, err := st.db.QueryContext(ctx,
		"SELECT id, name, content_type, path, size_bytes, created_at FROM sounds ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying sounds: %w", err)
	}
	defer rows.Close()

	var sounds []Sound
	for rows.Next() {
		s, err := scanSound(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sound: %w", err)
		}
		sounds = append(sounds, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sounds: %w", err)
	}

	if sounds == nil {
		sounds = []Sound{}
	}
	return sounds, nil
}

// Delete removes a sound's metadata and payload file.
// Returns ErrSoundNotFound for an unknown ID and ErrSoundInUse when a
// schedule still references the sound.
func (st *Store) Delete(ctx context.Context, id string) error {
	s, err := st.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if _, err := st.db.ExecContext(ctx, "DELETE FROM sounds WHERE id = ?", id); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s", ErrSoundInUse, id)
		}
		return fmt.Errorf("deleting sound: %w", err)
	}

	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		st.logger.Warn("removing sound file failed", "sound_id", id, "path", s.Path, "error", err)
	}
	st.logger.Info("sound deleted", "sound_id", id)
	return nil
}

// Open returns the metadata and a reader over the payload bytes. The caller
// closes the reader. Each call opens the file fresh, so interrupted reads
// restart cleanly.
func (st *Store) Open(ctx context.Context, id string) (*Sound, io.ReadCloser, error) {
	s, err := st.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: payload file missing for %s", ErrSoundNotFound, id)
		}
		return nil, nil, fmt.Errorf("opening sound file: %w", err)
	}
	return s, f, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSound(sc scanner) (*Sound, error) {
	var s Sound
	var createdAt string
	if err := sc.Scan(&s.ID, &s.Name, &s.ContentType, &s.Path, &s.SizeBytes, &createdAt); err != nil {
		return nil, err
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &s, nil
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
