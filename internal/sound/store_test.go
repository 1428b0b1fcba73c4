package sound

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/logging"
)

const testMaxBytes = 1024

// setupTestStore creates a sound store over an in-memory database and a
// temporary payload directory.
func setupTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE sounds (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
			path TEXT NOT NULL,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		) STRICT;
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			chat_handle TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			public_use INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
		CREATE TABLE schedules (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			cron_expr TEXT,
			activates_at TEXT,
			sound_id TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			last_fired_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE RESTRICT,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE RESTRICT,
			FOREIGN KEY (sound_id) REFERENCES sounds(id) ON DELETE RESTRICT,
			CHECK ((cron_expr IS NULL) != (activates_at IS NULL))
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db, t.TempDir(), testMaxBytes, logging.Default())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store, db
}

func TestCreateAndOpen(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	payload := "RIFF fake wav bytes"
	s, err := store.Create(ctx, "morning chime", "audio/wav", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(s.ID) != 12 || s.ID[:4] != "snd-" {
		t.Errorf("Create() generated ID %q, want snd- prefix", s.ID)
	}
	if s.SizeBytes != int64(len(payload)) {
		t.Errorf("SizeBytes = %d, want %d", s.SizeBytes, len(payload))
	}

	// Open twice: each read starts from the beginning.
	for i := 0; i < 2; i++ {
		meta, rc, err := store.Open(ctx, s.ID)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("reading payload #%d: %v", i+1, err)
		}
		if string(got) != payload {
			t.Errorf("payload #%d = %q, want %q", i+1, got, payload)
		}
		if meta.ContentType != "audio/wav" {
			t.Errorf("ContentType = %q, want audio/wav", meta.ContentType)
		}
	}
}

func TestCreate_DefaultContentType(t *testing.T) {
	store, _ := setupTestStore(t)

	s, err := store.Create(context.Background(), "beep", "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.ContentType != "application/octet-stream" {
		t.Errorf("ContentType = %q, want application/octet-stream", s.ContentType)
	}
}

func TestCreate_InvalidName(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "slash/name", strings.Repeat("a", 200)} {
		if _, err := store.Create(ctx, name, "", strings.NewReader("x")); !errors.Is(err, ErrInvalidSound) {
			t.Errorf("Create(%q) error = %v, want ErrInvalidSound", name, err)
		}
	}
}

func TestCreate_EmptyPayload(t *testing.T) {
	store, _ := setupTestStore(t)

	if _, err := store.Create(context.Background(), "silence", "", strings.NewReader("")); !errors.Is(err, ErrInvalidSound) {
		t.Errorf("Create(empty payload) error = %v, want ErrInvalidSound", err)
	}
}

func TestCreate_PayloadTooLarge(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	// Exactly at the cap is fine.
	atLimit := strings.Repeat("a", testMaxBytes)
	s, err := store.Create(ctx, "at limit", "", strings.NewReader(atLimit))
	if err != nil {
		t.Fatalf("Create(at limit) error = %v", err)
	}
	if s.SizeBytes != testMaxBytes {
		t.Errorf("SizeBytes = %d, want %d", s.SizeBytes, testMaxBytes)
	}

	// One byte over is rejected.
	over := strings.Repeat("a", testMaxBytes+1)
	if _, err := store.Create(ctx, "over limit", "", strings.NewReader(over)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Create(over limit) error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	if _, err := store.GetByID(context.Background(), "snd-missing"); !errors.Is(err, ErrSoundNotFound) {
		t.Errorf("GetByID(unknown) error = %v, want ErrSoundNotFound", err)
	}
}

func TestList(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "zebra", "", strings.NewReader("z")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.Create(ctx, "alarm", "", strings.NewReader("a")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sounds, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sounds) != 2 || sounds[0].Name != "alarm" || sounds[1].Name != "zebra" {
		t.Errorf("List() = %v, want alarm then zebra", sounds)
	}
}

func TestDelete(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	s, err := store.Create(ctx, "temp", "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.GetByID(ctx, s.ID); !errors.Is(err, ErrSoundNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrSoundNotFound", err)
	}
	if err := store.Delete(ctx, s.ID); !errors.Is(err, ErrSoundNotFound) {
		t.Errorf("Delete() repeat error = %v, want ErrSoundNotFound", err)
	}
}

func TestDelete_SoundInUse(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	s, err := store.Create(ctx, "referenced", "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	seed := `
		INSERT INTO users (id, chat_handle, display_name, created_at, updated_at)
			VALUES ('usr-1', '@alice', 'Alice', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z');
		INSERT INTO devices (id, name, created_at, updated_at)
			VALUES ('dev-1', 'Kitchen', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z');
	`
	if _, err := db.Exec(seed); err != nil {
		t.Fatalf("seeding references: %v", err)
	}
	_, err = db.Exec(
		`INSERT INTO schedules (id, device_id, user_id, cron_expr, sound_id, enabled, created_at, updated_at)
		 VALUES ('sch-1', 'dev-1', 'usr-1', '0 8 * * *', ?, 1, '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`,
		s.ID)
	if err != nil {
		t.Fatalf("seeding schedule: %v", err)
	}

	if err := store.Delete(ctx, s.ID); !errors.Is(err, ErrSoundInUse) {
		t.Errorf("Delete(referenced) error = %v, want ErrSoundInUse", err)
	}
}
