package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/automated-cuckoo/cuckoo-core/internal/device"
	"github.com/automated-cuckoo/cuckoo-core/internal/identity"
	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/config"
	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/logging"
	"github.com/automated-cuckoo/cuckoo-core/internal/permission"
	"github.com/automated-cuckoo/cuckoo-core/internal/schedule"
	"github.com/automated-cuckoo/cuckoo-core/internal/sound"
)

const testMaxUploadBytes = 4096

// testServer wires a Server over a real stack backed by in-memory SQLite
// and a temporary sounds directory.
func testServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	db := setupTestDB(t)
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	userRepo := identity.NewSQLiteRepository(db)
	deviceRepo := device.NewSQLiteRepository(db)
	grantRepo := permission.NewSQLiteRepository(db)
	resolver := permission.NewResolver(grantRepo, deviceRepo, false)

	soundStore, err := sound.NewStore(db, t.TempDir(), testMaxUploadBytes, log)
	if err != nil {
		t.Fatalf("sound.NewStore() error = %v", err)
	}

	schedStore := schedule.NewSQLiteStore(db)
	schedSvc := schedule.NewService(schedStore, userRepo, soundStore, resolver, log)
	evaluator := schedule.NewEvaluator(schedStore, time.UTC, log)
	payloads := sound.NewResolver(schedSvc, soundStore, log)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Logger:    log,
		Users:     userRepo,
		Devices:   deviceRepo,
		Resolver:  resolver,
		Schedules: schedSvc,
		Evaluator: evaluator,
		Sounds:    soundStore,
		Payloads:  payloads,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return srv, srv.buildRouter()
}

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
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
		CREATE TABLE device_grants (
			user_id TEXT NOT NULL,
			device_id TEXT NOT NULL,
			count_used INTEGER NOT NULL DEFAULT 0,
			granted_at TEXT NOT NULL,
			PRIMARY KEY (user_id, device_id),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE CASCADE
		) STRICT;
		CREATE TABLE sounds (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
			path TEXT NOT NULL,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
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
	return db
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
}

// createUser/createDevice/uploadSound are fixture helpers returning IDs.

func createUser(t *testing.T, router http.Handler, handle string) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/users",
		`{"chat_handle": "`+handle+`", "display_name": "Test User"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create user status = %d; body: %s", w.Code, w.Body.String())
	}
	var u identity.User
	decodeBody(t, w, &u)
	return u.ID
}

func createDevice(t *testing.T, router http.Handler, name string, public bool) string {
	t.Helper()
	body := `{"name": "` + name + `", "type": "cuckoo-v1"}`
	if public {
		body = `{"name": "` + name + `", "type": "cuckoo-v1", "public_use": true}`
	}
	w := doJSON(t, router, http.MethodPost, "/api/v1/devices", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create device status = %d; body: %s", w.Code, w.Body.String())
	}
	var d device.Device
	decodeBody(t, w, &d)
	return d.ID
}

func uploadSound(t *testing.T, router http.Handler, name, payload string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sounds?name="+name, strings.NewReader(payload))
	req.Header.Set("Content-Type", "audio/wav")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload sound status = %d; body: %s", w.Code, w.Body.String())
	}
	var s sound.Sound
	decodeBody(t, w, &s)
	return s.ID
}

func grant(t *testing.T, router http.Handler, userID, deviceID string) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/permissions",
		`{"user_id": "`+userID+`", "device_id": "`+deviceID+`"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("grant status = %d; body: %s", w.Code, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	_, router := testServer(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	decodeBody(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
}

func TestUserLifecycle(t *testing.T) {
	_, router := testServer(t)

	id := createUser(t, router, "@alice")

	// Duplicate handle conflicts.
	w := doJSON(t, router, http.MethodPost, "/api/v1/users",
		`{"chat_handle": "@alice", "display_name": "Another Alice"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate handle status = %d, want %d", w.Code, http.StatusConflict)
	}

	// Rename.
	w = doJSON(t, router, http.MethodPatch, "/api/v1/users/"+id,
		`{"display_name": "Alice Renamed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d; body: %s", w.Code, w.Body.String())
	}
	var u identity.User
	decodeBody(t, w, &u)
	if u.DisplayName != "Alice Renamed" {
		t.Errorf("DisplayName = %q, want Alice Renamed", u.DisplayName)
	}

	// Delete, then 404.
	w = doJSON(t, router, http.MethodDelete, "/api/v1/users/"+id, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/api/v1/users/"+id, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCreateSchedule_PermissionEnforced(t *testing.T) {
	_, router := testServer(t)

	userID := createUser(t, router, "@alice")
	deviceID := createDevice(t, router, "Kitchen Cuckoo", false)
	soundID := uploadSound(t, router, "chime", "RIFF fake bytes")

	scheduleBody := `{"user_id": "` + userID + `", "device_id": "` + deviceID +
		`", "sound_id": "` + soundID + `", "cron_expr": "0 8 * * *"}`

	// Without a grant the create is forbidden.
	w := doJSON(t, router, http.MethodPost, "/api/v1/schedules", scheduleBody)
	if w.Code != http.StatusForbidden {
		t.Fatalf("ungranted create status = %d, want %d; body: %s", w.Code, http.StatusForbidden, w.Body.String())
	}

	grant(t, router, userID, deviceID)

	w = doJSON(t, router, http.MethodPost, "/api/v1/schedules", scheduleBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("granted create status = %d; body: %s", w.Code, w.Body.String())
	}
	var created schedule.Schedule
	decodeBody(t, w, &created)
	if !created.Enabled {
		t.Error("created schedule not enabled")
	}

	// Revoking removes the grant; the next create is forbidden again.
	w = doJSON(t, router, http.MethodDelete, "/api/v1/permissions",
		`{"user_id": "`+userID+`", "device_id": "`+deviceID+`"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("revoke status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodPost, "/api/v1/schedules", scheduleBody)
	if w.Code != http.StatusForbidden {
		t.Errorf("post-revoke create status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestCreateSchedule_Validation(t *testing.T) {
	_, router := testServer(t)

	userID := createUser(t, router, "@alice")
	deviceID := createDevice(t, router, "Kitchen Cuckoo", true)
	soundID := uploadSound(t, router, "chime", "RIFF fake bytes")

	tests := []struct {
		name string
		body string
		want int
	}{
		{
			"bad cron",
			`{"user_id": "` + userID + `", "device_id": "` + deviceID + `", "sound_id": "` + soundID + `", "cron_expr": "every day"}`,
			http.StatusBadRequest,
		},
		{
			"no timing",
			`{"user_id": "` + userID + `", "device_id": "` + deviceID + `", "sound_id": "` + soundID + `"}`,
			http.StatusBadRequest,
		},
		{
			"both timings",
			`{"user_id": "` + userID + `", "device_id": "` + deviceID + `", "sound_id": "` + soundID + `", "cron_expr": "0 8 * * *", "activates_at": "2026-01-01T08:00:00Z"}`,
			http.StatusBadRequest,
		},
		{
			"unknown sound",
			`{"user_id": "` + userID + `", "device_id": "` + deviceID + `", "sound_id": "snd-missing", "cron_expr": "0 8 * * *"}`,
			http.StatusNotFound,
		},
		{
			"unknown user",
			`{"user_id": "usr-missing", "device_id": "` + deviceID + `", "sound_id": "` + soundID + `", "cron_expr": "0 8 * * *"}`,
			http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/v1/schedules", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestDueCheckAndPayload(t *testing.T) {
	_, router := testServer(t)

	userID := createUser(t, router, "@alice")
	deviceID := createDevice(t, router, "Kitchen Cuckoo", true)
	otherDeviceID := createDevice(t, router, "Hallway Cuckoo", true)
	payload := "RIFF fake wav bytes"
	soundID := uploadSound(t, router, "chime", payload)

	// A one-shot in the past is due on the first check.
	w := doJSON(t, router, http.MethodPost, "/api/v1/schedules",
		`{"user_id": "`+userID+`", "device_id": "`+deviceID+`", "sound_id": "`+soundID+`", "activates_at": "2025-01-01T08:00:00Z"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create schedule status = %d; body: %s", w.Code, w.Body.String())
	}
	var created schedule.Schedule
	decodeBody(t, w, &created)

	w = doJSON(t, router, http.MethodPost, "/api/v1/devices/"+deviceID+"/due", "")
	if w.Code != http.StatusOK {
		t.Fatalf("due check status = %d; body: %s", w.Code, w.Body.String())
	}
	var due struct {
		Firings []schedule.Firing `json:"firings"`
	}
	decodeBody(t, w, &due)
	if len(due.Firings) != 1 || due.Firings[0].ScheduleID != created.ID {
		t.Fatalf("firings = %+v, want the one-shot", due.Firings)
	}

	// The spent one-shot is not due again.
	w = doJSON(t, router, http.MethodPost, "/api/v1/devices/"+deviceID+"/due", "")
	decodeBody(t, w, &due)
	if len(due.Firings) != 0 {
		t.Errorf("second due check firings = %+v, want none", due.Firings)
	}

	// The target device fetches the payload.
	w = doJSON(t, router, http.MethodGet,
		"/api/v1/devices/"+deviceID+"/schedules/"+created.ID+"/payload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("payload status = %d; body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q, want audio/wav", ct)
	}
	if w.Body.String() != payload {
		t.Errorf("payload = %q, want %q", w.Body.String(), payload)
	}

	// Another device may not fetch it.
	w = doJSON(t, router, http.MethodGet,
		"/api/v1/devices/"+otherDeviceID+"/schedules/"+created.ID+"/payload", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("cross-device payload status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestDueCheck_UnknownDevice(t *testing.T) {
	_, router := testServer(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/devices/dev-missing/due", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestUploadSound_Errors(t *testing.T) {
	_, router := testServer(t)

	// Missing name.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sounds", strings.NewReader("x"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing name status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	// Over the configured cap.
	big := strings.Repeat("a", testMaxUploadBytes+1)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sounds?name=big", strings.NewReader(big))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestDeleteSound_InUse(t *testing.T) {
	_, router := testServer(t)

	userID := createUser(t, router, "@alice")
	deviceID := createDevice(t, router, "Kitchen Cuckoo", true)
	soundID := uploadSound(t, router, "chime", "x")

	w := doJSON(t, router, http.MethodPost, "/api/v1/schedules",
		`{"user_id": "`+userID+`", "device_id": "`+deviceID+`", "sound_id": "`+soundID+`", "cron_expr": "0 8 * * *"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create schedule status = %d; body: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodDelete, "/api/v1/sounds/"+soundID, "")
	if w.Code != http.StatusConflict {
		t.Errorf("delete in-use sound status = %d, want %d", w.Code, http.StatusConflict)
	}
}
