package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/automated-cuckoo/cuckoo-core/internal/identity"
	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/logging"
	"github.com/automated-cuckoo/cuckoo-core/internal/permission"
	"github.com/automated-cuckoo/cuckoo-core/internal/sound"
)

type stubUsers struct{ err error }

func (s stubUsers) GetByID(ctx context.Context, id string) (*identity.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &identity.User{ID: id}, nil
}

type stubSounds struct{ err error }

func (s stubSounds) GetByID(ctx context.Context, id string) (*sound.Sound, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sound.Sound{ID: id}, nil
}

type stubAccess struct {
	allowed bool
	used    []string
}

func (a *stubAccess) CanAccess(ctx context.Context, userID, deviceID string) (bool, error) {
	return a.allowed, nil
}

func (a *stubAccess) RecordUse(ctx context.Context, userID, deviceID string) error {
	a.used = append(a.used, userID+"/"+deviceID)
	return nil
}

func newTestService(t *testing.T, st Store, users stubUsers, sounds stubSounds, access *stubAccess) *Service {
	t.Helper()
	return NewService(st, users, sounds, access, logging.Default())
}

func validInput() CreateInput {
	return CreateInput{
		DeviceID: "dev-1",
		UserID:   "usr-1",
		CronExpr: "0 8 * * *",
		SoundID:  "snd-1",
	}
}

func TestServiceCreate(t *testing.T) {
	db := setupTestDB(t)
	access := &stubAccess{allowed: true}
	sv := newTestService(t, NewSQLiteStore(db), stubUsers{}, stubSounds{}, access)

	s, err := sv.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !s.Enabled {
		t.Error("Create() schedule not enabled")
	}
	if s.LastFiredAt != nil {
		t.Errorf("Create() LastFiredAt = %v, want nil", s.LastFiredAt)
	}
	if len(access.used) != 1 || access.used[0] != "usr-1/dev-1" {
		t.Errorf("RecordUse calls = %v, want one for usr-1/dev-1", access.used)
	}
}

func TestServiceCreate_Validation(t *testing.T) {
	ts := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(*CreateInput)
		wantErr error
	}{
		{"missing user", func(in *CreateInput) { in.UserID = "" }, ErrInvalidSchedule},
		{"missing device", func(in *CreateInput) { in.DeviceID = "" }, ErrInvalidSchedule},
		{"missing sound", func(in *CreateInput) { in.SoundID = "" }, ErrInvalidSchedule},
		{"no timing", func(in *CreateInput) { in.CronExpr = "" }, ErrTimingConflict},
		{"both timings", func(in *CreateInput) { in.ActivatesAt = &ts }, ErrTimingConflict},
		{"bad cron", func(in *CreateInput) { in.CronExpr = "every tuesday" }, ErrInvalidCron},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			sv := newTestService(t, NewSQLiteStore(db), stubUsers{}, stubSounds{}, &stubAccess{allowed: true})

			in := validInput()
			tt.mutate(&in)
			if _, err := sv.Create(context.Background(), in); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestServiceCreate_MissingReferences(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	sv := newTestService(t, NewSQLiteStore(db), stubUsers{err: identity.ErrUserNotFound}, stubSounds{}, &stubAccess{allowed: true})
	if _, err := sv.Create(ctx, validInput()); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("Create() with unknown user error = %v, want ErrUserNotFound", err)
	}

	sv = newTestService(t, NewSQLiteStore(db), stubUsers{}, stubSounds{err: sound.ErrSoundNotFound}, &stubAccess{allowed: true})
	if _, err := sv.Create(ctx, validInput()); !errors.Is(err, sound.ErrSoundNotFound) {
		t.Errorf("Create() with unknown sound error = %v, want ErrSoundNotFound", err)
	}
}

func TestServiceCreate_AccessDenied(t *testing.T) {
	db := setupTestDB(t)
	access := &stubAccess{allowed: false}
	sv := newTestService(t, NewSQLiteStore(db), stubUsers{}, stubSounds{}, access)

	if _, err := sv.Create(context.Background(), validInput()); !errors.Is(err, permission.ErrAccessDenied) {
		t.Errorf("Create() error = %v, want ErrAccessDenied", err)
	}
	if len(access.used) != 0 {
		t.Errorf("RecordUse called on denied create: %v", access.used)
	}
}

func TestServiceUpdate_TimingChangeResetsLastFired(t *testing.T) {
	db := setupTestDB(t)
	st := NewSQLiteStore(db)
	sv := newTestService(t, st, stubUsers{}, stubSounds{}, &stubAccess{allowed: true})
	ctx := context.Background()

	seedSchedule(t, db, "sch-a", "dev-1", "0 8 * * *", "", "2025-06-01T07:00:00Z", "2025-06-01T08:00:00Z", true)

	newExpr := "0 9 * * *"
	s, err := sv.Update(ctx, "sch-a", Patch{CronExpr: &newExpr})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if s.CronExpr != newExpr || s.ActivatesAt != nil {
		t.Errorf("Update() timing = (%q, %v), want new cron only", s.CronExpr, s.ActivatesAt)
	}
	if s.LastFiredAt != nil {
		t.Errorf("Update() LastFiredAt = %v, want reset to nil", s.LastFiredAt)
	}

	got, err := st.GetByID(ctx, "sch-a")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.LastFiredAt != nil {
		t.Errorf("persisted LastFiredAt = %v after timing change, want nil", got.LastFiredAt)
	}
}

func TestServiceUpdate_SwitchToOneShot(t *testing.T) {
	db := setupTestDB(t)
	sv := newTestService(t, NewSQLiteStore(db), stubUsers{}, stubSounds{}, &stubAccess{allowed: true})

	seedSchedule(t, db, "sch-a", "dev-1", "0 8 * * *", "", "2025-06-01T07:00:00Z", "", true)

	at := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	s, err := sv.Update(context.Background(), "sch-a", Patch{ActivatesAt: &at})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if s.CronExpr != "" || s.ActivatesAt == nil || !s.ActivatesAt.Equal(at) {
		t.Errorf("Update() timing = (%q, %v), want one-shot at %v", s.CronExpr, s.ActivatesAt, at)
	}
}

func TestServiceUpdate_BothTimingsConflict(t *testing.T) {
	db := setupTestDB(t)
	sv := newTestService(t, NewSQLiteStore(db), stubUsers{}, stubSounds{}, &stubAccess{allowed: true})

	seedSchedule(t, db, "sch-a", "dev-1", "0 8 * * *", "", "2025-06-01T07:00:00Z", "", true)

	expr := "0 9 * * *"
	at := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	if _, err := sv.Update(context.Background(), "sch-a", Patch{CronExpr: &expr, ActivatesAt: &at}); !errors.Is(err, ErrTimingConflict) {
		t.Errorf("Update() error = %v, want ErrTimingConflict", err)
	}
}

func TestServiceUpdate_EnableOnlyKeepsLastFired(t *testing.T) {
	db := setupTestDB(t)
	st := NewSQLiteStore(db)
	sv := newTestService(t, st, stubUsers{}, stubSounds{}, &stubAccess{allowed: true})
	ctx := context.Background()

	seedSchedule(t, db, "sch-a", "dev-1", "0 8 * * *", "", "2025-06-01T07:00:00Z", "2025-06-01T08:00:00Z", true)

	disabled := false
	s, err := sv.Update(ctx, "sch-a", Patch{Enabled: &disabled})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if s.Enabled {
		t.Error("Update() schedule still enabled")
	}
	if s.LastFiredAt == nil {
		t.Error("Update() without timing change cleared LastFiredAt")
	}
}

func TestServiceUpdate_NotFound(t *testing.T) {
	db := setupTestDB(t)
	sv := newTestService(t, NewSQLiteStore(db), stubUsers{}, stubSounds{}, &stubAccess{allowed: true})

	enabled := true
	if _, err := sv.Update(context.Background(), "sch-missing", Patch{Enabled: &enabled}); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("Update(unknown) error = %v, want ErrScheduleNotFound", err)
	}
}

func TestServiceLookupSchedule(t *testing.T) {
	db := setupTestDB(t)
	sv := newTestService(t, NewSQLiteStore(db), stubUsers{}, stubSounds{}, &stubAccess{allowed: true})

	seedSchedule(t, db, "sch-a", "dev-1", "0 8 * * *", "", "2025-06-01T07:00:00Z", "", true)

	info, err := sv.LookupSchedule(context.Background(), "sch-a")
	if err != nil {
		t.Fatalf("LookupSchedule() error = %v", err)
	}
	want := sound.ScheduleInfo{ID: "sch-a", DeviceID: "dev-1", SoundID: "snd-1"}
	if info != want {
		t.Errorf("LookupSchedule() = %+v, want %+v", info, want)
	}
}
