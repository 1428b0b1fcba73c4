package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/automated-cuckoo/cuckoo-core/internal/device"
	"github.com/automated-cuckoo/cuckoo-core/internal/identity"
	"github.com/automated-cuckoo/cuckoo-core/internal/permission"
	"github.com/automated-cuckoo/cuckoo-core/internal/schedule"
	"github.com/automated-cuckoo/cuckoo-core/internal/sound"
)

// handleCreateSchedule creates a schedule after the service's full
// reference and permission checks.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var in schedule.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	created, err := s.schedules.Create(r.Context(), in)
	if err != nil {
		s.writeScheduleError(w, err, "create schedule")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// handleGetSchedule returns a single schedule by ID.
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sched, err := s.schedules.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			writeNotFound(w, "schedule not found")
			return
		}
		s.logger.Error("get schedule failed", "error", err)
		writeInternalError(w, "failed to get schedule")
		return
	}

	writeJSON(w, http.StatusOK, sched)
}

// handleUpdateSchedule applies a partial update to a schedule.
func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch schedule.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	updated, err := s.schedules.Update(r.Context(), id, patch)
	if err != nil {
		s.writeScheduleError(w, err, "update schedule")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteSchedule removes a schedule.
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.schedules.Delete(r.Context(), id); err != nil {
		s.logger.Error("delete schedule failed", "schedule_id", id, "error", err)
		writeInternalError(w, "failed to delete schedule")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeScheduleError maps schedule service errors to HTTP responses.
func (s *Server) writeScheduleError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, schedule.ErrScheduleNotFound):
		writeNotFound(w, "schedule not found")
	case errors.Is(err, identity.ErrUserNotFound):
		writeNotFound(w, "user not found")
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, sound.ErrSoundNotFound):
		writeNotFound(w, "sound not found")
	case errors.Is(err, permission.ErrAccessDenied):
		writeForbidden(w, "user has no permission for this device")
	case errors.Is(err, schedule.ErrTimingConflict),
		errors.Is(err, schedule.ErrInvalidCron),
		errors.Is(err, schedule.ErrInvalidSchedule):
		writeBadRequest(w, err.Error())
	default:
		s.logger.Error(op+" failed", "error", err)
		writeInternalError(w, "failed to "+op)
	}
}
