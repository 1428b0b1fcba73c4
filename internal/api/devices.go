package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/automated-cuckoo/cuckoo-core/internal/device"
	"github.com/automated-cuckoo/cuckoo-core/internal/schedule"
	"github.com/automated-cuckoo/cuckoo-core/internal/sound"
)

type createDeviceRequest struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	PublicUse bool   `json:"public_use"`
}

type updateDeviceRequest struct {
	Name      *string `json:"name,omitempty"`
	Type      *string `json:"type,omitempty"`
	PublicUse *bool   `json:"public_use,omitempty"`
}

// handleListDevices returns all registered devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		s.logger.Error("list devices failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleCreateDevice registers a new device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	d := &device.Device{
		Name:      req.Name,
		Type:      req.Type,
		PublicUse: req.PublicUse,
	}
	if err := s.devices.Create(r.Context(), d); err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceExists):
			writeConflict(w, "device already exists")
		case errors.Is(err, device.ErrInvalidDevice), errors.Is(err, device.ErrInvalidName):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("create device failed", "error", err)
			writeInternalError(w, "failed to create device")
		}
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("get device failed", "error", err)
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleUpdateDevice modifies a device's mutable fields.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	d, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("get device failed", "error", err)
		writeInternalError(w, "failed to update device")
		return
	}

	if req.Name != nil {
		d.Name = *req.Name
	}
	if req.Type != nil {
		d.Type = *req.Type
	}
	if req.PublicUse != nil {
		d.PublicUse = *req.PublicUse
	}

	if err := s.devices.Update(r.Context(), d); err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceExists):
			writeConflict(w, "device already exists")
		case errors.Is(err, device.ErrInvalidDevice), errors.Is(err, device.ErrInvalidName):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("update device failed", "error", err)
			writeInternalError(w, "failed to update device")
		}
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleDeleteDevice removes a device. A device targeted by schedules cannot
// be deleted.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.devices.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, device.ErrDeviceInUse):
			writeConflict(w, "device is targeted by schedules; delete those first")
		default:
			s.logger.Error("delete device failed", "error", err)
			writeInternalError(w, "failed to delete device")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDueCheck runs an evaluation pass for the device and returns the
// firings it won. Devices without MQTT call this periodically; the store's
// conditional update keeps it consistent with the poller.
func (s *Server) handleDueCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.devices.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("get device failed", "error", err)
		writeInternalError(w, "failed to evaluate schedules")
		return
	}

	firings, err := s.evaluator.DueForDevice(r.Context(), id, time.Now())
	if err != nil {
		s.logger.Error("due check failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to evaluate schedules")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"firings": firings,
	})
}

// handleSchedulePayload streams a schedule's audio payload to the device the
// schedule targets.
func (s *Server) handleSchedulePayload(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	scheduleID := chi.URLParam(r, "scheduleID")

	meta, body, err := s.payloads.ResolveFile(r.Context(), scheduleID, deviceID)
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrScheduleNotFound):
			writeNotFound(w, "schedule not found")
		case errors.Is(err, sound.ErrSoundNotFound):
			writeNotFound(w, "sound payload not found")
		case errors.Is(err, sound.ErrDeviceMismatch):
			writeForbidden(w, "schedule does not target this device")
		default:
			s.logger.Error("resolve payload failed",
				"schedule_id", scheduleID, "device_id", deviceID, "error", err)
			writeInternalError(w, "failed to resolve payload")
		}
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.SizeBytes, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		// The device dropped mid-stream; it re-fetches from scratch.
		s.logger.Warn("payload stream interrupted",
			"schedule_id", scheduleID, "device_id", deviceID, "error", err)
	}
}
