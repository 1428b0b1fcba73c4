package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/automated-cuckoo/cuckoo-core/internal/device"
	"github.com/automated-cuckoo/cuckoo-core/internal/identity"
)

type grantRequest struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
}

// handleGrant records a trustee grant for a user/device pair. Idempotent:
// granting an existing pair succeeds without change.
func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGrantPair(w, r)
	if !ok {
		return
	}

	if err := s.resolver.Grant(r.Context(), req.UserID, req.DeviceID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("grant failed", "user_id", req.UserID, "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "failed to record grant")
		return
	}

	s.logger.Info("grant recorded", "user_id", req.UserID, "device_id", req.DeviceID)
	w.WriteHeader(http.StatusNoContent)
}

// handleRevoke removes a trustee grant. Idempotent: revoking an absent pair
// succeeds. Whether the user's schedules on the device are disabled follows
// the configured revocation policy.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGrantPair(w, r)
	if !ok {
		return
	}

	if err := s.resolver.Revoke(r.Context(), req.UserID, req.DeviceID); err != nil {
		s.logger.Error("revoke failed", "user_id", req.UserID, "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "failed to revoke grant")
		return
	}

	s.logger.Info("grant revoked", "user_id", req.UserID, "device_id", req.DeviceID)
	w.WriteHeader(http.StatusNoContent)
}

// decodeGrantPair decodes and validates a user/device pair, verifying the
// user exists. The device check belongs to the resolver.
func (s *Server) decodeGrantPair(w http.ResponseWriter, r *http.Request) (grantRequest, bool) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return req, false
	}
	if req.UserID == "" || req.DeviceID == "" {
		writeBadRequest(w, "user_id and device_id are required")
		return req, false
	}

	if _, err := s.users.GetByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return req, false
		}
		s.logger.Error("get user failed", "error", err)
		writeInternalError(w, "failed to resolve user")
		return req, false
	}

	return req, true
}

// handleListGrants returns a user's explicit trustee grants.
func (s *Server) handleListGrants(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.users.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user failed", "error", err)
		writeInternalError(w, "failed to list grants")
		return
	}

	grants, err := s.resolver.ListGrants(r.Context(), id)
	if err != nil {
		s.logger.Error("list grants failed", "user_id", id, "error", err)
		writeInternalError(w, "failed to list grants")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"grants": grants,
	})
}

// handleListAccessibleDevices returns every device ID the user may command:
// explicit grants plus public-use devices.
func (s *Server) handleListAccessibleDevices(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.users.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user failed", "error", err)
		writeInternalError(w, "failed to resolve accessible devices")
		return
	}

	ids, err := s.resolver.AccessibleDevices(r.Context(), id)
	if err != nil {
		s.logger.Error("accessible devices failed", "user_id", id, "error", err)
		writeInternalError(w, "failed to resolve accessible devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_ids": ids,
		"count":      len(ids),
	})
}
