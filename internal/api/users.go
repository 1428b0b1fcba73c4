package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/automated-cuckoo/cuckoo-core/internal/identity"
)

type createUserRequest struct {
	ChatHandle  string `json:"chat_handle"`
	DisplayName string `json:"display_name"`
}

type updateUserRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
}

// handleListUsers returns all registered users.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleCreateUser registers a new user.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user := &identity.User{
		ChatHandle:  req.ChatHandle,
		DisplayName: req.DisplayName,
	}
	if err := s.users.Create(r.Context(), user); err != nil {
		switch {
		case errors.Is(err, identity.ErrHandleExists):
			writeConflict(w, "chat handle already registered")
		case errors.Is(err, identity.ErrInvalidUser):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("create user failed", "error", err)
			writeInternalError(w, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// handleGetUser returns a single user by ID.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user failed", "error", err)
		writeInternalError(w, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleUpdateUser modifies a user's mutable fields.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user failed", "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		if errors.Is(err, identity.ErrInvalidUser) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("update user failed", "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleDeleteUser removes a user. A user with schedules cannot be deleted.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.users.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, identity.ErrUserNotFound):
			writeNotFound(w, "user not found")
		case errors.Is(err, identity.ErrUserInUse):
			writeConflict(w, "user owns schedules; delete those first")
		default:
			s.logger.Error("delete user failed", "error", err)
			writeInternalError(w, "failed to delete user")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListUserSchedules returns all schedules owned by a user.
func (s *Server) handleListUserSchedules(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.users.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user failed", "error", err)
		writeInternalError(w, "failed to list schedules")
		return
	}

	deviceID := r.URL.Query().Get("device_id")

	var schedules any
	var err error
	if deviceID != "" {
		schedules, err = s.schedules.ListByUserAndDevice(r.Context(), id, deviceID)
	} else {
		schedules, err = s.schedules.ListByUser(r.Context(), id)
	}
	if err != nil {
		s.logger.Error("list schedules failed", "user_id", id, "error", err)
		writeInternalError(w, "failed to list schedules")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"schedules": schedules,
	})
}
