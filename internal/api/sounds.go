package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/automated-cuckoo/cuckoo-core/internal/sound"
)

// handleUploadSound stores a new sound. The request body is the raw audio
// payload; name comes from the query string, content type from the header.
func (s *Server) handleUploadSound(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeBadRequest(w, "name query parameter is required")
		return
	}

	created, err := s.sounds.Create(r.Context(), name, r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		switch {
		case errors.Is(err, sound.ErrInvalidSound):
			writeBadRequest(w, err.Error())
		case errors.Is(err, sound.ErrPayloadTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, err.Error())
		default:
			s.logger.Error("upload sound failed", "error", err)
			writeInternalError(w, "failed to store sound")
		}
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// handleListSounds returns the sound catalogue.
func (s *Server) handleListSounds(w http.ResponseWriter, r *http.Request) {
	sounds, err := s.sounds.List(r.Context())
	if err != nil {
		s.logger.Error("list sounds failed", "error", err)
		writeInternalError(w, "failed to list sounds")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sounds": sounds,
		"count":  len(sounds),
	})
}

// handleGetSound returns a sound's metadata.
func (s *Server) handleGetSound(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	meta, err := s.sounds.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sound.ErrSoundNotFound) {
			writeNotFound(w, "sound not found")
			return
		}
		s.logger.Error("get sound failed", "error", err)
		writeInternalError(w, "failed to get sound")
		return
	}

	writeJSON(w, http.StatusOK, meta)
}

// handleDeleteSound removes a sound. A sound referenced by schedules cannot
// be deleted.
func (s *Server) handleDeleteSound(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.sounds.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, sound.ErrSoundNotFound):
			writeNotFound(w, "sound not found")
		case errors.Is(err, sound.ErrSoundInUse):
			writeConflict(w, "sound is referenced by schedules; delete those first")
		default:
			s.logger.Error("delete sound failed", "sound_id", id, "error", err)
			writeInternalError(w, "failed to delete sound")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
