package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
// The JSON body size limit applies to everything except the sound upload,
// which enforces its own configured cap.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.bodySizeLimitMiddleware)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetUser)
					r.Patch("/", s.handleUpdateUser)
					r.Delete("/", s.handleDeleteUser)
					r.Get("/devices", s.handleListAccessibleDevices)
					r.Get("/grants", s.handleListGrants)
					r.Get("/schedules", s.handleListUserSchedules)
				})
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Patch("/", s.handleUpdateDevice)
					r.Delete("/", s.handleDeleteDevice)
					r.Post("/due", s.handleDueCheck)
					r.Get("/schedules/{scheduleID}/payload", s.handleSchedulePayload)
				})
			})

			r.Route("/permissions", func(r chi.Router) {
				r.Post("/", s.handleGrant)
				r.Delete("/", s.handleRevoke)
			})

			r.Route("/schedules", func(r chi.Router) {
				r.Post("/", s.handleCreateSchedule)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetSchedule)
					r.Patch("/", s.handleUpdateSchedule)
					r.Delete("/", s.handleDeleteSchedule)
				})
			})

		})

		r.Route("/sounds", func(r chi.Router) {
			// Upload streams the raw audio body; the sound store enforces
			// the configured size cap instead of the JSON limit.
			r.Post("/", s.handleUploadSound)

			r.Get("/", s.handleListSounds)
			r.Get("/{id}", s.handleGetSound)
			r.Delete("/{id}", s.handleDeleteSound)
		})
	})

	return r
}

// handleHealth returns the server health status, including database
// reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			s.logger.Error("database health check failed", "error", err)
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
	})
}
