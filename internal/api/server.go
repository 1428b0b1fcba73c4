// Package api provides the HTTP REST API for the cuckoo core.
//
// It exposes user, device, permission, schedule and sound management to
// operator tooling, plus the device-facing due-check and payload endpoints.
//
// The server follows the same lifecycle pattern as the other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/automated-cuckoo/cuckoo-core/internal/device"
	"github.com/automated-cuckoo/cuckoo-core/internal/identity"
	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/config"
	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/database"
	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/logging"
	"github.com/automated-cuckoo/cuckoo-core/internal/permission"
	"github.com/automated-cuckoo/cuckoo-core/internal/schedule"
	"github.com/automated-cuckoo/cuckoo-core/internal/sound"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	DB        *database.DB
	Users     identity.Repository
	Devices   device.Repository
	Resolver  *permission.Resolver
	Schedules *schedule.Service
	Evaluator *schedule.Evaluator
	Sounds    *sound.Store
	Payloads  *sound.Resolver
	Version   string
}

// Server is the HTTP API server for the cuckoo core.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	db        *database.DB
	users     identity.Repository
	devices   device.Repository
	resolver  *permission.Resolver
	schedules *schedule.Service
	evaluator *schedule.Evaluator
	sounds    *sound.Store
	payloads  *sound.Resolver
	version   string
	server    *http.Server
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Users == nil || deps.Devices == nil {
		return nil, fmt.Errorf("user and device repositories are required")
	}
	if deps.Resolver == nil || deps.Schedules == nil || deps.Evaluator == nil {
		return nil, fmt.Errorf("permission resolver, schedule service and evaluator are required")
	}
	if deps.Sounds == nil || deps.Payloads == nil {
		return nil, fmt.Errorf("sound store and payload resolver are required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		db:        deps.DB,
		users:     deps.Users,
		devices:   deps.Devices,
		resolver:  deps.Resolver,
		schedules: deps.Schedules,
		evaluator: deps.Evaluator,
		sounds:    deps.Sounds,
		payloads:  deps.Payloads,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server is stopped with Close().
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("api server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting for in-flight
// requests up to gracefulShutdownTimeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("api server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	return nil
}
