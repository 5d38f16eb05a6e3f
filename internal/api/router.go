package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/backend"
)

type RouterConfig struct {
	Store  *backend.Store
	Logger zerolog.Logger
	// Dependencies are pinged by /health/ready in addition to the store itself.
	Dependencies []Dependency
	RequireToken bool
	Env          string
	Version      string
}

// NewRouter serves the clinic REST contract under /api/{role}/profile.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api/{role}/profile", func(r chi.Router) {
		r.Use(SessionMiddleware(cfg.RequireToken))

		r.Get("/data", directoryHandler(cfg.Store))
		r.Get("/leave", leaveDatesHandler(cfg.Store))
		r.Get("/appointment/slots", takenSlotsHandler(cfg.Store))
		r.Get("/appointment", listAppointmentsHandler(cfg.Store))
		r.Post("/appointment", createAppointmentHandler(cfg.Store))
		r.Put("/appointment/{id}", rescheduleAppointmentHandler(cfg.Store))
		r.Put("/appointment/{id}/cancel", cancelAppointmentHandler(cfg.Store))
	})

	return r
}
