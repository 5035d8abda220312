package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/clinova/clinic-scheduling/internal/clinic"
)

type RouterConfig struct {
	Service *clinic.Service
	Window  BookingWindow
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment lifecycle
	r.Post("/appointments", scheduleAppointmentHandler(cfg.Service, cfg.Window))
	r.Post("/appointments/walk-in", walkInHandler(cfg.Service))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/check-in", checkInHandler(cfg.Service))
	r.Post("/appointments/{id}/start", startHandler(cfg.Service))
	r.Post("/appointments/{id}/complete", completeHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))

	// Availability
	r.Get("/slots", availableSlotsHandler(cfg.Service))

	return r
}
