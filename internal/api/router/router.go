// Package router provides HTTP routing configuration using Chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/remiblancher/mtls-identity/internal/api/handler"
	"github.com/remiblancher/mtls-identity/internal/api/metrics"
	"github.com/remiblancher/mtls-identity/internal/api/middleware"
	"github.com/remiblancher/mtls-identity/internal/api/service"
	"github.com/remiblancher/mtls-identity/internal/audit"
	"github.com/remiblancher/mtls-identity/internal/ca"
)

// Config holds router configuration.
type Config struct {
	Version string

	// Authority signs enrollment CSRs and backs certificate lookups.
	Authority *ca.Authority

	// ValidityDays overrides the default issued-certificate validity.
	ValidityDays int

	// RotationThreshold is the server-side required-rotation window in days.
	RotationThreshold int

	// AuditLog records issuance events. Nil disables auditing.
	AuditLog audit.Log
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health endpoints (always enabled, no client certificate)
	healthHandler := handler.NewHealthHandler(cfg.Version, func() bool {
		return cfg.Authority != nil && cfg.Authority.Loaded()
	})
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Services
	enrollService := service.NewEnrollService(cfg.Authority, cfg.ValidityDays, cfg.AuditLog)
	rotationService := service.NewRotationService(cfg.Authority.Store(), cfg.RotationThreshold)
	bundleService := service.NewBundleService(cfg.Authority.Store())

	// Handlers
	enrollHandler := handler.NewEnrollHandler(enrollService)
	rotationHandler := handler.NewRotationHandler(rotationService)
	bundleHandler := handler.NewBundleHandler(bundleService)
	whoamiHandler := handler.NewWhoamiHandler()

	r.Route("/api/v1", func(r chi.Router) {
		// Enrollment is the bootstrap path: a device has no certificate
		// yet, so it stays reachable without one.
		r.Post("/enroll", enrollHandler.Enroll)

		// Everything else requires an authenticated peer.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireClientCert)
			r.Get("/rotation/{name}", rotationHandler.Status)
			r.Get("/bundle/{name}", bundleHandler.Bundle)
			r.Get("/whoami", whoamiHandler.Whoami)
		})
	})

	return r
}
