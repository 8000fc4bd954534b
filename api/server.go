/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Lightweight, context-based, RESTful route patterns.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontends/tools

ROUTE GROUPS:
  /api/patients/*        Patient registry
  /api/policies/*        Insurance policy store
  /api/consents/*        Consent store
  /api/authorizations/*  Treatment authorization store
  /api/clock             Logical clock surface
  /api/scenarios/*       Demo scenarios
  /metrics               Prometheus metrics

SECURITY NOTE:
  Caller identity comes from the X-Caller-ID header with no cryptographic
  verification. The deployment in front of this server authenticates; the
  engine only compares identities.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Caller-ID"},
		AllowCredentials: false,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Patient registry
		r.Route("/patients", func(r chi.Router) {
			r.Get("/", h.ListPatients)
			r.Post("/", h.RegisterPatient)
			r.Post("/admin/transfer", h.TransferPatientAdmin)
			r.Get("/{id}", h.GetPatient)
			r.Put("/{id}", h.UpdatePatient)
			r.Post("/{id}/deactivate", h.DeactivatePatient)
			r.Post("/{id}/reactivate", h.ReactivatePatient)
		})

		// Insurance policy store
		r.Route("/policies", func(r chi.Router) {
			r.Get("/", h.ListPolicies)
			r.Post("/", h.AddPolicy)
			r.Post("/admin/transfer", h.TransferPolicyAdmin)
			r.Get("/{id}", h.GetPolicy)
			r.Put("/{id}", h.UpdatePolicy)
			r.Get("/{id}/coverage", h.VerifyCoverage)
			r.Get("/{id}/ownership/{patientID}", h.PolicyOwnership)
			r.Post("/{id}/deactivate", h.DeactivatePolicy)
			r.Post("/{id}/reactivate", h.ReactivatePolicy)
		})

		// Consent store
		r.Route("/consents", func(r chi.Router) {
			r.Get("/", h.ListConsents)
			r.Post("/", h.GrantConsent)
			r.Post("/admin/transfer", h.TransferConsentAdmin)
			r.Get("/{id}", h.GetConsent)
			r.Get("/{id}/verify", h.VerifyConsent)
			r.Get("/{id}/ownership/{patientID}", h.ConsentOwnership)
			r.Post("/{id}/revoke", h.RevokeConsent)
			r.Post("/{id}/extend", h.ExtendConsent)
		})

		// Treatment authorization store
		r.Route("/authorizations", func(r chi.Router) {
			r.Get("/", h.ListAuthorizations)
			r.Post("/", h.RequestAuthorization)
			r.Post("/admin/transfer", h.TransferAuthorizationAdmin)
			r.Get("/{id}", h.GetAuthorization)
			r.Get("/{id}/verify", h.VerifyAuthorization)
			r.Get("/{id}/ownership/{patientID}", h.AuthorizationOwnership)
			r.Post("/{id}/status", h.UpdateAuthorizationStatus)
			r.Post("/{id}/extend", h.ExtendAuthorization)
		})

		// Logical clock surface
		r.Route("/clock", func(r chi.Router) {
			r.Get("/", h.GetClock)
			r.Post("/advance", h.AdvanceClock)
		})

		// Demo scenarios
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	return r
}
