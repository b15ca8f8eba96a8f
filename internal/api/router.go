package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// healthCheckTimeout bounds each component check in /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID, echoRequestID)
	r.Use(s.accessLog)
	r.Use(s.recoveryMiddleware)
	r.Use(s.cors)
	r.Use(s.limitBody)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		if s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics)
		}

		r.Route("/models", func(r chi.Router) {
			r.Get("/", s.handleListModels)
			r.Post("/", s.handleCreateModel)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetModel)
				r.Put("/", s.handleUpdateModel)
				r.Delete("/", s.handleDeleteModel)

				r.Get("/avatar", s.handleGetAvatar)
				r.Put("/avatar", s.handleChangeAvatar)
				r.Delete("/avatar", s.handleDeleteAvatar)
			})
		})

		r.Post("/images/cache-control", s.handleSyncCacheControl)
		r.Get("/audit", s.handleListAudit)

		r.Get("/devices", s.handleListDevices)
		r.Get("/devices/{id}", s.handleGetDevice)
		r.Get("/concentrators", s.handleListConcentrators)
		r.Get("/concentrators/{id}", s.handleGetConcentrator)
		r.Get("/edge-devices", s.handleListEdgeDevices)
		r.Get("/edge-devices/{id}", s.handleGetEdgeDevice)
		r.Get("/lorawan/gateways", s.handleListGateways)
		r.Get("/lorawan/gateways/{id}", s.handleGetGateway)

		r.Get("/sync", s.handleSyncStatus)
		r.Post("/sync/{job}", s.handleTriggerSync)
	})

	return r
}

// handleHealth reports "ok" when every registered component is healthy and
// "degraded" (503) otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	components := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.health[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
