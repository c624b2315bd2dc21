/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/health              Liveness
  /api/combine-inventory   Reconciliation
  /api/yield*, /api/custom-yield   Yield runs
  /api/db/*                Stored inventory and decisions
  /api/runs                Run log

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins are the local frontend origins.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins ...string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Post("/combine-inventory", h.CombineInventory)

		r.Post("/yield", h.RunYield)
		r.Get("/yield/stream", h.StreamYield)
		r.Post("/custom-yield", h.RunCustomYield)

		r.Route("/db", func(r chi.Router) {
			r.Get("/combined-inventory", h.GetCombinedInventory)
			r.Get("/inventory-allocation", h.GetInventoryAllocation)
		})

		r.Get("/runs", h.ListRuns)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Yield Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Yield Engine API</h1>
<ul>
<li><a href="/api/health">/api/health</a> - Health check</li>
<li><a href="/api/db/combined-inventory">/api/db/combined-inventory</a> - Canonical inventory</li>
<li><a href="/api/db/inventory-allocation">/api/db/inventory-allocation</a> - Daily allocation</li>
<li><a href="/api/runs">/api/runs</a> - Run log</li>
</ul>
</body>
</html>`))
	})

	return r
}
