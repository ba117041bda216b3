// internal/api/routes.go
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes builds the router. The Inngest serve handler is mounted by the
// caller so the workflow runtime and the API share one listener.
func SetupRoutes(h *Handlers, inngestHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", h.Root)
	r.Get("/health", h.HealthCheck)

	r.Post("/enqueue", h.Enqueue)
	r.Get("/snapshot-data/{snapshotId}", h.SnapshotData)
	r.Post("/api/dataforseo/callback", h.DataForSEOCallback)

	if inngestHandler != nil {
		r.Handle("/api/inngest", inngestHandler)
	}

	return r
}
