package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the import API router.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// CORS for the CRM front-end (explicit origins, cookies allowed)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/imports", func(r chi.Router) {
		r.Post("/analyze", h.HandleAnalyze)
		r.Post("/", h.HandleCreateImport)
		r.Get("/fields", h.HandleListFields)
		r.Route("/{importID}", func(r chi.Router) {
			r.Get("/", h.HandleGetImport)
			r.Post("/commit", h.HandleCommit)
		})
	})

	return r
}
