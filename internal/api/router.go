package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds settings for the API router.
// Passed from main.go so the router can configure CORS and auth from env vars.
type RouterConfig struct {
	// BackendAPIKey is the key that must be provided in X-API-Key or Authorization: Bearer <key>.
	// If empty, auth middleware is skipped (development mode).
	BackendAPIKey string

	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*" (development mode).
	CorsAllowedOrigins string

	// LocalAssetDir, when non-empty, is served under /assets so locally
	// stored videos and audio are reachable by their public URLs.
	LocalAssetDir string
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (applied to all routes including /health)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// CORS: restrict origins when configured, otherwise allow all (dev mode)
	allowedOrigins := []string{"*"}
	if cfg.CorsAllowedOrigins != "" {
		origins := strings.Split(cfg.CorsAllowedOrigins, ",")
		trimmed := make([]string, 0, len(origins))
		for _, o := range origins {
			if s := strings.TrimSpace(o); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			allowedOrigins = trimmed
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check — public, no auth required
	r.Get("/health", h.Health)

	// Local asset serving — public, playback fetches media directly
	if cfg.LocalAssetDir != "" {
		fs := http.StripPrefix("/assets/", http.FileServer(http.Dir(cfg.LocalAssetDir)))
		r.Get("/assets/*", fs.ServeHTTP)
	}

	// API routes — protected by API key auth
	r.Route("/v1", func(r chi.Router) {
		// Apply auth middleware only to /v1 routes
		if cfg.BackendAPIKey != "" {
			r.Use(APIKeyAuth(cfg.BackendAPIKey))
		}

		// Greetings
		r.Get("/greetings", h.ListGreetings)
		r.Post("/greetings", h.CreateGreeting)
		r.Get("/greetings/{id}", h.GetGreeting)
		r.Post("/greetings/{id}/produce", h.RegenerateGreeting)
		r.Post("/greetings/{id}/complete", h.CompleteGreeting)
		r.Patch("/greetings/{id}/trim", h.UpdateTrim)
		r.Get("/greetings/{id}/preview.wav", h.PreviewMix)
		r.Get("/greetings/{id}/debug/jobs", h.GetGreetingJobs)
	})

	return r
}
