package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Rrens/flagr/internal/api/handler"
	customMiddleware "github.com/Rrens/flagr/internal/api/middleware"
	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/llm"
	"github.com/Rrens/flagr/internal/service"
	"github.com/Rrens/flagr/internal/session"
)

// Dependencies are the services the HTTP API is built on. Limiter and
// Cache are optional.
type Dependencies struct {
	Storage     handler.Pinger
	Sessions    *session.Manager
	Providers   *llm.Router
	Auth        *service.AuthService
	Analysis    *service.AnalysisService
	Chat        *service.ChatService
	Preferences *service.PreferencesService
	Limiter     customMiddleware.Limiter
	Cache       handler.CacheFlusher
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := handler.NewAuthHandler(deps.Auth)
	sessionHandler := handler.NewSessionHandler(deps.Sessions)
	messageHandler := handler.NewMessageHandler(deps.Chat)
	uploadHandler := handler.NewUploadHandler(deps.Analysis, cfg.Analysis.MaxUploadBytes)
	preferencesHandler := handler.NewPreferencesHandler(deps.Preferences)

	authMiddleware := customMiddleware.NewAuthMiddleware(deps.Auth)
	timeout := middleware.Timeout(cfg.Server.MiddlewareTimeout)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(timeout).Get("/health", handler.HealthCheck)
		r.With(timeout).Get("/ready", handler.ReadyCheck(deps.Storage))
		r.With(timeout).Get("/llm-providers", handler.ListLLMProviders(deps.Providers))

		// Auth routes (public)
		r.Group(func(r chi.Router) {
			r.Use(timeout)
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/refresh", authHandler.Refresh)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			if deps.Limiter != nil {
				r.Use(customMiddleware.NewRateLimitMiddleware(deps.Limiter).Limit)
			}

			// Replies and analyses run as long as the model takes
			r.Post("/sessions/{sessionID}/messages", messageHandler.Send)
			r.Post("/documents", uploadHandler.Upload)

			r.Group(func(r chi.Router) {
				r.Use(timeout)

				r.Post("/auth/logout", authHandler.Logout)
				r.Get("/auth/me", authHandler.Me)

				r.Get("/sessions", sessionHandler.List)
				r.Post("/sessions", sessionHandler.Create)
				r.Get("/sessions/{sessionID}", sessionHandler.Get)
				r.Patch("/sessions/{sessionID}", sessionHandler.Rename)
				r.Delete("/sessions/{sessionID}", sessionHandler.Delete)
				r.Post("/sessions/{sessionID}/activate", sessionHandler.Activate)

				r.Get("/preferences/sidebar", preferencesHandler.GetSidebar)
				r.Put("/preferences/sidebar", preferencesHandler.PutSidebar)

				if deps.Cache != nil {
					r.Post("/cache/flush", handler.FlushCache(deps.Cache))
				}
			})
		})
	})

	return r
}
