package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/flagr/internal/api"
	"github.com/Rrens/flagr/internal/app"
	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/logging"
	"github.com/Rrens/flagr/internal/repository/redis"
	"github.com/Rrens/flagr/internal/security"
	"github.com/Rrens/flagr/internal/service"
	"github.com/Rrens/flagr/internal/session"
	"github.com/Rrens/flagr/internal/storage"
)

func main() {
	// Load .env file - try multiple locations
	envPaths := []string{".env", "../.env", "../../.env"}
	envLoaded := false
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			fmt.Printf("Loaded .env from: %s\n", p)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		fmt.Println("Warning: .env file not found in any standard location")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(cfg.Logging, cfg.IsProduction())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Backend).
		Msg("Starting Flagr API server")

	ctx := context.Background()

	// Initialize storage
	kv, err := app.OpenStorage(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer kv.Close()

	sessions := session.NewManager(storage.Safe(kv))
	providers := app.NewProviders(cfg.LLM)
	log.Info().Strs("providers", providers.Router.ListProviders()).Msg("LLM providers configured")

	deps := api.Dependencies{
		Storage:     kv,
		Sessions:    sessions,
		Providers:   providers.Router,
		Preferences: service.NewPreferencesService(storage.Safe(kv)),
		Chat:        service.NewChatService(sessions, providers.Router),
	}

	jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	deps.Auth = service.NewAuthService(kv, jwtManager, sessions, nil)

	var cache service.AnalysisCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()

		analysisCache := redis.NewAnalysisCache(redisClient, cfg.Analysis.CacheTTL)
		cache = analysisCache
		deps.Cache = analysisCache
		deps.Limiter = redis.NewRateLimiter(redisClient, cfg.Security.RateLimit.RequestsPerMinute, cfg.Security.RateLimit.Burst)
	}

	deps.Analysis = service.NewAnalysisService(
		sessions,
		providers.Router,
		providers.NewExtractor(),
		security.NewUploadValidator(cfg.Analysis.MaxUploadBytes),
		cache,
		cfg.Analysis.MaxChars,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
