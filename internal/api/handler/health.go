package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/flagr/internal/api/response"
	"github.com/Rrens/flagr/internal/llm"
)

// Pinger reports whether a backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck returns readiness status including storage connectivity
func ReadyCheck(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			response.Error(w, http.StatusServiceUnavailable, "storage not ready")
			return
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}

// ListLLMProviders returns the registered LLM providers
func ListLLMProviders(router *llm.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]any{
			"providers":        router.GetProvidersInfo(),
			"default_provider": router.DefaultProvider(),
		})
	}
}

// CacheFlusher drops every cached entry
type CacheFlusher interface {
	FlushAll(ctx context.Context) (int64, error)
}

// FlushCache clears all cached document analyses
func FlushCache(cache CacheFlusher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := cache.FlushAll(r.Context())
		if err != nil {
			response.InternalError(w, "failed to flush cache: "+err.Error())
			return
		}

		response.OK(w, map[string]any{
			"message":      "cache flushed successfully",
			"keys_deleted": deleted,
		})
	}
}
