package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Rrens/flagr/internal/config"
)

// Factory opens a store from configuration
type Factory func(ctx context.Context, cfg config.StorageConfig) (Store, error)

// Registry maps backend names to factories
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a backend factory
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Open creates the store configured by cfg.Backend
func (r *Registry) Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}

	store, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Backend, err)
	}
	return store, nil
}

// Backends returns the registered backend names
func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
