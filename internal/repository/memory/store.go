// Package memory provides a process-local storage backend.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/storage"
)

// Store keeps values in a map. Contents are lost on restart.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Open satisfies storage.Factory
func Open(_ context.Context, _ config.StorageConfig) (storage.Store, error) {
	return NewStore(), nil
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Len returns the number of stored keys
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
