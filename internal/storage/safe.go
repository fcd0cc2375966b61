package storage

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// SafeStore degrades backend failures instead of surfacing them: failed
// reads look like absent keys and failed writes are logged and dropped.
// The application keeps working in memory when storage is unavailable.
type SafeStore struct {
	inner Store
}

// Safe wraps a store with failure degradation
func Safe(inner Store) *SafeStore {
	return &SafeStore{inner: inner}
}

func (s *SafeStore) Name() string {
	return s.inner.Name()
}

func (s *SafeStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.inner.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Error().Err(err).Str("key", key).Str("backend", s.inner.Name()).Msg("storage read failed")
		}
		return nil, ErrNotFound
	}
	return data, nil
}

func (s *SafeStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.inner.Set(ctx, key, value); err != nil {
		log.Error().Err(err).Str("key", key).Str("backend", s.inner.Name()).Msg("storage write failed")
	}
	return nil
}

func (s *SafeStore) Delete(ctx context.Context, key string) error {
	if err := s.inner.Delete(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Str("backend", s.inner.Name()).Msg("storage delete failed")
	}
	return nil
}

func (s *SafeStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return ListKeys(ctx, s.inner, prefix)
}

func (s *SafeStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

func (s *SafeStore) Close() error {
	return s.inner.Close()
}
