package storage

import (
	"context"
	"fmt"

	"github.com/Rrens/flagr/internal/security"
)

// EncryptedStore seals values with AES-GCM before they reach the backend
type EncryptedStore struct {
	inner     Store
	encryptor *security.Encryptor
}

// Encrypted wraps a store so values are encrypted at rest
func Encrypted(inner Store, encryptor *security.Encryptor) *EncryptedStore {
	return &EncryptedStore{inner: inner, encryptor: encryptor}
}

func (s *EncryptedStore) Name() string {
	return s.inner.Name()
}

func (s *EncryptedStore) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	plain, err := s.encryptor.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return plain, nil
}

func (s *EncryptedStore) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := s.encryptor.Encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *EncryptedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Keys lists keys of the wrapped store. Keys are stored in the clear.
func (s *EncryptedStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return ListKeys(ctx, s.inner, prefix)
}

func (s *EncryptedStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

func (s *EncryptedStore) Close() error {
	return s.inner.Close()
}
