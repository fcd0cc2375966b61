package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the key is absent
	ErrNotFound = errors.New("storage: key not found")

	ErrKeysUnsupported = errors.New("storage: backend cannot list keys")
)

// Store is a durable key/value store for JSON documents
type Store interface {
	// Name returns the backend identifier
	Name() string

	// Get returns the value under key or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key; deleting an absent key is not an error
	Delete(ctx context.Context, key string) error

	// Ping verifies the backend is reachable
	Ping(ctx context.Context) error

	// Close releases backend resources
	Close() error
}

// KeyLister is implemented by backends that can enumerate their keys
type KeyLister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// ListKeys returns the keys of s starting with prefix, sorted
func ListKeys(ctx context.Context, s Store, prefix string) ([]string, error) {
	l, ok := s.(KeyLister)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeysUnsupported, s.Name())
	}
	return l.Keys(ctx, prefix)
}

// Key builders. Every per-user key embeds the user id so switching users
// never reads another user's data.

func SessionsKey(userID string) string { return "sessions:" + userID }

func UserKey(userID string) string { return "user:" + userID }

func SidebarKey(userID string) string { return "sidebarState:" + userID }

func AccountKey(email string) string { return "account:" + email }

func AnalysisKey(digest string) string { return "analysis:" + digest }
