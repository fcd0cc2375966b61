// Package service wires the session store to documents and language models
package service

import (
	"context"
	"errors"

	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/llm"
	"github.com/Rrens/flagr/internal/session"
)

var (
	ErrEmptyDocument     = errors.New("the document contains no readable text")
	ErrEmptyMessage      = errors.New("message must not be empty")
	ErrSessionBusy       = errors.New("session is still processing a reply")
	ErrSessionsNotLoaded = errors.New("sessions are not loaded for this user")
)

// StoreLookup finds the loaded session store of a user
type StoreLookup interface {
	Lookup(userID string) (*session.Store, bool)
}

// ProviderResolver resolves a language model provider by name; "" selects
// the default one
type ProviderResolver interface {
	GetProvider(name string) (llm.Provider, error)
}

// TextExtractor turns an uploaded file into raw text
type TextExtractor interface {
	Extract(ctx context.Context, name string, data []byte) (string, error)
}

// AnalysisCache stores analyses by document digest. Get returns (nil, nil)
// on a miss.
type AnalysisCache interface {
	Get(ctx context.Context, digest string) (*domain.AnalysisResult, error)
	Set(ctx context.Context, digest string, result *domain.AnalysisResult) error
}

func lookupStore(stores StoreLookup, userID string) (*session.Store, error) {
	st, ok := stores.Lookup(userID)
	if !ok {
		return nil, ErrSessionsNotLoaded
	}
	return st, nil
}
