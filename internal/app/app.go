// Package app assembles the storage backend and language model providers
// shared by the server and the command line tool.
package app

import (
	"context"
	"fmt"

	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/document"
	"github.com/Rrens/flagr/internal/llm"
	"github.com/Rrens/flagr/internal/llm/anthropic"
	"github.com/Rrens/flagr/internal/llm/gemini"
	"github.com/Rrens/flagr/internal/llm/ollama"
	"github.com/Rrens/flagr/internal/llm/openai"
	"github.com/Rrens/flagr/internal/repository"
	"github.com/Rrens/flagr/internal/security"
	"github.com/Rrens/flagr/internal/storage"
)

// OpenStorage opens the configured backend, encrypting values at rest when
// an encryption key is set
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	kv, err := repository.NewRegistry().Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.EncryptionKey == "" {
		return kv, nil
	}

	enc, err := security.NewEncryptorFromSecret(cfg.EncryptionKey)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("invalid storage encryption key: %w", err)
	}
	return storage.Encrypted(kv, enc), nil
}

// Providers holds the provider router and the vision-capable provider used
// for image uploads
type Providers struct {
	Router *llm.Router
	Gemini *gemini.Provider
}

// NewProviders registers every supported provider
func NewProviders(cfg config.LLMConfig) Providers {
	router := llm.NewRouter(cfg.DefaultProvider)
	gem := gemini.NewProvider(cfg.Gemini)

	router.RegisterProvider(openai.NewGroq(cfg.Groq))
	router.RegisterProvider(openai.NewOpenAI(cfg.OpenAI))
	router.RegisterProvider(openai.NewDeepSeek(cfg.DeepSeek))
	router.RegisterProvider(anthropic.NewProvider(cfg.Anthropic))
	router.RegisterProvider(gem)
	router.RegisterProvider(ollama.NewProvider(cfg.Ollama))

	return Providers{Router: router, Gemini: gem}
}

// NewExtractor returns a document extractor that reads images through
// Gemini when it has credentials
func (p Providers) NewExtractor() *document.Extractor {
	if p.Gemini != nil && p.Gemini.IsConfigured() {
		return document.NewExtractor(document.WithImageRecognizer(p.Gemini))
	}
	return document.NewExtractor()
}
