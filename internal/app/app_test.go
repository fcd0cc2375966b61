package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/document"
	"github.com/Rrens/flagr/internal/llm"
	"github.com/Rrens/flagr/internal/storage"
)

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("plain", func(t *testing.T) {
		kv, err := OpenStorage(ctx, config.StorageConfig{Backend: "memory"})
		require.NoError(t, err)
		assert.Equal(t, "memory", kv.Name())
	})

	t.Run("encrypted", func(t *testing.T) {
		kv, err := OpenStorage(ctx, config.StorageConfig{Backend: "memory", EncryptionKey: "at-rest-secret"})
		require.NoError(t, err)
		_, ok := kv.(*storage.EncryptedStore)
		assert.True(t, ok)

		require.NoError(t, kv.Set(ctx, "k", []byte("v")))
		got, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := OpenStorage(ctx, config.StorageConfig{Backend: "cassandra"})
		assert.ErrorContains(t, err, "unsupported storage backend: cassandra")
	})
}

func TestNewProviders(t *testing.T) {
	p := NewProviders(config.LLMConfig{DefaultProvider: "groq"})

	var names []string
	for _, info := range p.Router.GetProvidersInfo() {
		names = append(names, info.Name)
		assert.False(t, info.Configured, info.Name)
	}
	assert.ElementsMatch(t, []string{"groq", "openai", "deepseek", "anthropic", "gemini", "ollama"}, names)
	assert.Empty(t, p.Router.ListProviders())
	assert.Equal(t, "groq", p.Router.DefaultProvider())

	_, err := p.Router.GetProvider("groq")
	assert.ErrorIs(t, err, llm.ErrProviderNotConfigured)

	_, err = p.NewExtractor().Extract(context.Background(), "scan.png", []byte("\x89PNG"))
	assert.ErrorIs(t, err, document.ErrNoRecognizer)
}
