package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/llm"
)

// Provider implements llm.Provider for a local Ollama server
type Provider struct {
	host         string
	defaultModel string
	client       *api.Client
}

// NewProvider creates a new Ollama provider. An empty or unparsable host
// leaves the provider unconfigured.
func NewProvider(cfg config.OllamaConfig) *Provider {
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "llama3"
	}

	p := &Provider{defaultModel: defaultModel}
	if cfg.Host == "" {
		return p
	}

	base, err := url.Parse(cfg.Host)
	if err != nil {
		return p
	}
	p.host = cfg.Host
	p.client = api.NewClient(base, &http.Client{Timeout: 300 * time.Second})
	return p
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "ollama"
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return []string{
		"llama3",
		"llama3.1",
		"llama3.2",
		"mistral",
		"mixtral",
		"phi3",
		"qwen2",
	}
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if a server host is set
func (p *Provider) IsConfigured() bool {
	return p.client != nil
}

// Analyze requests the analysis with the JSON output format
func (p *Provider) Analyze(ctx context.Context, req llm.AnalysisRequest) (string, error) {
	if !p.IsConfigured() {
		return "", llm.ErrProviderNotConfigured
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model: p.model(req.Model),
		Messages: []api.Message{
			{Role: "system", Content: llm.BuildAnalysisPrompt(req.DocType)},
			{Role: "user", Content: llm.BuildAnalysisInput(req.Text)},
		},
		Stream: &stream,
		Format: json.RawMessage(`"json"`),
		Options: map[string]interface{}{
			"temperature": llm.AnalysisTemperature,
			"num_predict": llm.AnalysisMaxTokens,
		},
	}

	var content string
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	if content == "" {
		return "", fmt.Errorf("API response did not contain a valid message")
	}
	return content, nil
}

// StreamChat streams a reply from /api/chat
func (p *Provider) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if !p.IsConfigured() {
		return nil, llm.ErrProviderNotConfigured
	}

	messages := make([]api.Message, 0, len(req.History)+1)
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.History {
		messages = append(messages, api.Message{Role: role(m.Role), Content: m.Content})
	}

	stream := true
	chatReq := &api.ChatRequest{
		Model:    p.model(req.Model),
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": llm.ChatTemperature,
			"num_predict": llm.ChatMaxTokens,
		},
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)

		err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			select {
			case ch <- llm.StreamChunk{Text: resp.Message.Content}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && ctx.Err() == nil {
			ch <- llm.StreamChunk{Err: fmt.Errorf("ollama stream failed: %w", err)}
		}
	}()

	return ch, nil
}

func (p *Provider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

func role(r domain.MessageRole) string {
	if r == domain.RoleUser {
		return "user"
	}
	return "assistant"
}
