// Package openai talks to any OpenAI-compatible chat completions API. It
// backs the groq, openai and deepseek providers.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/llm"
)

// Provider implements llm.Provider over go-openai
type Provider struct {
	name         string
	apiKey       string
	defaultModel string
	models       []string
	client       *goopenai.Client
}

// NewProvider creates a provider named name for an OpenAI-compatible endpoint
func NewProvider(name string, cfg config.OpenAIConfig, models []string) *Provider {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	defaultModel := cfg.Model
	if defaultModel == "" && len(models) > 0 {
		defaultModel = models[0]
	}

	return &Provider{
		name:         name,
		apiKey:       cfg.APIKey,
		defaultModel: defaultModel,
		models:       models,
		client:       goopenai.NewClientWithConfig(clientCfg),
	}
}

// NewGroq creates the Groq provider
func NewGroq(cfg config.OpenAIConfig) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	return NewProvider("groq", cfg, []string{
		"llama3-8b-8192",
		"llama3-70b-8192",
		"llama-3.1-8b-instant",
		"mixtral-8x7b-32768",
	})
}

// NewOpenAI creates the OpenAI provider
func NewOpenAI(cfg config.OpenAIConfig) *Provider {
	return NewProvider("openai", cfg, []string{
		"gpt-4o-mini",
		"gpt-4o",
		"gpt-4-turbo",
		"gpt-3.5-turbo",
	})
}

// NewDeepSeek creates the DeepSeek provider
func NewDeepSeek(cfg config.OpenAIConfig) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com/v1"
	}
	return NewProvider("deepseek", cfg, []string{
		"deepseek-chat",
		"deepseek-reasoner",
	})
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return p.name
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return p.models
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

// Analyze requests the analysis in JSON mode
func (p *Provider) Analyze(ctx context.Context, req llm.AnalysisRequest) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: p.model(req.Model),
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: llm.BuildAnalysisPrompt(req.DocType)},
			{Role: goopenai.ChatMessageRoleUser, Content: llm.BuildAnalysisInput(req.Text)},
		},
		Temperature: llm.AnalysisTemperature,
		MaxTokens:   llm.AnalysisMaxTokens,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", p.name, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("API response did not contain a valid message")
	}

	return resp.Choices[0].Message.Content, nil
}

// StreamChat streams a chat completion
func (p *Provider) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.History)+1)
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.History {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: role(m.Role), Content: m.Content})
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, goopenai.ChatCompletionRequest{
		Model:       p.model(req.Model),
		Messages:    messages,
		Temperature: llm.ChatTemperature,
		MaxTokens:   llm.ChatMaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s stream failed: %w", p.name, err)
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				send(ctx, ch, llm.StreamChunk{Err: err})
				return
			}

			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !send(ctx, ch, llm.StreamChunk{Text: choice.Delta.Content}) {
					return
				}
			}
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
		return goopenai.ChatMessageRoleUser
	}
	return goopenai.ChatMessageRoleAssistant
}

func send(ctx context.Context, ch chan<- llm.StreamChunk, chunk llm.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
