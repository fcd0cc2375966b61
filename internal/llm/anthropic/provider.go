package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/llm"
)

const (
	apiVersion      = "2023-06-01"
	analysisTimeout = 120 * time.Second
)

// Provider implements llm.Provider for Anthropic
type Provider struct {
	apiKey       string
	defaultModel string
	client       *http.Client
	baseURL      string
}

// NewProvider creates a new Anthropic provider
func NewProvider(cfg config.AnthropicConfig) *Provider {
	defaultModel := cfg.Model
	if defaultModel == "" {
		defaultModel = "claude-3-5-haiku-latest"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	return &Provider{
		apiKey:       cfg.APIKey,
		defaultModel: defaultModel,
		client:       &http.Client{},
		baseURL:      baseURL,
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "anthropic"
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return []string{
		"claude-3-5-haiku-latest",
		"claude-3-5-sonnet-latest",
		"claude-3-opus-20240229",
		"claude-3-haiku-20240307",
	}
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Stream      bool      `json:"stream,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Analyze requests the analysis. The messages API has no JSON mode, so
// the reply is prefilled with "{" to keep the model on a JSON object.
func (p *Provider) Analyze(ctx context.Context, req llm.AnalysisRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, analysisTimeout)
	defer cancel()

	resp, err := p.do(ctx, messagesRequest{
		Model:       p.model(req.Model),
		MaxTokens:   llm.AnalysisMaxTokens,
		Temperature: llm.AnalysisTemperature,
		System:      llm.BuildAnalysisPrompt(req.DocType),
		Messages: []message{
			{Role: "user", Content: llm.BuildAnalysisInput(req.Text)},
			{Role: "assistant", Content: "{"},
		},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("API response did not contain a valid message")
	}
	return "{" + sb.String(), nil
}

// StreamChat streams a reply over server-sent events
func (p *Provider) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	turns := llm.AlternateTurns(req.History)
	messages := make([]message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, message{Role: role(t.Role), Content: t.Content})
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("conversation has no user turn")
	}

	resp, err := p.do(ctx, messagesRequest{
		Model:       p.model(req.Model),
		MaxTokens:   llm.ChatMaxTokens,
		Temperature: llm.ChatTemperature,
		System:      req.System,
		Messages:    messages,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		if err := readEvents(resp.Body, func(ev streamEvent) bool {
			if ev.Type != "content_block_delta" || ev.Delta.Text == "" {
				return true
			}
			select {
			case ch <- llm.StreamChunk{Text: ev.Delta.Text}:
				return true
			case <-ctx.Done():
				return false
			}
		}); err != nil && ctx.Err() == nil {
			ch <- llm.StreamChunk{Err: err}
		}
	}()

	return ch, nil
}

func (p *Provider) do(ctx context.Context, body messagesRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errBody struct {
			Error apiError `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&errBody) == nil && errBody.Error.Message != "" {
			return nil, fmt.Errorf("anthropic returned status %d: %s", resp.StatusCode, errBody.Error.Message)
		}
		return nil, fmt.Errorf("anthropic returned status %d", resp.StatusCode)
	}

	return resp, nil
}

// readEvents decodes the data lines of an SSE body until message_stop,
// an error event, or fn returning false
func readEvents(r io.Reader, fn func(streamEvent) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("failed to decode stream event: %w", err)
		}

		switch ev.Type {
		case "message_stop":
			return nil
		case "error":
			if ev.Error != nil {
				return fmt.Errorf("anthropic stream error: %s", ev.Error.Message)
			}
			return fmt.Errorf("anthropic stream error")
		}

		if !fn(ev) {
			return nil
		}
	}
	return scanner.Err()
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
