package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/Rrens/flagr/internal/domain"
)

var (
	ErrProviderNotFound      = errors.New("provider not found")
	ErrProviderNotConfigured = errors.New("provider not configured")
)

// Generation parameters shared by every provider
const (
	AnalysisTemperature = 0.1
	AnalysisMaxTokens   = 4096
	ChatTemperature     = 0.7
	ChatMaxTokens       = 2048
)

// AnalysisRequest asks for a structured analysis of a document
type AnalysisRequest struct {
	Text    string
	DocType string
	Model   string
}

// ChatMessage is one turn of the conversation sent to a model
type ChatMessage struct {
	Role    domain.MessageRole
	Content string
}

// ChatRequest asks for a streamed reply to a conversation
type ChatRequest struct {
	System  string
	History []ChatMessage
	Model   string
}

// StreamChunk carries either a fragment of text or the error that ended
// the stream
type StreamChunk struct {
	Text string
	Err  error
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Analyze returns the model's raw JSON analysis of a document
	Analyze(ctx context.Context, req AnalysisRequest) (string, error)

	// StreamChat streams a reply. The channel is closed at end of stream;
	// a chunk with Err set is always the last one.
	StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}

// HistoryFromMessages converts session messages to model turns, skipping
// the synthetic "loading" placeholder
func HistoryFromMessages(messages []domain.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.ID == "loading" {
			continue
		}
		out = append(out, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// AlternateTurns reshapes history for APIs that require the conversation
// to open with a user turn and alternate roles: leading assistant turns
// are dropped and consecutive turns of one role are joined
func AlternateTurns(history []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if len(out) == 0 && m.Role != domain.RoleUser {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}

// Collect drains a stream into one string
func Collect(ch <-chan StreamChunk) (string, error) {
	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return sb.String(), chunk.Err
		}
		sb.WriteString(chunk.Text)
	}
	return sb.String(), nil
}
