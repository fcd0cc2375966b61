package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/llm"
)

const visionPrompt = "Extract all the text from this image. Return only the extracted text, preserving line breaks where they are meaningful."

var errEmptyConversation = errors.New("conversation has no user turn")

type Provider struct {
	apiKey      string
	model       string
	visionModel string
}

func NewProvider(cfg config.GeminiConfig) *Provider {
	return &Provider{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
	}
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) AvailableModels() []string {
	return []string{
		"gemini-1.5-flash",
		"gemini-1.5-pro",
		"gemini-2.0-flash",
		"gemini-2.5-flash",
	}
}

func (p *Provider) DefaultModel() string {
	if p.model != "" {
		return p.model
	}
	return "gemini-1.5-flash"
}

func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

func (p *Provider) Analyze(ctx context.Context, req llm.AnalysisRequest) (string, error) {
	client, err := p.client(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	model := client.GenerativeModel(p.modelName(req.Model))
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(llm.BuildAnalysisPrompt(req.DocType))}}
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(llm.AnalysisTemperature)
	model.SetMaxOutputTokens(llm.AnalysisMaxTokens)

	resp, err := model.GenerateContent(ctx, genai.Text(llm.BuildAnalysisInput(req.Text)))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("API response did not contain a valid message")
	}
	return text, nil
}

func (p *Provider) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	history, last, err := splitConversation(req.History)
	if err != nil {
		return nil, err
	}

	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(p.modelName(req.Model))
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	model.SetTemperature(llm.ChatTemperature)
	model.SetMaxOutputTokens(llm.ChatMaxTokens)

	cs := model.StartChat()
	cs.History = history
	iter := cs.SendMessageStream(ctx, genai.Text(last))

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		defer client.Close()

		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				select {
				case ch <- llm.StreamChunk{Err: fmt.Errorf("gemini stream error: %w", err)}:
				case <-ctx.Done():
				}
				return
			}

			text := responseText(resp)
			if text == "" {
				continue
			}
			select {
			case ch <- llm.StreamChunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// RecognizeText reads the text out of an image with the vision model
func (p *Provider) RecognizeText(ctx context.Context, mimeType string, data []byte) (string, error) {
	if !p.IsConfigured() {
		return "", llm.ErrProviderNotConfigured
	}

	client, err := p.client(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	name := p.visionModel
	if name == "" {
		name = p.DefaultModel()
	}
	model := client.GenerativeModel(name)
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text(visionPrompt),
	)
	if err != nil {
		return "", fmt.Errorf("gemini vision error: %w", err)
	}
	return responseText(resp), nil
}

func (p *Provider) client(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

func (p *Provider) modelName(requested string) string {
	if requested != "" {
		return requested
	}
	return p.DefaultModel()
}

// splitConversation turns the history into gemini chat history plus the
// trailing user message to send
func splitConversation(messages []llm.ChatMessage) ([]*genai.Content, string, error) {
	turns := llm.AlternateTurns(messages)
	if len(turns) == 0 || turns[len(turns)-1].Role != domain.RoleUser {
		return nil, "", errEmptyConversation
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, t := range turns[:len(turns)-1] {
		history = append(history, &genai.Content{
			Role:  role(t.Role),
			Parts: []genai.Part{genai.Text(t.Content)},
		})
	}
	return history, turns[len(turns)-1].Content, nil
}

func role(r domain.MessageRole) string {
	if r == domain.RoleUser {
		return "user"
	}
	return "model"
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}
