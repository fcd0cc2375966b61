package llm_test

import (
	"strings"
	"testing"

	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/llm"
)

func TestBuildAnalysisPrompt(t *testing.T) {
	prompt := llm.BuildAnalysisPrompt("Privacy Policy")

	mustContain := []string{
		"analyze a Privacy Policy",
		"plainLanguageSummary",
		"suggestedRewrite",
		"detectedDocType",
		"'Low' | 'Medium' | 'High'",
	}

	for _, s := range mustContain {
		if !strings.Contains(prompt, s) {
			t.Errorf("prompt should contain %q", s)
		}
	}
}

func TestBuildAnalysisInput(t *testing.T) {
	got := llm.BuildAnalysisInput("clause one")
	if got != "Document for analysis:\n\nclause one" {
		t.Errorf("unexpected input: %q", got)
	}
}

func TestGenerateTitle(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"short", "What is this?", "What is this?"},
		{"exactly five", "one two three four five", "one two three four five"},
		{"long", "Can you explain the termination clause in detail", "Can you explain the termination..."},
		{"markdown", "**Is** _this_ `clause` fair?", "Is this clause fair?"},
		{"extra whitespace", "  a \n b\t c ", "a b c"},
		{"empty", "  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := llm.GenerateTitle(tt.message); got != tt.want {
				t.Errorf("GenerateTitle(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain json",
			input:    `{"a":1}`,
			expected: `{"a":1}`,
		},
		{
			name:     "json code block",
			input:    "```json\n{\"a\":1}\n```",
			expected: `{"a":1}`,
		},
		{
			name:     "generic code block",
			input:    "Here you go:\n```\n{\"a\":1}\n```",
			expected: `{"a":1}`,
		},
		{
			name:     "prose around object",
			input:    "Sure! {\"a\":1} Hope it helps.",
			expected: `{"a":1}`,
		},
		{
			name:     "not json",
			input:    "  I cannot help with that.  ",
			expected: "I cannot help with that.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := llm.ExtractJSON(tt.input); result != tt.expected {
				t.Errorf("ExtractJSON() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestHistoryFromMessages(t *testing.T) {
	history := llm.HistoryFromMessages([]domain.Message{
		{ID: "1", Role: domain.RoleAssistant, Content: "hello"},
		{ID: "2", Role: domain.RoleUser, Content: "question"},
		{ID: "loading", Role: domain.RoleAssistant, Content: "..."},
	})

	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[1].Content != "question" {
		t.Errorf("unexpected last turn: %+v", history[1])
	}
}

func TestAlternateTurns(t *testing.T) {
	turns := llm.AlternateTurns([]llm.ChatMessage{
		{Role: domain.RoleAssistant, Content: "greeting"},
		{Role: domain.RoleUser, Content: "a"},
		{Role: domain.RoleUser, Content: "b"},
		{Role: domain.RoleAssistant, Content: " "},
		{Role: domain.RoleAssistant, Content: "reply"},
		{Role: domain.RoleUser, Content: "c"},
	})

	want := []llm.ChatMessage{
		{Role: domain.RoleUser, Content: "a\n\nb"},
		{Role: domain.RoleAssistant, Content: "reply"},
		{Role: domain.RoleUser, Content: "c"},
	}
	if len(turns) != len(want) {
		t.Fatalf("got %d turns, want %d: %+v", len(turns), len(want), turns)
	}
	for i := range want {
		if turns[i] != want[i] {
			t.Errorf("turn %d = %+v, want %+v", i, turns[i], want[i])
		}
	}
}
