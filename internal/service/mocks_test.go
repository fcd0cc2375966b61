package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/llm"
)

// MockProvider mocks the llm.Provider interface
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockProvider) AvailableModels() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockProvider) DefaultModel() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockProvider) IsConfigured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockProvider) Analyze(ctx context.Context, req llm.AnalysisRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan llm.StreamChunk), args.Error(1)
}

// newMockProvider returns a configured provider registered under name
func newMockProvider(name string, configured bool) *MockProvider {
	p := new(MockProvider)
	p.On("Name").Return(name).Maybe()
	p.On("IsConfigured").Return(configured).Maybe()
	return p
}

// MockAnalysisCache mocks the AnalysisCache interface
type MockAnalysisCache struct {
	mock.Mock
}

func (m *MockAnalysisCache) Get(ctx context.Context, digest string) (*domain.AnalysisResult, error) {
	args := m.Called(ctx, digest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalysisResult), args.Error(1)
}

func (m *MockAnalysisCache) Set(ctx context.Context, digest string, result *domain.AnalysisResult) error {
	args := m.Called(ctx, digest, result)
	return args.Error(0)
}

// stubExtractor returns fixed text or error for every file
type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(_ context.Context, _ string, _ []byte) (string, error) {
	return s.text, s.err
}

// streamOf returns a closed channel preloaded with chunks
func streamOf(chunks ...llm.StreamChunk) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}
