package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/flagr/internal/document"
	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/llm"
	"github.com/Rrens/flagr/internal/security"
)

// Upload is a document submitted for analysis
type Upload struct {
	Filename string
	Data     []byte
	Provider string
	Model    string
}

// PendingAnalysis is a document whose session exists but whose analysis
// has not been applied yet
type PendingAnalysis struct {
	SessionID string           `json:"sessionId"`
	Filename  string           `json:"filename"`
	DocType   string           `json:"docType"`
	Stats     domain.TextStats `json:"stats"`

	text     string
	provider string
	model    string
}

// AnalysisService drives upload, extraction, analysis and the session
// updates that record each outcome
type AnalysisService struct {
	stores    StoreLookup
	providers ProviderResolver
	extractor TextExtractor
	validator *security.UploadValidator
	cache     AnalysisCache
	maxChars  int
}

// NewAnalysisService creates a new analysis service. cache may be nil
func NewAnalysisService(
	stores StoreLookup,
	providers ProviderResolver,
	extractor TextExtractor,
	validator *security.UploadValidator,
	cache AnalysisCache,
	maxChars int,
) *AnalysisService {
	if maxChars <= 0 {
		maxChars = document.DefaultMaxChars
	}
	return &AnalysisService{
		stores:    stores,
		providers: providers,
		extractor: extractor,
		validator: validator,
		cache:     cache,
		maxChars:  maxChars,
	}
}

// Analyze runs Begin and Complete in sequence. Once the session exists the
// analysis runs to completion even if ctx is cancelled.
func (s *AnalysisService) Analyze(ctx context.Context, userID string, upload Upload) (domain.ChatSession, error) {
	pending, err := s.Begin(ctx, userID, upload)
	if err != nil {
		return domain.ChatSession{}, err
	}
	return s.Complete(context.WithoutCancel(ctx), userID, pending)
}

// Start begins the analysis and completes it in the background. The
// returned pending analysis names the session the result will land in.
func (s *AnalysisService) Start(ctx context.Context, userID string, upload Upload) (*PendingAnalysis, error) {
	pending, err := s.Begin(ctx, userID, upload)
	if err != nil {
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.Complete(bg, userID, pending); err != nil {
			log.Warn().Err(err).Str("session_id", pending.SessionID).Msg("analysis result was not applied")
		}
	}()
	return pending, nil
}

// Begin extracts the document and opens its session. Nothing is changed
// when the upload is rejected or its text cannot be read.
func (s *AnalysisService) Begin(ctx context.Context, userID string, upload Upload) (*PendingAnalysis, error) {
	st, err := lookupStore(s.stores, userID)
	if err != nil {
		return nil, err
	}

	filename := security.SanitizeFilename(upload.Filename)
	if s.validator != nil {
		if err := s.validator.Validate(filename, int64(len(upload.Data))); err != nil {
			return nil, err
		}
	}

	raw, err := s.extractor.Extract(ctx, filename, upload.Data)
	if err != nil {
		return nil, err
	}

	text := document.Clean(raw, s.maxChars)
	if text == "" {
		return nil, ErrEmptyDocument
	}

	docType := document.DetectType(text)
	sess := st.NewSession(docType+": "+filename, []domain.Message{})
	st.Insert(ctx, sess)
	st.BeginProcessing(sess.ID)

	log.Info().
		Str("user_id", userID).
		Str("session_id", sess.ID).
		Str("doc_type", docType).
		Int("chars", len([]rune(text))).
		Msg("document accepted for analysis")

	return &PendingAnalysis{
		SessionID: sess.ID,
		Filename:  filename,
		DocType:   docType,
		Stats:     document.Stats(text),
		text:      text,
		provider:  upload.Provider,
		model:     upload.Model,
	}, nil
}

// Complete requests the analysis and records the outcome in the pending
// session. Analysis failures are written into the session, not returned;
// the error result only reports that the session could not be updated.
func (s *AnalysisService) Complete(ctx context.Context, userID string, pending *PendingAnalysis) (domain.ChatSession, error) {
	st, err := lookupStore(s.stores, userID)
	if err != nil {
		return domain.ChatSession{}, err
	}
	defer st.EndProcessing(pending.SessionID)

	result, err := s.requestAnalysis(ctx, pending)

	var messages []domain.Message
	if err != nil {
		log.Warn().Err(err).Str("session_id", pending.SessionID).Msg("document analysis failed")
		messages = []domain.Message{
			st.NewMessage(domain.RoleAssistant, fmt.Sprintf("Sorry, there was an error analyzing your document. Please try again. Error: %s", err)),
		}
	} else {
		messages = []domain.Message{
			st.NewMessage(domain.RoleUser, fmt.Sprintf("Analyzed document: \"%s\"", pending.Filename)),
			st.NewMessage(domain.RoleAssistant, fmt.Sprintf("I've finished analyzing your document, \"%s\". You can ask me any questions you have about it.", pending.Filename)),
		}
	}

	if err := st.Mutate(ctx, pending.SessionID, func(sess domain.ChatSession) domain.ChatSession {
		sess.Messages = messages
		sess.Analysis = result
		return sess
	}); err != nil {
		return domain.ChatSession{}, err
	}

	return st.Get(pending.SessionID)
}

func (s *AnalysisService) requestAnalysis(ctx context.Context, pending *PendingAnalysis) (*domain.AnalysisResult, error) {
	digest := analysisDigest(pending.DocType, pending.text)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, digest)
		if err != nil {
			log.Warn().Err(err).Msg("analysis cache read failed")
		} else if cached != nil {
			log.Debug().Str("session_id", pending.SessionID).Msg("analysis cache hit")
			return cached, nil
		}
	}

	provider, err := s.providers.GetProvider(pending.provider)
	if err != nil {
		return nil, err
	}

	content, err := provider.Analyze(ctx, llm.AnalysisRequest{
		Text:    pending.text,
		DocType: pending.DocType,
		Model:   pending.model,
	})
	if err != nil {
		return nil, err
	}

	data, err := llm.ParseAnalysis(content)
	if err != nil {
		return nil, err
	}

	result := &domain.AnalysisResult{
		AnalysisData: *data,
		DocType:      pending.DocType,
		Stats:        pending.Stats,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, digest, result); err != nil {
			log.Warn().Err(err).Msg("analysis cache write failed")
		}
	}
	return result, nil
}

func analysisDigest(docType, text string) string {
	sum := sha256.Sum256([]byte(docType + "\n" + text))
	return hex.EncodeToString(sum[:])
}
