package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/llm"
)

// StreamErrorReply replaces or completes a reply whose stream failed
const StreamErrorReply = "Sorry, an error occurred while processing your request."

// ChatRequest is a user message sent to a session
type ChatRequest struct {
	SessionID string
	Content   string
	Provider  string
	Model     string
}

// ChatService answers user messages with streamed model replies
type ChatService struct {
	stores    StoreLookup
	providers ProviderResolver
}

// NewChatService creates a new chat service
func NewChatService(stores StoreLookup, providers ProviderResolver) *ChatService {
	return &ChatService{stores: stores, providers: providers}
}

// Send appends the user message, streams the reply into the session and
// returns the session once the stream has ended. observer, when set, sees
// every fragment in the order it was applied. The stream is not cancelled
// when ctx is; its result always lands in the session.
func (s *ChatService) Send(ctx context.Context, userID string, req ChatRequest, observer func(string)) (domain.ChatSession, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return domain.ChatSession{}, ErrEmptyMessage
	}

	st, err := lookupStore(s.stores, userID)
	if err != nil {
		return domain.ChatSession{}, err
	}
	if _, err := st.Get(req.SessionID); err != nil {
		return domain.ChatSession{}, err
	}
	if !st.BeginProcessing(req.SessionID) {
		return domain.ChatSession{}, ErrSessionBusy
	}

	acc := st.NewAccumulator(req.SessionID)
	defer acc.OnStreamEnd()

	ctx = context.WithoutCancel(ctx)

	userMsg := st.NewMessage(domain.RoleUser, content)
	var snapshot domain.ChatSession
	if err := st.Mutate(ctx, req.SessionID, func(sess domain.ChatSession) domain.ChatSession {
		if !sess.HasUserMessage() && sess.Title == domain.DefaultSessionTitle {
			if title := llm.GenerateTitle(content); title != "" {
				sess.Title = title
			}
		}
		sess.Messages = append(sess.Messages, userMsg)
		snapshot = sess.Clone()
		return sess
	}); err != nil {
		return domain.ChatSession{}, err
	}

	emit := func(text string, first bool) {
		if err := acc.OnChunk(ctx, text, first); err != nil {
			log.Warn().Err(err).Str("session_id", req.SessionID).Msg("dropping reply fragment")
			return
		}
		if observer != nil {
			observer(text)
		}
	}
	fail := func(err error, reply string) {
		log.Warn().Err(err).Str("session_id", req.SessionID).Msg("chat stream failed")
		if err := acc.OnStreamError(ctx, reply); err != nil {
			log.Warn().Err(err).Str("session_id", req.SessionID).Msg("dropping error reply")
			return
		}
		if observer != nil {
			observer(reply)
		}
	}

	provider, err := s.providers.GetProvider(req.Provider)
	if err != nil {
		reply := StreamErrorReply
		if errors.Is(err, llm.ErrProviderNotConfigured) {
			reply = llm.MissingKeyReply
		}
		fail(err, reply)
		return st.Get(req.SessionID)
	}

	ch, err := provider.StreamChat(ctx, llm.ChatRequest{
		System:  systemInstruction(snapshot),
		History: llm.HistoryFromMessages(snapshot.Messages),
		Model:   req.Model,
	})
	if err != nil {
		fail(err, StreamErrorReply)
		return st.Get(req.SessionID)
	}

	for chunk := range ch {
		if chunk.Err != nil {
			fail(chunk.Err, StreamErrorReply)
			continue
		}
		if chunk.Text == "" {
			continue
		}
		emit(chunk.Text, !acc.Started())
	}

	return st.Get(req.SessionID)
}

// systemInstruction adds the analysis summary of the session's document,
// when there is one, to the chat instruction
func systemInstruction(sess domain.ChatSession) string {
	if sess.Analysis == nil || sess.Analysis.PlainLanguageSummary == "" {
		return llm.ChatSystemInstruction
	}
	return llm.ChatSystemInstruction + "\n\nDocument type: " + sess.Analysis.DocType +
		"\nSummary of the analyzed document: " + sess.Analysis.PlainLanguageSummary
}
