package domain

import "time"

// DefaultSessionTitle is the title of a freshly created chat
const DefaultSessionTitle = "New Chat"

// ChatSession represents one document-analysis conversation thread
type ChatSession struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Messages  []Message       `json:"messages"`
	CreatedAt time.Time       `json:"createdAt"`
	Analysis  *AnalysisResult `json:"analysis"`
}

// Clone returns a deep copy so callers can transform it without touching
// the stored value
func (s ChatSession) Clone() ChatSession {
	out := s
	out.Messages = cloneSlice(s.Messages)
	if s.Analysis != nil {
		a := s.Analysis.Clone()
		out.Analysis = &a
	}
	return out
}

// LastMessage returns the trailing message of the session
func (s ChatSession) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// HasUserMessage reports whether the user has spoken in this session
func (s ChatSession) HasUserMessage() bool {
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}
