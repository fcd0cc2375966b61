package session

import (
	"context"

	"github.com/Rrens/flagr/internal/domain"
)

// Accumulator folds a streamed reply into one session's trailing assistant
// message. It addresses the session by id, so the reply lands in the right
// place even after the user switches away. One accumulator serves one
// stream and must be fed from a single goroutine.
type Accumulator struct {
	store     *Store
	sessionID string
	started   bool
}

// NewAccumulator binds an accumulator to sessionID
func (s *Store) NewAccumulator(sessionID string) *Accumulator {
	return &Accumulator{store: s, sessionID: sessionID}
}

// OnChunk applies one fragment of the reply. The first fragment opens a new
// assistant message; later fragments extend the trailing message only when
// it is an assistant message and are dropped otherwise.
func (a *Accumulator) OnChunk(ctx context.Context, chunk string, first bool) error {
	a.started = true
	return a.store.Mutate(ctx, a.sessionID, func(sess domain.ChatSession) domain.ChatSession {
		if first {
			sess.Messages = append(sess.Messages, a.store.NewMessage(domain.RoleAssistant, chunk))
			return sess
		}

		if n := len(sess.Messages); n > 0 && sess.Messages[n-1].Role == domain.RoleAssistant {
			sess.Messages[n-1].Content += chunk
		}
		return sess
	})
}

// OnStreamError delivers msg as if the model had produced it, keeping any
// partial reply already received
func (a *Accumulator) OnStreamError(ctx context.Context, msg string) error {
	return a.OnChunk(ctx, msg, !a.started)
}

// OnStreamEnd clears the session's processing flag
func (a *Accumulator) OnStreamEnd() {
	a.store.EndProcessing(a.sessionID)
}

// Started reports whether any fragment has been applied
func (a *Accumulator) Started() bool {
	return a.started
}
