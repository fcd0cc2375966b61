// Package session owns a user's chat sessions: the ordered list, the active
// selection, per-session processing flags and write-through persistence.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/storage"
)

// GreetingMessage seeds every new chat
const GreetingMessage = "Hello! I'm your Flagr AI Assistant. Upload a document or ask me a question to get started."

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSignedOut       = errors.New("user is signed out")
	ErrEmptyTitle      = errors.New("title must not be empty")
)

// Option configures a Store
type Option func(*Store)

// WithClock sets the clock used for timestamps
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator sets the generator for session and message ids
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// Store holds one user's sessions. All methods are safe for concurrent use.
// The sessions slice is replaced, never modified in place, so snapshots
// handed out earlier stay valid.
type Store struct {
	mu         sync.Mutex
	userID     string
	kv         storage.Store
	sessions   []domain.ChatSession
	activeID   string
	loaded     bool
	processing map[string]bool

	clock clockwork.Clock
	newID func() string
}

// NewStore creates an empty (not yet loaded) store for userID
func NewStore(userID string, kv storage.Store, opts ...Option) *Store {
	s := &Store{
		userID:     userID,
		kv:         kv,
		processing: make(map[string]bool),
		clock:      clockwork.NewRealClock(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserID returns the owner of the store
func (s *Store) UserID() string {
	return s.userID
}

// NewMessage builds a message stamped with the store's clock
func (s *Store) NewMessage(role domain.MessageRole, content string) domain.Message {
	return domain.Message{
		ID:        s.newID(),
		Role:      role,
		Content:   content,
		Timestamp: domain.FormatTimestamp(s.clock.Now()),
	}
}

// NewSession builds a session with a fresh id; it is not inserted
func (s *Store) NewSession(title string, messages []domain.Message) domain.ChatSession {
	if messages == nil {
		messages = []domain.Message{}
	}
	return domain.ChatSession{
		ID:        s.newID(),
		Title:     title,
		Messages:  messages,
		CreatedAt: s.clock.Now().UTC(),
	}
}

func (s *Store) defaultSession() domain.ChatSession {
	return s.NewSession(domain.DefaultSessionTitle, []domain.Message{
		s.NewMessage(domain.RoleAssistant, GreetingMessage),
	})
}

// Create adds a default session at the front of the list and activates it
func (s *Store) Create(ctx context.Context) domain.ChatSession {
	sess := s.defaultSession()
	s.Insert(ctx, sess)
	return sess.Clone()
}

// Insert puts sess at the front of the list and activates it
func (s *Store) Insert(ctx context.Context, sess domain.ChatSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.ChatSession, 0, len(s.sessions)+1)
	next = append(next, sess.Clone())
	next = append(next, s.sessions...)

	s.sessions = next
	s.activeID = sess.ID
	s.loaded = true
	s.persistLocked(ctx)
}

// SwitchActive selects sessionID as the active session
func (s *Store) SwitchActive(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(sessionID) < 0 {
		return ErrSessionNotFound
	}
	s.activeID = sessionID
	return nil
}

// Delete removes a session. Deleting the active session selects the one
// before it (or the new first one); the list is never left empty.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return ErrSessionNotFound
	}

	next := make([]domain.ChatSession, 0, len(s.sessions)-1)
	next = append(next, s.sessions[:idx]...)
	next = append(next, s.sessions[idx+1:]...)
	delete(s.processing, sessionID)

	if len(next) == 0 {
		fresh := s.defaultSession()
		s.sessions = []domain.ChatSession{fresh}
		s.activeID = fresh.ID
		s.persistLocked(ctx)
		return nil
	}

	if s.activeID == sessionID {
		s.activeID = next[max(0, idx-1)].ID
	}
	s.sessions = next
	s.persistLocked(ctx)
	return nil
}

// Rename sets the session title to the trimmed newTitle
func (s *Store) Rename(ctx context.Context, sessionID, newTitle string) error {
	title := strings.TrimSpace(newTitle)
	if title == "" {
		return ErrEmptyTitle
	}

	return s.Mutate(ctx, sessionID, func(sess domain.ChatSession) domain.ChatSession {
		sess.Title = title
		return sess
	})
}

// Mutate replaces the session with fn applied to a copy of it
func (s *Store) Mutate(ctx context.Context, sessionID string, fn func(domain.ChatSession) domain.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mutateLocked(sessionID, fn) {
		return ErrSessionNotFound
	}
	s.persistLocked(ctx)
	return nil
}

// MutateActive applies fn to the active session. It reports false, and
// does nothing, when no session is active.
func (s *Store) MutateActive(ctx context.Context, fn func(domain.ChatSession) domain.ChatSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID == "" || !s.mutateLocked(s.activeID, fn) {
		return false
	}
	s.persistLocked(ctx)
	return true
}

func (s *Store) mutateLocked(sessionID string, fn func(domain.ChatSession) domain.ChatSession) bool {
	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return false
	}

	updated := fn(s.sessions[idx].Clone())
	updated.ID = sessionID

	next := make([]domain.ChatSession, len(s.sessions))
	copy(next, s.sessions)
	next[idx] = updated
	s.sessions = next
	return true
}

// Sessions returns a copy of the session list, newest first
func (s *Store) Sessions() []domain.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ChatSession, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	return out
}

// Get returns a copy of one session
func (s *Store) Get(sessionID string) (domain.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return domain.ChatSession{}, ErrSessionNotFound
	}
	return s.sessions[idx].Clone(), nil
}

// Active returns a copy of the active session
func (s *Store) Active() (domain.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(s.activeID)
	if idx < 0 {
		return domain.ChatSession{}, false
	}
	return s.sessions[idx].Clone(), true
}

// ActiveID returns the id of the active session, or "" before loading
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Loaded reports whether the store holds a user's session list
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// BeginProcessing marks sessionID as busy. It reports false if the session
// is unknown or already busy.
func (s *Store) BeginProcessing(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(sessionID) < 0 || s.processing[sessionID] {
		return false
	}
	s.processing[sessionID] = true
	return true
}

// EndProcessing clears the busy mark of sessionID
func (s *Store) EndProcessing(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processing, sessionID)
}

// IsProcessing reports whether sessionID is busy
func (s *Store) IsProcessing(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing[sessionID]
}

// Persist writes the session list under the user's key. An empty list
// removes the key. Nothing is written before the store is loaded.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(ctx)
}

// Restore loads the user's sessions. Absent, unreadable or empty data
// yields a single default session. The first session becomes active.
func (s *Store) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.readLocked(ctx)
	fallback := len(sessions) == 0
	if fallback {
		sessions = []domain.ChatSession{s.defaultSession()}
	}

	s.sessions = sessions
	s.activeID = sessions[0].ID
	s.loaded = true
	s.processing = make(map[string]bool)

	if fallback {
		return s.writeLocked(ctx)
	}
	return nil
}

// Clear drops in-memory state. The persisted list is kept.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = nil
	s.activeID = ""
	s.loaded = false
	s.processing = make(map[string]bool)
}

func (s *Store) readLocked(ctx context.Context) []domain.ChatSession {
	data, err := s.kv.Get(ctx, storage.SessionsKey(s.userID))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Str("user_id", s.userID).Msg("failed to read sessions")
		}
		return nil
	}

	var sessions []domain.ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		log.Warn().Err(err).Str("user_id", s.userID).Msg("discarding corrupt session data")
		return nil
	}

	valid := sessions[:0]
	for _, sess := range sessions {
		if sess.ID == "" {
			continue
		}
		if sess.Messages == nil {
			sess.Messages = []domain.Message{}
		}
		valid = append(valid, sess)
	}
	return valid
}

func (s *Store) writeLocked(ctx context.Context) error {
	if !s.loaded {
		return nil
	}

	key := storage.SessionsKey(s.userID)
	if len(s.sessions) == 0 {
		return s.kv.Delete(ctx, key)
	}

	data, err := json.Marshal(s.sessions)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, data)
}

func (s *Store) persistLocked(ctx context.Context) {
	if err := s.writeLocked(ctx); err != nil {
		log.Error().Err(err).Str("user_id", s.userID).Msg("failed to persist sessions")
	}
}

func (s *Store) indexLocked(sessionID string) int {
	if sessionID == "" {
		return -1
	}
	for i := range s.sessions {
		if s.sessions[i].ID == sessionID {
			return i
		}
	}
	return -1
}
