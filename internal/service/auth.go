package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/security"
	"github.com/Rrens/flagr/internal/session"
	"github.com/Rrens/flagr/internal/storage"
)

// AuthService handles authentication operations. Accounts live in the
// key/value store under their email; signing in loads the user's sessions.
type AuthService struct {
	kv         storage.Store
	jwtManager *security.JWTManager
	sessions   *session.Manager
	clock      clockwork.Clock
}

// NewAuthService creates a new auth service
func NewAuthService(kv storage.Store, jwtManager *security.JWTManager, sessions *session.Manager, clock clockwork.Clock) *AuthService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AuthService{
		kv:         kv,
		jwtManager: jwtManager,
		sessions:   sessions,
		clock:      clock,
	}
}

// Register creates a new user account
func (s *AuthService) Register(ctx context.Context, input domain.UserCreate) (*domain.User, error) {
	email := normalizeEmail(input.Email)

	if _, err := s.loadAccount(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := domain.Account{
		User:         domain.NewUser(uuid.NewString(), email),
		PasswordHash: string(hashedPassword),
		CreatedAt:    s.clock.Now().UTC(),
	}

	data, err := json.Marshal(account)
	if err != nil {
		return nil, fmt.Errorf("failed to encode account: %w", err)
	}
	if err := s.kv.Set(ctx, storage.AccountKey(email), data); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().Str("user_id", account.User.ID).Msg("user registered")
	return &account.User, nil
}

// Login authenticates a user, loads their sessions and returns tokens
func (s *AuthService) Login(ctx context.Context, input domain.UserLogin) (*domain.TokenPair, error) {
	account, err := s.loadAccount(ctx, normalizeEmail(input.Email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	if _, err := s.sessions.Open(ctx, account.User); err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	return s.issue(account.User)
}

// Refresh exchanges a refresh token for a new token pair. It requires the
// user to still be signed in.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	userID, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	data, err := s.kv.Get(ctx, storage.UserKey(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}

	return s.issue(user)
}

// Authenticate resolves an access token to its user and makes sure the
// user's sessions are loaded. Tokens of a signed-out user are rejected.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (domain.User, error) {
	claims, err := s.jwtManager.ValidateAccessToken(accessToken)
	if err != nil {
		return domain.User{}, err
	}

	if _, err := s.sessions.Resume(ctx, claims.UserID); err != nil {
		return domain.User{}, err
	}
	return domain.NewUser(claims.UserID, claims.Email), nil
}

// Logout drops the user's loaded sessions
func (s *AuthService) Logout(ctx context.Context, userID string) {
	s.sessions.Close(ctx, userID)
	log.Info().Str("user_id", userID).Msg("user signed out")
}

func (s *AuthService) issue(user domain.User) (*domain.TokenPair, error) {
	accessToken, refreshToken, expiresIn, err := s.jwtManager.GenerateTokenPair(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		User:         user,
	}, nil
}

func (s *AuthService) loadAccount(ctx context.Context, email string) (*domain.Account, error) {
	data, err := s.kv.Get(ctx, storage.AccountKey(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	var account domain.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	return &account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
