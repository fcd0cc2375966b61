package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/security"
	"github.com/Rrens/flagr/internal/session"
	"github.com/Rrens/flagr/internal/storage"
)

func newAuthService(t *testing.T) (*AuthService, *fixture) {
	t.Helper()
	f := newFixture(t)
	jwtManager := security.NewJWTManager("test-secret-key-32-chars-long!!", 15*time.Minute, time.Hour)
	return NewAuthService(f.kv, jwtManager, f.sessions, f.clock), f
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc, f := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, domain.UserCreate{Email: " Jane.Doe@Example.com ", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "jane.doe@example.com", user.Email)
	assert.Equal(t, "jane.doe", user.Username)
	assert.Contains(t, user.AvatarURL, "bottts-neutral")

	_, err = svc.Register(ctx, domain.UserCreate{Email: "jane.doe@example.com", Password: "another one"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	tokens, err := svc.Login(ctx, domain.UserLogin{Email: "JANE.DOE@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, int64(900), tokens.ExpiresIn)
	assert.Equal(t, user.ID, tokens.User.ID)

	st, ok := f.sessions.Lookup(user.ID)
	require.True(t, ok, "login should load the user's sessions")
	assert.Len(t, st.Sessions(), 1)

	_, err = f.kv.Get(ctx, storage.UserKey(user.ID))
	assert.NoError(t, err)
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.UserCreate{Email: "jane@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, domain.UserLogin{Email: "jane@example.com", Password: "wrong password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, domain.UserLogin{Email: "nobody@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthService_Authenticate(t *testing.T) {
	svc, f := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.UserCreate{Email: "jane@example.com", Password: "correct horse"})
	require.NoError(t, err)
	tokens, err := svc.Login(ctx, domain.UserLogin{Email: "jane@example.com", Password: "correct horse"})
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, tokens.User.ID, user.ID)
	assert.Equal(t, "jane", user.Username)

	_, err = svc.Authenticate(ctx, "not-a-token")
	assert.Error(t, err)

	t.Run("rejects tokens after logout", func(t *testing.T) {
		svc.Logout(ctx, tokens.User.ID)

		_, err := svc.Authenticate(ctx, tokens.AccessToken)
		assert.ErrorIs(t, err, session.ErrSignedOut)
		_, ok := f.sessions.Lookup(tokens.User.ID)
		assert.False(t, ok)

		_, err = svc.Refresh(ctx, tokens.RefreshToken)
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("persisted sessions survive logout", func(t *testing.T) {
		relogged, err := svc.Login(ctx, domain.UserLogin{Email: "jane@example.com", Password: "correct horse"})
		require.NoError(t, err)
		st, ok := f.sessions.Lookup(relogged.User.ID)
		require.True(t, ok)
		created := st.Create(ctx)

		svc.Logout(ctx, relogged.User.ID)
		_, err = svc.Login(ctx, domain.UserLogin{Email: "jane@example.com", Password: "correct horse"})
		require.NoError(t, err)
		st, ok = f.sessions.Lookup(relogged.User.ID)
		require.True(t, ok)
		assert.Equal(t, created.ID, st.ActiveID())
	})
}

func TestAuthService_Refresh(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.UserCreate{Email: "jane@example.com", Password: "correct horse"})
	require.NoError(t, err)
	tokens, err := svc.Login(ctx, domain.UserLogin{Email: "jane@example.com", Password: "correct horse"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, tokens.User.ID, refreshed.User.ID)
	assert.Equal(t, "jane@example.com", refreshed.User.Email)

	_, err = svc.Refresh(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	svc.Logout(ctx, tokens.User.ID)
	_, err = svc.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
