package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/repository/memory"
	"github.com/Rrens/flagr/internal/session"
	"github.com/Rrens/flagr/internal/storage"
)

func TestManager_OpenClose(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewStore()
	m := session.NewManager(kv)
	user := domain.NewUser("user-1", "jane@flagr.ai")

	st, err := m.Open(ctx, user)
	require.NoError(t, err)
	assert.True(t, st.Loaded())
	require.NoError(t, st.Rename(ctx, st.ActiveID(), "Kept"))

	again, err := m.Open(ctx, user)
	require.NoError(t, err)
	assert.Same(t, st, again)

	_, err = kv.Get(ctx, storage.UserKey("user-1"))
	require.NoError(t, err)

	m.Close(ctx, "user-1")
	assert.False(t, st.Loaded())
	_, ok := m.Lookup("user-1")
	assert.False(t, ok)
	assert.Equal(t, 0, m.LoadedUsers())

	_, err = kv.Get(ctx, storage.UserKey("user-1"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = kv.Get(ctx, storage.SessionsKey("user-1"))
	assert.NoError(t, err, "session list survives logout")

	reopened, err := m.Open(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Kept", reopened.Sessions()[0].Title)
}

func TestManager_OpenRequiresID(t *testing.T) {
	m := session.NewManager(memory.NewStore())
	_, err := m.Open(context.Background(), domain.User{})
	assert.Error(t, err)
}

func TestManager_Resume(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewStore()
	m := session.NewManager(kv)
	user := domain.NewUser("user-1", "jane@flagr.ai")

	_, err := m.Resume(ctx, "user-1")
	assert.ErrorIs(t, err, session.ErrSignedOut, "never signed in")

	st, err := m.Open(ctx, user)
	require.NoError(t, err)
	require.NoError(t, st.Rename(ctx, st.ActiveID(), "Kept"))

	same, err := m.Resume(ctx, "user-1")
	require.NoError(t, err)
	assert.Same(t, st, same)

	t.Run("restores after a restart", func(t *testing.T) {
		fresh := session.NewManager(kv)
		restored, err := fresh.Resume(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "Kept", restored.Sessions()[0].Title)
	})

	m.Close(ctx, "user-1")
	_, err = m.Resume(ctx, "user-1")
	assert.ErrorIs(t, err, session.ErrSignedOut)
	_, ok := m.Lookup("user-1")
	assert.False(t, ok)
	_, err = kv.Get(ctx, storage.UserKey("user-1"))
	assert.ErrorIs(t, err, storage.ErrNotFound, "resume must not recreate the profile")
}
