package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/flagr/internal/repository/memory"
	"github.com/Rrens/flagr/internal/storage"
)

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	_, err := s.Get(ctx, "sessions:u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "sessions:u1", []byte(`[]`)))
	got, err := s.Get(ctx, "sessions:u1")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	require.NoError(t, s.Delete(ctx, "sessions:u1"))
	require.NoError(t, s.Delete(ctx, "sessions:u1"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	buf := []byte("true")
	require.NoError(t, s.Set(ctx, "sidebarState:u1", buf))
	buf[0] = 'X'

	got, err := s.Get(ctx, "sidebarState:u1")
	require.NoError(t, err)
	assert.Equal(t, "true", string(got))

	got[0] = 'Y'
	again, _ := s.Get(ctx, "sidebarState:u1")
	assert.Equal(t, "true", string(again))
}
