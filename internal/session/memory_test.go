package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftloom/loomcore/pkg/models"
)

func TestMemoryStore_CreateGetUpdateDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := &models.SessionState{Title: "demo"}
	require.NoError(t, store.Create(ctx, s))
	require.NotEmpty(t, s.ID)

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Title)

	got.Title = "renamed"
	require.NoError(t, store.Update(ctx, got))

	reloaded, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", reloaded.Title)
	assert.Equal(t, got.CreatedAt, reloaded.CreatedAt)

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetReturnsIndependentCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := &models.SessionState{Title: "demo"}
	require.NoError(t, store.Create(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	got.Title = "mutated locally"

	again, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", again.Title)
}
