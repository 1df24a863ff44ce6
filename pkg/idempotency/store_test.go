package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ClaimOnce(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	claimed, err := store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = store.Claim(ctx, "other", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestMemoryStore_ExpiredKeyCanBeClaimedAgain(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	claimed, err := store.Claim(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	current = current.Add(time.Minute)

	claimed, err = store.Claim(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Len(t, store.keys, 1)
}

func TestMemoryStore_ReleasedKeyCanBeClaimedAgain(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	claimed, err := store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, store.Release(ctx, "k"))
	require.NoError(t, store.Release(ctx, "never-claimed"))

	claimed, err = store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}
