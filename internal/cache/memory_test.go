package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestMemory_MissOnUnknownKey(t *testing.T) {
	m := NewMemory()

	_, err := m.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemory_ExpiryHonored(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Hour))

	now = now.Add(30 * time.Minute)
	m.SetClock(func() time.Time { return now })
	_, err := m.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	m.SetClock(func() time.Time { return now })
	_, err = m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemory_DeleteMissingKeyIsNoop(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Delete(context.Background(), "never-set"))
}

func TestMemory_SetOverwrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "k", []byte("2"), time.Minute))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("2"), got)
}

func TestKeyNamespacesAreDisjoint(t *testing.T) {
	require.Equal(t, "rate_limit:42:2024-03-15", RateLimitKey(42, "2024-03-15"))
	require.Equal(t, "user:42:chatrooms", ListingKey(42))
}
