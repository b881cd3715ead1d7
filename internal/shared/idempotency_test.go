package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, ttl time.Duration) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewIdempotencyStore(client, ttl), mr
}

func TestIdempotencyStoreReserve(t *testing.T) {
	store, mr := newStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Reserve(ctx, "billing.charge", "req-1"))
	require.ErrorIs(t, store.Reserve(ctx, "billing.charge", "req-1"), ErrIdempotencyConflict)
	require.NoError(t, store.Reserve(ctx, "other.module", "req-1"))

	require.True(t, mr.Exists("idempotency:billing.charge:req-1"))
	require.Equal(t, time.Hour, mr.TTL("idempotency:billing.charge:req-1"))
}

func TestIdempotencyStoreRelease(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Reserve(ctx, "billing.charge", "req-2"))
	require.NoError(t, store.Release(ctx, "billing.charge", "req-2"))
	require.NoError(t, store.Reserve(ctx, "billing.charge", "req-2"))
}

func TestIdempotencyStoreExpiry(t *testing.T) {
	store, mr := newStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Reserve(ctx, "billing.charge", "req-3"))
	mr.FastForward(2 * time.Minute)
	require.NoError(t, store.Reserve(ctx, "billing.charge", "req-3"))
}

func TestIdempotencyStoreRejectsEmptyInput(t *testing.T) {
	store, _ := newStore(t, 0)
	ctx := context.Background()

	require.Error(t, store.Reserve(ctx, "billing.charge", ""))
	require.Error(t, store.Reserve(ctx, "", "req"))
	require.Error(t, store.Release(ctx, "billing.charge", ""))

	var nilStore *IdempotencyStore
	require.Error(t, nilStore.Reserve(ctx, "billing.charge", "req"))
	require.NoError(t, nilStore.Release(ctx, "billing.charge", "req"))
}
