package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/edgecore/core-runtime/internal/asset"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerAtMostOnce(t *testing.T) {
	l := NewMemoryLedger()
	id := asset.ID{Name: "m", Version: "1", Type: asset.TypeModel}
	ctx := context.Background()

	ok, err := l.Reserve(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Reserve(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "second reservation must fail while first is held")

	require.NoError(t, l.Release(ctx, id))
	ok, err = l.Reserve(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok, "release must free the claim")
}

func newTestRedisLedger(t *testing.T) *RedisLedger {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisLedger(client, "test-ledger", time.Minute)
}

func TestRedisLedgerAtMostOnce(t *testing.T) {
	l := newTestRedisLedger(t)
	ctx := context.Background()
	id := asset.ID{Name: "shared", Version: "1", Type: asset.TypeModel}

	ok, err := l.Reserve(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Reserve(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Confirm(ctx, id))
	ok, err = l.Reserve(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok, "confirm must release the claim for a later re-materialisation")
}
