package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "withdrawal_debit_6a1f2c3d-0000-4000-8000-000000000001"
	value := []byte(`{"id":"01J8ZQ","entry_type":"salon_purse_withdrawal","amount":-4000}`)

	// Get before set => nil
	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result)

	err = cache.Set(ctx, key, value, 24*time.Hour)
	require.NoError(t, err)

	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result)
}

func TestIdempotencyCache_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "reversal_transfer.failed_6a1f2c3d-0000-4000-8000-000000000002"
	value := []byte(`{"entry_type":"salon_purse_withdrawal_reversal"}`)

	err := cache.Set(ctx, key, value, 1*time.Second)
	require.NoError(t, err)

	// Fast-forward time in miniredis
	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result, "expired key should return nil")
}

func TestIdempotencyCache_OverwriteKey(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "topup_ref_001"

	err := cache.Set(ctx, key, []byte("first"), 1*time.Hour)
	require.NoError(t, err)

	err = cache.Set(ctx, key, []byte("second"), 1*time.Hour)
	require.NoError(t, err)

	result, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), result)
}
