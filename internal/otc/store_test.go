package otc

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ""), mr
}

func eachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("redis", func(t *testing.T) {
		store, _ := newRedisStore(t)
		fn(t, store)
	})
}

func pendingRecord(principal, code string, ttl time.Duration) *Record {
	return &Record{
		PrincipalID: principal,
		Code:        code,
		ExpiresAt:   time.Now().Add(ttl).Unix(),
	}
}

func TestConsumeSuccessBurnsChallenge(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		err := store.Save(ctx, "ch-1", pendingRecord("user-1", "123456", 5*time.Minute), 5*time.Minute)
		require.NoError(t, err)

		record, err := store.Consume(ctx, "ch-1", "123456", 3)
		require.NoError(t, err)
		assert.Equal(t, "user-1", record.PrincipalID)

		_, err = store.Consume(ctx, "ch-1", "123456", 3)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestConsumeMismatchCountsAttempts(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		err := store.Save(ctx, "ch-1", pendingRecord("user-1", "123456", 5*time.Minute), 5*time.Minute)
		require.NoError(t, err)

		_, err = store.Consume(ctx, "ch-1", "000000", 3)
		assert.ErrorIs(t, err, ErrMismatch)
		_, err = store.Consume(ctx, "ch-1", "000000", 3)
		assert.ErrorIs(t, err, ErrMismatch)
		_, err = store.Consume(ctx, "ch-1", "000000", 3)
		assert.ErrorIs(t, err, ErrMismatch)

		// Exhaustion burns the challenge; even the right code is gone.
		_, err = store.Consume(ctx, "ch-1", "123456", 3)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestConsumeUnknownChallenge(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		_, err := store.Consume(context.Background(), "missing", "123456", 3)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSaveReplacesPendingChallenge(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, store.Save(ctx, "ch-1", pendingRecord("user-1", "111111", 5*time.Minute), 5*time.Minute))
		require.NoError(t, store.Save(ctx, "ch-1", pendingRecord("user-1", "222222", 5*time.Minute), 5*time.Minute))

		_, err := store.Consume(ctx, "ch-1", "111111", 3)
		assert.ErrorIs(t, err, ErrMismatch)

		record, err := store.Consume(ctx, "ch-1", "222222", 3)
		require.NoError(t, err)
		assert.Equal(t, "user-1", record.PrincipalID)
	})
}

func TestSaveDropsPriorChallengeOfPrincipal(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, store.Save(ctx, "ch-1", pendingRecord("user-1", "111111", 5*time.Minute), 5*time.Minute))
		require.NoError(t, store.Save(ctx, "ch-2", pendingRecord("user-1", "222222", 5*time.Minute), 5*time.Minute))

		// Another principal's challenge is untouched.
		require.NoError(t, store.Save(ctx, "ch-3", pendingRecord("user-2", "333333", 5*time.Minute), 5*time.Minute))

		_, err := store.Consume(ctx, "ch-1", "111111", 3)
		assert.ErrorIs(t, err, ErrNotFound)

		record, err := store.Consume(ctx, "ch-2", "222222", 3)
		require.NoError(t, err)
		assert.Equal(t, "user-1", record.PrincipalID)

		record, err = store.Consume(ctx, "ch-3", "333333", 3)
		require.NoError(t, err)
		assert.Equal(t, "user-2", record.PrincipalID)
	})
}

func TestConsumeExpiredMemory(t *testing.T) {
	store := NewMemoryStore()

	ctx := context.Background()
	record := pendingRecord("user-1", "123456", -time.Minute)
	require.NoError(t, store.Save(ctx, "ch-1", record, time.Minute))

	_, err := store.Consume(ctx, "ch-1", "123456", 3)
	assert.ErrorIs(t, err, ErrExpired)

	// The expired record was reaped.
	_, err = store.Consume(ctx, "ch-1", "123456", 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsumeExpiredRedis(t *testing.T) {
	store, _ := newRedisStore(t)

	ctx := context.Background()
	record := pendingRecord("user-1", "123456", -time.Minute)
	// Logical expiry is in the past but the key survives on its grace TTL.
	require.NoError(t, store.Save(ctx, "ch-1", record, time.Minute))

	_, err := store.Consume(ctx, "ch-1", "123456", 3)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestRedisKeyEvictionReadsAsNotFound(t *testing.T) {
	store, mr := newRedisStore(t)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "ch-1", pendingRecord("user-1", "123456", time.Minute), time.Minute))

	mr.FastForward(time.Minute + expiryGrace + time.Second)

	_, err := store.Consume(ctx, "ch-1", "123456", 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, store.Save(ctx, "ch-1", pendingRecord("user-1", "123456", time.Minute), time.Minute))

		existed, err := store.Delete(ctx, "ch-1")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = store.Delete(ctx, "ch-1")
		require.NoError(t, err)
		assert.False(t, existed)
	})
}

func TestRecordRoundtrip(t *testing.T) {
	record := &Record{
		PrincipalID: "user-1",
		Code:        "123456",
		ExpiresAt:   time.Now().Add(time.Minute).Unix(),
		Attempts:    2,
	}
	encoded, err := encodeRecord(record)
	require.NoError(t, err)

	decoded, err := decodeRecord(encoded)
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}
