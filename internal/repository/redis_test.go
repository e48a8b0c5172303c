package repository

import (
	"context"
	"testing"
	"time"

	"ferrybook/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	locker := NewRedisLocker(client)
	ctx := context.Background()

	t.Run("AcquireAndRelease", func(t *testing.T) {
		token, ok, err := locker.Acquire(ctx, "sweep:expire", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotEmpty(t, token)
		stored, err := s.Get(lockKeyPrefix + "sweep:expire")
		require.NoError(t, err)
		assert.Equal(t, token, stored)

		_, ok, err = locker.Acquire(ctx, "sweep:expire", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, locker.Release(ctx, "sweep:expire", token))
		assert.False(t, s.Exists(lockKeyPrefix+"sweep:expire"))
	})

	t.Run("ReleaseWithForeignToken", func(t *testing.T) {
		token, ok, err := locker.Acquire(ctx, "sweep:sync", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, locker.Release(ctx, "sweep:sync", "someone-else"))
		assert.True(t, s.Exists(lockKeyPrefix+"sweep:sync"))

		require.NoError(t, locker.Release(ctx, "sweep:sync", token))
		assert.False(t, s.Exists(lockKeyPrefix+"sweep:sync"))
	})

	t.Run("LeaseExpires", func(t *testing.T) {
		_, ok, err := locker.Acquire(ctx, "sweep:ttl", time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		s.FastForward(2 * time.Second)

		_, ok, err = locker.Acquire(ctx, "sweep:ttl", time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})
}

func TestRedisLocker_Unreachable(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)
	s.Close()

	locker := NewRedisLocker(client)
	_, ok, err := locker.Acquire(context.Background(), "k", time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, Ping(context.Background(), client))
}
