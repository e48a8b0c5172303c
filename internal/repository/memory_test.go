package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	t.Run("Exclusive", func(t *testing.T) {
		token, ok, err := locker.Acquire(ctx, "a", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		_, ok, _ = locker.Acquire(ctx, "a", time.Minute)
		assert.False(t, ok)

		_, ok, _ = locker.Acquire(ctx, "b", time.Minute)
		assert.True(t, ok, "other keys are independent")

		require.NoError(t, locker.Release(ctx, "a", "wrong"))
		_, ok, _ = locker.Acquire(ctx, "a", time.Minute)
		assert.False(t, ok)

		require.NoError(t, locker.Release(ctx, "a", token))
		_, ok, _ = locker.Acquire(ctx, "a", time.Minute)
		assert.True(t, ok)
	})

	t.Run("Expiry", func(t *testing.T) {
		now := time.Now()
		locker.now = func() time.Time { return now }

		_, ok, _ := locker.Acquire(ctx, "ttl", time.Second)
		require.True(t, ok)

		now = now.Add(2 * time.Second)
		_, ok, _ = locker.Acquire(ctx, "ttl", time.Second)
		assert.True(t, ok)
	})

	t.Run("Concurrent", func(t *testing.T) {
		l := NewMemoryLocker()
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok, _ := l.Acquire(ctx, "race", time.Minute); ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}
