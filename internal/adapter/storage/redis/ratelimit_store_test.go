package redis_test

import (
	"context"
	"testing"
	"time"

	"payflow/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitStore_Increment(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := redis.NewRateLimitStore(client)
	ctx := context.Background()

	t.Run("counts requests within a window", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			count, err := store.Increment(ctx, "merchant1:orders", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, want, count)
		}
	})

	t.Run("different keys are independent", func(t *testing.T) {
		count, err := store.Increment(ctx, "merchant2:orders", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("counter resets after window expires", func(t *testing.T) {
		count, err := store.Increment(ctx, "merchant3:auth", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		// Fast-forward past the window so the key expires
		mr.FastForward(61 * time.Second)

		count, err = store.Increment(ctx, "merchant3:auth", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
