//go:build integration

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := redis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisClient(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	c, err := NewRedisClient(RedisConfig{Addr: addr, Prefix: "test:"})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, PageKey("abc", 1, 1), []byte("one"), time.Minute))
	require.NoError(t, c.Set(ctx, PageKey("abc", 1, 2), []byte("two"), time.Minute))
	require.NoError(t, c.Set(ctx, PageKey("def", 1, 1), []byte("other"), time.Minute))

	got, err := c.Get(ctx, PageKey("abc", 1, 2))
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	require.NoError(t, c.DeleteByPrefix(ctx, "page:abc:"))
	_, err = c.Get(ctx, PageKey("abc", 1, 1))
	assert.ErrorIs(t, err, ErrCacheMiss)
	got, err = c.Get(ctx, PageKey("def", 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []byte("other"), got)

	require.NoError(t, c.Delete(ctx, PageKey("def", 1, 1)))
	_, err = c.Get(ctx, PageKey("def", 1, 1))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisClient_Expiry(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	c, err := NewRedisClient(RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "short", []byte("x"), 50*time.Millisecond))
	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "short")
		return err == ErrCacheMiss
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRedisClient_PublishSubscribe(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	c, err := NewRedisClient(RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer c.Close()

	msgs, unsubscribe, err := c.Subscribe(ctx, "document.uploaded")
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, c.Publish(ctx, "document.uploaded", map[string]string{"reference": "a.pdf"}))

	select {
	case raw := <-msgs:
		var got map[string]string
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "a.pdf", got["reference"])
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}
