package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
)

func TestNewClient_Standalone_Success(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(&RedisConfig{Mode: "standalone", Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	client, err := NewClient(&RedisConfig{Mode: "standalone", Addr: "127.0.0.1:1"}, logging.NewNopLogger())
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.Nil(t, client)
}

func TestClient_Operations(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "foo", "bar", 0).Err())
	val, err := client.Get(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, "bar", val)

	keys, _, err := client.Scan(ctx, 0, "fo*", 10).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, keys)

	deleted, err := client.Del(ctx, "foo").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestClient_Close(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	assert.Equal(t, ErrClientClosed, client.Get(context.Background(), "foo").Err())
	assert.Equal(t, ErrClientClosed, client.Ping(context.Background()))
}

func TestCache_RoundTripAgainstServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	cache := NewRedisCache(client, logging.NewNopLogger(), WithPrefix("it:"))
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "umap:1", cachedCloud{EmbeddingID: "emb"}, 0))
	assert.True(t, mr.Exists("it:umap:1"))

	var got cachedCloud
	require.NoError(t, cache.Get(ctx, "umap:1", &got))
	assert.Equal(t, "emb", got.EmbeddingID)

	n, err := cache.DeleteByPrefix(ctx, "umap:")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCache_GetOrSetSharedLoadOutlivesCancelledCaller(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()
	cache := NewRedisCache(client, logging.NewNopLogger(), WithPrefix("it:"))

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	loader := func(ctx context.Context) (interface{}, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return cachedCloud{EmbeddingID: "emb"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		var dest cachedCloud
		_, err := cache.GetOrSet(firstCtx, "umap:1", &dest, time.Minute, loader)
		firstErr <- err
	}()
	<-started

	secondErr := make(chan error, 1)
	var second cachedCloud
	go func() {
		_, err := cache.GetOrSet(context.Background(), "umap:1", &second, time.Minute, loader)
		secondErr <- err
	}()
	// let the second caller join the in-flight load
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller kept waiting")
	}
	close(release)

	select {
	case err := <-secondErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not complete")
	}
	assert.Equal(t, "emb", second.EmbeddingID)
	assert.EqualValues(t, 1, calls.Load(), "load shared between callers")
	assert.True(t, mr.Exists("it:umap:1"))
}

func TestCache_GetOrSetLoadTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()
	cache := NewRedisCache(client, logging.NewNopLogger(), WithLoadTimeout(20*time.Millisecond))

	var dest cachedCloud
	_, err = cache.GetOrSet(context.Background(), "slow", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, mr.Exists("embedscope:slow"))
}
