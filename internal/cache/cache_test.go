package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
		mr.Close()
	})
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedUser) func() error {
		return func() error {
			calls++
			*dest = cachedUser{ID: 1, Name: "Anna"}
			return nil
		}
	}

	var first cachedUser
	require.NoError(t, Aside(ctx, UserKey(1), &first, UserTTL, fetch(&first)))
	assert.Equal(t, "Anna", first.Name)
	assert.True(t, mr.Exists("user:1"))
	assert.Equal(t, UserTTL, mr.TTL("user:1"))

	var second cachedUser
	require.NoError(t, Aside(ctx, UserKey(1), &second, UserTTL, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	InvalidateUser(ctx, 1)
	assert.False(t, mr.Exists("user:1"))
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := withMiniredis(t)
	boom := errors.New("boom")

	var u cachedUser
	err := Aside(context.Background(), UserKey(2), &u, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("user:2"))
}

func TestAside_WithoutRedis(t *testing.T) {
	SetClient(nil)

	calls := 0
	var u cachedUser
	for i := 0; i < 2; i++ {
		err := Aside(context.Background(), UserKey(3), &u, time.Minute, func() error {
			calls++
			u = cachedUser{ID: 3}
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "user:42", UserKey(42))
	assert.Equal(t, "blacklist:abc", BlacklistKey("abc"))
}
