package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type cachedThing struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func testCacheStores(t *testing.T) map[string]CacheStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]CacheStore{
		"mem":   NewMemCacheStore(10, time.Hour),
		"redis": NewRedisCacheStore(client, time.Hour),
	}
}

func TestCacheStoreBasics(t *testing.T) {
	ctx := context.Background()

	for name, cs := range testCacheStores(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			v, err := cs.Get(ctx, NameContent, "c1")
			assert.NoError(err)
			assert.Empty(v)

			assert.NoError(cs.Set(ctx, NameContent, "c1", "hello"))
			v, err = cs.Get(ctx, NameContent, "c1")
			assert.NoError(err)
			assert.Equal("hello", v)

			// namespaces are separate
			v, err = cs.Get(ctx, NameAccount, "c1")
			assert.NoError(err)
			assert.Empty(v)

			assert.NoError(cs.Purge(ctx, NameContent, "c1"))
			v, err = cs.Get(ctx, NameContent, "c1")
			assert.NoError(err)
			assert.Empty(v)

			// purging a missing key is fine
			assert.NoError(cs.Purge(ctx, NameContent, "nope"))
		})
	}
}

func TestCacheJSON(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cs := NewMemCacheStore(10, time.Hour)

	got, ok, err := GetJSON[cachedThing](ctx, cs, NameContent, "c1")
	assert.NoError(err)
	assert.False(ok)
	assert.Nil(got)

	assert.NoError(SetJSON(ctx, cs, NameContent, "c1", cachedThing{ID: "c1", Count: 3}))
	got, ok, err = GetJSON[cachedThing](ctx, cs, NameContent, "c1")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(&cachedThing{ID: "c1", Count: 3}, got)

	assert.NoError(cs.Set(ctx, NameContent, "bad", "{not json"))
	_, _, err = GetJSON[cachedThing](ctx, cs, NameContent, "bad")
	assert.Error(err)
}

func TestMemCacheExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cs := NewMemCacheStore(10, 10*time.Millisecond)

	assert.NoError(cs.Set(ctx, NameAccount, "u1", "x"))
	assert.Eventually(func() bool {
		v, _ := cs.Get(ctx, NameAccount, "u1")
		return v == ""
	}, time.Second, 5*time.Millisecond)
}
