package countstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func testCountStores(t *testing.T) map[string]CountStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]CountStore{
		"mem":   NewMemCountStore(),
		"redis": NewRedisCountStore(client),
	}
}

func TestCountStoreBasics(t *testing.T) {
	ctx := context.Background()

	for name, cs := range testCountStores(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			c, err := cs.GetCount(ctx, CounterFlags, "user1", PeriodTotal)
			assert.NoError(err)
			assert.Equal(0, c)
			assert.NoError(cs.Increment(ctx, CounterFlags, "user1"))
			assert.NoError(cs.Increment(ctx, CounterFlags, "user1"))

			for _, period := range Periods {
				c, err = cs.GetCount(ctx, CounterFlags, "user1", period)
				assert.NoError(err)
				assert.Equal(2, c)
			}
			c, err = cs.GetCount(ctx, CounterFlags, "user2", PeriodTotal)
			assert.NoError(err)
			assert.Equal(0, c)

			c, err = cs.GetCountDistinct(ctx, CounterFlaggedContent, "submitter", PeriodTotal)
			assert.NoError(err)
			assert.Equal(0, c)
			for range 3 {
				assert.NoError(cs.IncrementDistinct(ctx, CounterFlaggedContent, "submitter", "c1"))
			}
			c, err = cs.GetCountDistinct(ctx, CounterFlaggedContent, "submitter", PeriodTotal)
			assert.NoError(err)
			assert.Equal(1, c)

			assert.NoError(cs.IncrementDistinct(ctx, CounterFlaggedContent, "submitter", "c2"))
			assert.NoError(cs.IncrementDistinct(ctx, CounterFlaggedContent, "submitter", "c3"))
			for _, period := range Periods {
				c, err = cs.GetCountDistinct(ctx, CounterFlaggedContent, "submitter", period)
				assert.NoError(err)
				assert.Equal(3, c)
			}
		})
	}
}

func TestMemCountStorePeriods(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	cs := NewMemCountStore()
	cs.Clock = func() time.Time { return now }

	assert.NoError(cs.Increment(ctx, CounterSubmissions, All))
	now = now.Add(time.Hour)
	assert.NoError(cs.Increment(ctx, CounterSubmissions, All))

	c, err := cs.GetCount(ctx, CounterSubmissions, All, PeriodHour)
	assert.NoError(err)
	assert.Equal(1, c)
	c, err = cs.GetCount(ctx, CounterSubmissions, All, PeriodDay)
	assert.NoError(err)
	assert.Equal(2, c)

	now = now.Add(24 * time.Hour)
	c, err = cs.GetCount(ctx, CounterSubmissions, All, PeriodDay)
	assert.NoError(err)
	assert.Equal(0, c)
	c, err = cs.GetCount(ctx, CounterSubmissions, All, PeriodTotal)
	assert.NoError(err)
	assert.Equal(2, c)
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	// writers for two values, interleaved with readers; run with -race
	var wg sync.WaitGroup
	fnInc := func(name, val string, times int) {
		defer wg.Done()
		for i := 0; i < times; i++ {
			assert.NoError(cs.Increment(ctx, name, val))
			assert.NoError(cs.IncrementDistinct(ctx, name, name, val))
			time.Sleep(time.Nanosecond)
		}
	}
	fnRead := func(name, val string, times int) {
		defer wg.Done()
		for i := 0; i < times; i++ {
			_, err := cs.GetCount(ctx, name, val, PeriodTotal)
			assert.NoError(err)
			time.Sleep(time.Nanosecond)
		}
	}
	wg.Add(6)
	go fnInc("test1", "val1", 10)
	go fnInc("test1", "val1", 10)
	go fnRead("test1", "val1", 10)
	go fnInc("test2", "val2", 6)
	go fnInc("test2", "val2", 6)
	go fnRead("test2", "val2", 6)
	wg.Wait()

	c, err := cs.GetCount(ctx, "test1", "val1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(20, c)
	c, err = cs.GetCount(ctx, "test2", "val2", PeriodTotal)
	assert.NoError(err)
	assert.Equal(12, c)

	c, err = cs.GetCountDistinct(ctx, "test1", "test1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c)
	c, err = cs.GetCountDistinct(ctx, "test2", "test2", PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c)
}
