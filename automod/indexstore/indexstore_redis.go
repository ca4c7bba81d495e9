package indexstore

import (
	"context"
	"slices"

	"github.com/redis/go-redis/v9"
)

var redisIndexPrefix string = "index/"

type RedisIndexStore struct {
	Client *redis.Client
}

var _ IndexStore = (*RedisIndexStore)(nil)

func NewRedisIndexStore(client *redis.Client) *RedisIndexStore {
	return &RedisIndexStore{Client: client}
}

func (s *RedisIndexStore) Members(ctx context.Context, index string) ([]string, error) {
	l, err := s.Client.SMembers(ctx, redisIndexPrefix+index).Result()
	if err == redis.Nil {
		return []string{}, nil
	} else if err != nil {
		return nil, err
	}
	slices.Sort(l)
	return l, nil
}

func (s *RedisIndexStore) Add(ctx context.Context, index string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.Client.SAdd(ctx, redisIndexPrefix+index, toAny(ids)...).Err()
}

func (s *RedisIndexStore) Remove(ctx context.Context, index string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.Client.SRem(ctx, redisIndexPrefix+index, toAny(ids)...).Err()
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
