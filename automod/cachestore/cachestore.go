package cachestore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Cache namespaces used by the engine.
const (
	NameContent     = "content"
	NameAccount     = "account"
	NameSuggestions = "suggestions"
)

type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}

// Fetches and decodes a cached value. Returns false on a miss.
func GetJSON[T any](ctx context.Context, cs CacheStore, name, key string) (*T, bool, error) {
	raw, err := cs.Get(ctx, name, key)
	if err != nil {
		return nil, false, err
	}
	if raw == "" {
		return nil, false, nil
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false, fmt.Errorf("decoding cached %s/%s: %w", name, key, err)
	}
	return &out, true, nil
}

func SetJSON(ctx context.Context, cs CacheStore, name, key string, val any) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return cs.Set(ctx, name, key, string(b))
}
