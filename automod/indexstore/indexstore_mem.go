package indexstore

import (
	"context"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"
)

type MemIndexStore struct {
	Data *xsync.MapOf[string, *xsync.MapOf[string, bool]]
}

var _ IndexStore = MemIndexStore{}

func NewMemIndexStore() MemIndexStore {
	return MemIndexStore{
		Data: xsync.NewMapOf[string, *xsync.MapOf[string, bool]](),
	}
}

func (s MemIndexStore) Members(ctx context.Context, index string) ([]string, error) {
	out := []string{}
	set, ok := s.Data.Load(index)
	if !ok {
		return out, nil
	}
	set.Range(func(id string, _ bool) bool {
		out = append(out, id)
		return true
	})
	slices.Sort(out)
	return out, nil
}

func (s MemIndexStore) Add(ctx context.Context, index string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	set, _ := s.Data.LoadOrCompute(index, func() *xsync.MapOf[string, bool] {
		return xsync.NewMapOf[string, bool]()
	})
	for _, id := range ids {
		set.Store(id, true)
	}
	return nil
}

func (s MemIndexStore) Remove(ctx context.Context, index string, ids ...string) error {
	set, ok := s.Data.Load(index)
	if !ok {
		return nil
	}
	for _, id := range ids {
		set.Delete(id)
	}
	return nil
}
