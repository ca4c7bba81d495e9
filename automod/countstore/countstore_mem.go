package countstore

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type MemCountStore struct {
	Counts         *xsync.MapOf[string, int]
	DistinctCounts *xsync.MapOf[string, *xsync.MapOf[string, bool]]
	Clock          func() time.Time
}

var _ CountStore = (*MemCountStore)(nil)

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		Counts:         xsync.NewMapOf[string, int](),
		DistinctCounts: xsync.NewMapOf[string, *xsync.MapOf[string, bool]](),
		Clock:          time.Now,
	}
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	v, _ := s.Counts.Load(periodBucket(name, val, period, s.Clock()))
	return v, nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string) error {
	now := s.Clock()
	for _, p := range Periods {
		s.Counts.Compute(periodBucket(name, val, p, now), func(old int, loaded bool) (int, bool) {
			return old + 1, false
		})
	}
	return nil
}

func (s *MemCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	m, ok := s.DistinctCounts.Load(periodBucket(name, bucket, period, s.Clock()))
	if !ok {
		return 0, nil
	}
	return m.Size(), nil
}

func (s *MemCountStore) IncrementDistinct(ctx context.Context, name, bucket, val string) error {
	now := s.Clock()
	for _, p := range Periods {
		m, _ := s.DistinctCounts.LoadOrCompute(periodBucket(name, bucket, p, now), func() *xsync.MapOf[string, bool] {
			return xsync.NewMapOf[string, bool]()
		})
		m.Store(val, true)
	}
	return nil
}
