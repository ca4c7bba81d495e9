package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/civictrack/civictrack/automod/cachestore"
	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/setstore"
	"github.com/civictrack/civictrack/automod/standing"
	"github.com/civictrack/civictrack/automod/store"
)

// start time of the fixture clock
var FixtureTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// Manually advanced time source.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Records notifications instead of sending them.
type CaptureNotifier struct {
	mu       sync.Mutex
	Content  []moderation.Action
	Standing []standing.Action
}

var _ Notifier = (*CaptureNotifier)(nil)

func (n *CaptureNotifier) SendContentAction(ctx context.Context, st moderation.Status, act moderation.Action) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Content = append(n.Content, act)
	return nil
}

func (n *CaptureNotifier) SendStandingAction(ctx context.Context, acct standing.Account, act standing.Action) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Standing = append(n.Standing, act)
	return nil
}

func (n *CaptureNotifier) Counts() (content, standing int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Content), len(n.Standing)
}

// In-memory engine with default config and a fake clock starting at FixtureTime. "mod1" is a moderator, and "exempt1" is exempt from suggestions.
func EngineTestFixture() (*Engine, *FakeClock, *CaptureNotifier) {
	eng, err := NewEngine(DefaultConfig(), store.NewMemStore())
	if err != nil {
		panic(err)
	}
	sets := setstore.NewMemSetStore()
	sets.Add(setstore.SetModerators, "mod1")
	sets.Add(setstore.SetExemptAccounts, "exempt1")
	eng.Sets = sets
	eng.Cache = cachestore.NewMemCacheStore(100, time.Hour)
	eng.Logger = slog.Default()

	clock := &FakeClock{now: FixtureTime}
	eng.SetClock(clock.Now)
	notifier := &CaptureNotifier{}
	eng.Notifier = notifier
	return eng, clock, notifier
}
