package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/civictrack/civictrack/automod/advisor"
	"github.com/civictrack/civictrack/automod/cachestore"
	"github.com/civictrack/civictrack/automod/countstore"
	"github.com/civictrack/civictrack/automod/indexstore"
	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/moderr"
	"github.com/civictrack/civictrack/automod/principal"
	"github.com/civictrack/civictrack/automod/setstore"
	"github.com/civictrack/civictrack/automod/standing"
	"github.com/civictrack/civictrack/automod/store"

	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("civicmod/engine")

// Runtime around the pure moderation core: serializes transitions per content item and per account, persists state and audit entries, and fans out counters, indexes, cache purges, metrics and notifications.
//
// Use NewEngine; several fields must be non-nil. Store-level fields may be swapped for redis or database backed implementations before first use.
type Engine struct {
	Logger   *slog.Logger
	Store    store.Store
	Counters countstore.CountStore
	Sets     setstore.SetStore
	Cache    cachestore.CacheStore
	Indexes  indexstore.IndexStore
	// optional
	Notifier Notifier

	Config   Config
	Content  *moderation.Machine
	Accounts *standing.Lifecycle

	clock func() time.Time
	locks *xsync.MapOf[string, *sync.Mutex]

	// guards suggestionsGen together with the suggestions cache entry
	suggestionsMu  sync.Mutex
	suggestionsGen uint64
}

func NewEngine(cfg Config, st store.Store) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	eng := &Engine{
		Logger:   slog.Default().With("system", "engine"),
		Store:    st,
		Counters: countstore.NewMemCountStore(),
		Sets:     setstore.NewMemSetStore(),
		Cache:    cachestore.NewMemCacheStore(10_000, 30*time.Minute),
		Indexes:  indexstore.NewMemIndexStore(),
		Config:   cfg,
		Content:  moderation.NewMachine(cfg.Moderation()),
		Accounts: standing.NewLifecycle(cfg.Standing()),
		locks:    xsync.NewMapOf[string, *sync.Mutex](),
	}
	eng.SetClock(func() time.Time { return time.Now().UTC() })
	return eng, nil
}

// Replaces the time source for the engine and both state machines.
func (eng *Engine) SetClock(clock func() time.Time) {
	eng.clock = clock
	eng.Content.Clock = clock
	eng.Accounts.Clock = clock
}

func (eng *Engine) Now() time.Time {
	return eng.clock()
}

// Takes the exclusive lock for key and returns the matching unlock. Locks are never evicted, so the map grows with the number of distinct items touched.
func (eng *Engine) lock(key string) func() {
	mu, _ := eng.locks.LoadOrCompute(key, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	mu.Lock()
	return mu.Unlock
}

func contentKey(contentID string) string {
	return "content/" + contentID
}

func accountKey(userID principal.ID) string {
	return "acct/" + userID.String()
}

// Content as handed over by the submission form.
type Submission struct {
	ContentID   string       `json:"contentId" validate:"required,max=256"`
	Title       string       `json:"title" validate:"max=500"`
	Description string       `json:"description" validate:"max=20000"`
	SubmitterID principal.ID `json:"submitterId" validate:"required,max=256"`
}

func (s Submission) Validate() error {
	if err := validate.Struct(s); err != nil {
		return moderr.InvalidArgument("submission: %s", err)
	}
	return nil
}

// Result of a content transition: the status before and after.
type contentChange struct {
	prev    *moderation.Status
	next    moderation.Status
	changed bool
}

// entries appended by the transition
func (c contentChange) newActions() []moderation.Action {
	n := 0
	if c.prev != nil {
		n = len(c.prev.Actions)
	}
	return c.next.Actions[n:]
}

// Runs a transition on one content item under its lock: load, transition, save, then sync indexes and purge the cache while the lock is still held.
//
// fn receives nil for unknown content; returning the input unchanged (same number of actions) skips the save.
func (eng *Engine) updateContent(ctx context.Context, contentID string, fn func(cur *moderation.Status) (moderation.Status, error)) (contentChange, error) {
	unlock := eng.lock(contentKey(contentID))
	defer unlock()

	cur, err := eng.Store.LoadContent(ctx, contentID)
	if err != nil && !errors.Is(err, moderr.ErrNotFound) {
		return contentChange{}, err
	}
	next, err := fn(cur)
	if err != nil {
		return contentChange{}, err
	}
	ch := contentChange{prev: cur, next: next}
	if cur != nil && len(cur.Actions) == len(next.Actions) {
		return ch, nil
	}
	ch.changed = true
	if err := eng.Store.SaveContent(ctx, next); err != nil {
		return contentChange{}, err
	}
	if cur == nil {
		if err := eng.Indexes.Add(ctx, indexstore.IndexContent, contentID); err != nil {
			eng.Logger.Error("failed to index content", "content", contentID, "err", err)
		}
	}
	if err := indexstore.SyncContent(ctx, eng.Indexes, next); err != nil {
		eng.Logger.Error("failed to sync content indexes", "content", contentID, "err", err)
	}
	if err := eng.Cache.Purge(ctx, cachestore.NameContent, contentID); err != nil {
		eng.Logger.Error("failed to purge content cache", "content", contentID, "err", err)
	}
	return ch, nil
}

// Result of an account transition.
type accountChange struct {
	acct    standing.Account
	actions []standing.Action
	created bool
}

// Runs a transition on one account under its lock. The account's lapsed suspension, if any, is lifted before fn runs, and that expiry is saved along with whatever fn returns.
//
// If create is set, unknown accounts are created unverified; otherwise they are an ErrNotFound.
func (eng *Engine) updateAccount(ctx context.Context, userID principal.ID, create bool, fn func(acct standing.Account) (standing.Account, []standing.Action, error)) (accountChange, error) {
	if !userID.Valid() {
		return accountChange{}, moderr.InvalidArgument("user ID is required")
	}
	unlock := eng.lock(accountKey(userID))
	defer unlock()

	var ch accountChange
	cur, err := eng.Store.LoadAccount(ctx, userID)
	switch {
	case err == nil:
		ch.acct = *cur
	case errors.Is(err, moderr.ErrNotFound) && create:
		ch.acct, err = eng.Accounts.NewAccount(userID, standing.Unverified)
		if err != nil {
			return accountChange{}, err
		}
		ch.created = true
	default:
		return accountChange{}, err
	}

	acct, expired, _ := eng.Accounts.CheckExpiry(ch.acct)
	if expired != nil {
		ch.actions = append(ch.actions, *expired)
	}
	next, more, err := fn(acct)
	if err != nil {
		if len(ch.actions) > 0 {
			// the lapsed suspension is lifted regardless
			if serr := eng.saveAccount(ctx, acct, ch.actions); serr != nil {
				eng.Logger.Error("failed to save suspension expiry", "user", userID, "err", serr)
			}
		}
		return accountChange{}, err
	}
	ch.actions = append(ch.actions, more...)
	changed := ch.created || len(ch.actions) > 0 || next != ch.acct
	ch.acct = next
	if !changed {
		return ch, nil
	}
	if err := eng.saveAccount(ctx, ch.acct, ch.actions); err != nil {
		return accountChange{}, err
	}
	if ch.created {
		if err := eng.Indexes.Add(ctx, indexstore.IndexAccounts, userID.String()); err != nil {
			eng.Logger.Error("failed to index account", "user", userID, "err", err)
		}
	}
	return ch, nil
}

func (eng *Engine) saveAccount(ctx context.Context, acct standing.Account, actions []standing.Action) error {
	if err := eng.Store.SaveAccount(ctx, acct, actions...); err != nil {
		return err
	}
	if err := eng.Cache.Purge(ctx, cachestore.NameAccount, acct.ID.String()); err != nil {
		eng.Logger.Error("failed to purge account cache", "user", acct.ID, "err", err)
	}
	eng.invalidateSuggestions(ctx)
	for _, act := range actions {
		actor := "moderator"
		if act.ModeratorID == principal.System {
			actor = "system"
		}
		standingActionCount.WithLabelValues(string(act.Kind), actor).Inc()
	}
	return nil
}

// Marks any suggestions computed so far as stale and drops the cached copy.
func (eng *Engine) invalidateSuggestions(ctx context.Context) {
	eng.suggestionsMu.Lock()
	defer eng.suggestionsMu.Unlock()
	eng.suggestionsGen++
	if err := eng.Cache.Purge(ctx, cachestore.NameSuggestions, suggestionsCacheKey); err != nil {
		eng.Logger.Error("failed to purge suggestions cache", "err", err)
	}
}

func (eng *Engine) suggestionsGeneration() uint64 {
	eng.suggestionsMu.Lock()
	defer eng.suggestionsMu.Unlock()
	return eng.suggestionsGen
}

// Caches suggestions computed at generation gen, unless an account was saved since.
func (eng *Engine) fillSuggestions(ctx context.Context, gen uint64, out []advisor.Suggestion) {
	eng.suggestionsMu.Lock()
	defer eng.suggestionsMu.Unlock()
	if eng.suggestionsGen != gen {
		return
	}
	if err := cachestore.SetJSON(ctx, eng.Cache, cachestore.NameSuggestions, suggestionsCacheKey, out); err != nil {
		eng.Logger.Warn("suggestions cache write failed", "err", err)
	}
}

func actorType(id principal.ID) string {
	switch id {
	case principal.System:
		return "system"
	case principal.Admin:
		return "admin"
	default:
		return "user"
	}
}
