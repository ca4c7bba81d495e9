package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/civictrack/civictrack/automod/advisor"
	"github.com/civictrack/civictrack/automod/cachestore"
	"github.com/civictrack/civictrack/automod/countstore"
	"github.com/civictrack/civictrack/automod/indexstore"
	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/moderr"
	"github.com/civictrack/civictrack/automod/principal"
	"github.com/civictrack/civictrack/automod/setstore"
	"github.com/civictrack/civictrack/automod/standing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// the advisor output is cached as a single entry, purged on every account save and only filled if no account was saved while it was computed
const suggestionsCacheKey = "all"

// Content listings accepted by ListContent.
const (
	ListingVisible = "visible"
	ListingHidden  = indexstore.IndexHidden
	ListingPending = indexstore.IndexPending
	ListingRemoved = indexstore.IndexRemoved
)

var Listings = []string{ListingVisible, ListingHidden, ListingPending, ListingRemoved}

func (eng *Engine) GetModerationStatus(ctx context.Context, contentID string) (*moderation.Status, error) {
	ctx, span := tracer.Start(ctx, "GetModerationStatus", trace.WithAttributes(attribute.String("content.id", contentID)))
	defer span.End()

	cached, ok, err := cachestore.GetJSON[moderation.Status](ctx, eng.Cache, cachestore.NameContent, contentID)
	if err != nil {
		eng.Logger.Warn("content cache read failed", "content", contentID, "err", err)
	}
	if ok {
		cacheHitCount.WithLabelValues(cachestore.NameContent).Inc()
		return cached, nil
	}
	cacheMissCount.WithLabelValues(cachestore.NameContent).Inc()

	// writers purge under the same lock, so a fill can not race a purge
	unlock := eng.lock(contentKey(contentID))
	defer unlock()
	st, err := eng.Store.LoadContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if err := cachestore.SetJSON(ctx, eng.Cache, cachestore.NameContent, contentID, st); err != nil {
		eng.Logger.Warn("content cache write failed", "content", contentID, "err", err)
	}
	return st, nil
}

// Returns the account's current standing, lifting a lapsed suspension first.
func (eng *Engine) GetUserStanding(ctx context.Context, userID principal.ID) (*standing.Account, error) {
	ctx, span := tracer.Start(ctx, "GetUserStanding", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	cached, ok, err := cachestore.GetJSON[standing.Account](ctx, eng.Cache, cachestore.NameAccount, userID.String())
	if err != nil {
		eng.Logger.Warn("account cache read failed", "user", userID, "err", err)
	}
	if ok && !cached.SuspensionExpired(eng.Now()) {
		cacheHitCount.WithLabelValues(cachestore.NameAccount).Inc()
		return cached, nil
	}
	cacheMissCount.WithLabelValues(cachestore.NameAccount).Inc()

	ch, err := eng.updateAccount(ctx, userID, false, func(acct standing.Account) (standing.Account, []standing.Action, error) {
		// a save that follows purges this entry again
		if err := cachestore.SetJSON(ctx, eng.Cache, cachestore.NameAccount, userID.String(), acct); err != nil {
			eng.Logger.Warn("account cache write failed", "user", userID, "err", err)
		}
		return acct, nil, nil
	})
	if err != nil {
		return nil, err
	}
	eng.afterAccountChange(ctx, ch.acct, ch.actions)
	return &ch.acct, nil
}

// Standing actions for the account, oldest first.
func (eng *Engine) UserHistory(ctx context.Context, userID principal.ID) ([]standing.Action, error) {
	ctx, span := tracer.Start(ctx, "UserHistory", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	if _, err := eng.Store.LoadAccount(ctx, userID); err != nil {
		return nil, err
	}
	return eng.Store.AccountHistory(ctx, userID)
}

// Lists accounts, optionally restricted to one standing ("all" or empty for every account).
func (eng *Engine) ListAccounts(ctx context.Context, filter string) ([]standing.Account, error) {
	switch standing.Standing(filter) {
	case "", standing.FilterAll, standing.Active, standing.Warned, standing.Suspended, standing.Banned:
	default:
		return nil, moderr.InvalidArgument("unknown standing filter %q", filter)
	}
	all, err := eng.Store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	return standing.FilterByStanding(all, filter), nil
}

// Current intervention suggestions, most severe first. Exempt accounts are never suggested.
func (eng *Engine) ListSuggestions(ctx context.Context) ([]advisor.Suggestion, error) {
	ctx, span := tracer.Start(ctx, "ListSuggestions")
	defer span.End()
	done := eng.observe("suggestions")

	cached, ok, err := cachestore.GetJSON[[]advisor.Suggestion](ctx, eng.Cache, cachestore.NameSuggestions, suggestionsCacheKey)
	if err != nil {
		eng.Logger.Warn("suggestions cache read failed", "err", err)
	}
	if ok {
		cacheHitCount.WithLabelValues(cachestore.NameSuggestions).Inc()
		return *cached, done(nil)
	}
	cacheMissCount.WithLabelValues(cachestore.NameSuggestions).Inc()

	gen := eng.suggestionsGeneration()
	accounts, err := eng.Store.ListAccounts(ctx)
	if err != nil {
		return nil, done(err)
	}
	entries := make([]advisor.Entry, 0, len(accounts))
	for _, acct := range accounts {
		exempt, err := eng.Sets.InSet(ctx, setstore.SetExemptAccounts, acct.ID.String())
		if err != nil {
			return nil, done(fmt.Errorf("checking exempt accounts: %w", err))
		}
		if exempt {
			continue
		}
		history, err := eng.Store.AccountHistory(ctx, acct.ID)
		if err != nil {
			return nil, done(err)
		}
		entries = append(entries, advisor.Entry{Account: acct, History: history})
	}
	out := advisor.Suggestions(entries, eng.Now(), eng.Config.Advisor())
	span.SetAttributes(attribute.Int("suggestions", len(out)))

	eng.fillSuggestions(ctx, gen, out)
	return out, done(nil)
}

// Lists content in one of the Listings, ordered by content ID. Removed content only ever appears in the removed listing.
func (eng *Engine) ListContent(ctx context.Context, listing string) ([]moderation.Status, error) {
	ctx, span := tracer.Start(ctx, "ListContent", trace.WithAttributes(attribute.String("listing", listing)))
	defer span.End()

	if !slices.Contains(Listings, listing) {
		return nil, moderr.InvalidArgument("unknown content listing %q", listing)
	}
	index := listing
	if listing == ListingVisible {
		index = indexstore.IndexContent
	}
	ids, err := eng.Indexes.Members(ctx, index)
	if err != nil {
		return nil, err
	}
	all := make([]moderation.Status, 0, len(ids))
	for _, id := range ids {
		st, err := eng.Store.LoadContent(ctx, id)
		if errors.Is(err, moderr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		all = append(all, *st)
	}

	// indexes are synced on every save; filtering again covers a failed sync
	switch listing {
	case ListingVisible:
		return moderation.Visible(all), nil
	case ListingHidden:
		return moderation.Hidden(all), nil
	case ListingPending:
		return moderation.PendingReview(all), nil
	default:
		out := []moderation.Status{}
		for _, st := range all {
			if st.Removed {
				out = append(out, st)
			}
		}
		return out, nil
	}
}

type Stats struct {
	Accounts standing.Stats `json:"accounts"`
	// number of items in each content listing
	Content map[string]int `json:"content"`
	// all-time activity counters
	Activity map[string]int `json:"activity"`
}

func (eng *Engine) Stats(ctx context.Context) (*Stats, error) {
	ctx, span := tracer.Start(ctx, "Stats")
	defer span.End()

	accounts, err := eng.Store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := Stats{
		Accounts: standing.ComputeStats(accounts),
		Content:  map[string]int{},
		Activity: map[string]int{},
	}
	for _, idx := range []string{indexstore.IndexContent, indexstore.IndexHidden, indexstore.IndexPending, indexstore.IndexRemoved} {
		ids, err := eng.Indexes.Members(ctx, idx)
		if err != nil {
			return nil, err
		}
		out.Content[idx] = len(ids)
	}
	activity := []struct{ key, name, val string }{
		{countstore.CounterSubmissions, countstore.CounterSubmissions, countstore.All},
		{countstore.CounterFlags, countstore.CounterFlags, countstore.All},
		{"auto-actions/content", countstore.CounterAutoActions, "content"},
		{"auto-actions/account", countstore.CounterAutoActions, "account"},
	}
	for _, a := range activity {
		c, err := eng.Counters.GetCount(ctx, a.name, a.val, countstore.PeriodTotal)
		if err != nil {
			return nil, err
		}
		out.Activity[a.key] = c
	}
	return &out, nil
}

// Whether id is on the moderator allow-list.
func (eng *Engine) IsModerator(ctx context.Context, id principal.ID) (bool, error) {
	if !id.Valid() || id == principal.System || id == principal.Admin {
		return false, nil
	}
	return eng.Sets.InSet(ctx, setstore.SetModerators, id.String())
}
