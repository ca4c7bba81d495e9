package store

import (
	"context"
	"slices"
	"sort"

	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/moderr"
	"github.com/civictrack/civictrack/automod/principal"
	"github.com/civictrack/civictrack/automod/standing"

	"github.com/puzpuzpuz/xsync/v3"
)

// In-process store, for tests and single-node development. Values are copied on the way in and out.
type MemStore struct {
	content  *xsync.MapOf[string, moderation.Status]
	accounts *xsync.MapOf[principal.ID, standing.Account]
	history  *xsync.MapOf[principal.ID, []standing.Action]
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		content:  xsync.NewMapOf[string, moderation.Status](),
		accounts: xsync.NewMapOf[principal.ID, standing.Account](),
		history:  xsync.NewMapOf[principal.ID, []standing.Action](),
	}
}

func copyStatus(s moderation.Status) moderation.Status {
	s.FlaggedBy = slices.Clone(s.FlaggedBy)
	s.Actions = slices.Clone(s.Actions)
	return s
}

func (s *MemStore) LoadContent(ctx context.Context, contentID string) (*moderation.Status, error) {
	v, ok := s.content.Load(contentID)
	if !ok {
		return nil, moderr.NotFound("content %s", contentID)
	}
	out := copyStatus(v)
	return &out, nil
}

func (s *MemStore) SaveContent(ctx context.Context, st moderation.Status) error {
	s.content.Store(st.ContentID, copyStatus(st))
	return nil
}

func (s *MemStore) LoadAccount(ctx context.Context, userID principal.ID) (*standing.Account, error) {
	v, ok := s.accounts.Load(userID)
	if !ok {
		return nil, moderr.NotFound("account %s", userID)
	}
	return &v, nil
}

func (s *MemStore) SaveAccount(ctx context.Context, acct standing.Account, actions ...standing.Action) error {
	s.accounts.Store(acct.ID, acct)
	if len(actions) == 0 {
		return nil
	}
	s.history.Compute(acct.ID, func(old []standing.Action, loaded bool) ([]standing.Action, bool) {
		return append(slices.Clone(old), actions...), false
	})
	return nil
}

func (s *MemStore) AccountHistory(ctx context.Context, userID principal.ID) ([]standing.Action, error) {
	v, _ := s.history.Load(userID)
	if v == nil {
		return []standing.Action{}, nil
	}
	return slices.Clone(v), nil
}

func (s *MemStore) ListAccounts(ctx context.Context) ([]standing.Account, error) {
	out := []standing.Account{}
	s.accounts.Range(func(_ principal.ID, acct standing.Account) bool {
		out = append(out, acct)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
