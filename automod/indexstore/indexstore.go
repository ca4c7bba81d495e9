// Named sets of content and account IDs, kept up to date by the engine so listings do not need to scan the state store.
//
// Includes an interface and implementations using redis and in-process memory.
package indexstore

import (
	"context"
	"slices"

	"github.com/civictrack/civictrack/automod/moderation"
)

const (
	// content currently hidden, and not removed
	IndexHidden = "hidden"
	// content awaiting moderator review
	IndexPending = "pending"
	// content removed by a moderator
	IndexRemoved = "removed"
	// every content item known to the engine
	IndexContent = "content"
	// every account known to the engine
	IndexAccounts = "accounts"
)

var ContentIndexes = []string{IndexHidden, IndexPending, IndexRemoved}

func IsContentIndex(name string) bool {
	return slices.Contains(ContentIndexes, name)
}

type IndexStore interface {
	// returns members in sorted order; an unknown index is empty
	Members(ctx context.Context, index string) ([]string, error)
	Add(ctx context.Context, index string, ids ...string) error
	// does not error if ids are not in the index
	Remove(ctx context.Context, index string, ids ...string) error
}

// Which content indexes a status belongs in.
func ContentMembership(s moderation.Status) map[string]bool {
	return map[string]bool{
		IndexHidden:  s.IsHidden && !s.Removed,
		IndexPending: s.ReviewStatus == moderation.ReviewPending && !s.Removed,
		IndexRemoved: s.Removed,
	}
}

// Brings every content index in line with the given status.
func SyncContent(ctx context.Context, idx IndexStore, s moderation.Status) error {
	for name, member := range ContentMembership(s) {
		var err error
		if member {
			err = idx.Add(ctx, name, s.ContentID)
		} else {
			err = idx.Remove(ctx, name, s.ContentID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
