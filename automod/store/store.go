// Durable state for content moderation statuses and account standing.
//
// The engine loads state, applies a pure transition, and saves the result while holding the per-item lock. Stores only need to make each individual save atomic.
package store

import (
	"context"

	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/principal"
	"github.com/civictrack/civictrack/automod/standing"
)

type Store interface {
	// returns an error wrapping moderr.ErrNotFound for unknown content
	LoadContent(ctx context.Context, contentID string) (*moderation.Status, error)
	// inserts or replaces the status, including any newly appended audit entries
	SaveContent(ctx context.Context, s moderation.Status) error

	// returns an error wrapping moderr.ErrNotFound for unknown accounts
	LoadAccount(ctx context.Context, userID principal.ID) (*standing.Account, error)
	// inserts or replaces the account, and appends actions to its history in the same transaction
	SaveAccount(ctx context.Context, acct standing.Account, actions ...standing.Action) error
	// standing actions for the account, oldest first
	AccountHistory(ctx context.Context, userID principal.ID) ([]standing.Action, error)
	ListAccounts(ctx context.Context) ([]standing.Account, error)
}
