// Static named sets of principal IDs, such as the moderator allow-list and accounts exempt from automated suggestions.
package setstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const (
	// principals allowed to act as moderators
	SetModerators = "moderators"
	// accounts never included in intervention suggestions
	SetExemptAccounts = "exempt-accounts"
)

type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
}

// Sets are loaded once at startup and read-only afterwards.
type MemSetStore struct {
	Sets map[string]map[string]bool
}

var _ SetStore = MemSetStore{}

func NewMemSetStore() MemSetStore {
	return MemSetStore{
		Sets: make(map[string]map[string]bool),
	}
}

func (s MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	set, ok := s.Sets[name]
	if !ok {
		// an unknown set has no members
		return false, nil
	}
	return set[val], nil
}

func (s MemSetStore) Add(name string, vals ...string) {
	set, ok := s.Sets[name]
	if !ok {
		set = make(map[string]bool, len(vals))
		s.Sets[name] = set
	}
	for _, v := range vals {
		set[v] = true
	}
}

// Merges sets from a JSON object of set name to member list.
func (s MemSetStore) LoadJSON(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return fmt.Errorf("parsing set JSON: %w", err)
	}
	for name, l := range sets {
		s.Add(name, l...)
	}
	return nil
}

func (s MemSetStore) LoadFromFileJSON(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return s.LoadJSON(f)
}
