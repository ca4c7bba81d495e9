package setstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemSetStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	sets := NewMemSetStore()
	ok, err := sets.InSet(ctx, SetModerators, "mod1")
	assert.NoError(err)
	assert.False(ok)

	sets.Add(SetModerators, "mod1", "mod2")
	ok, err = sets.InSet(ctx, SetModerators, "mod1")
	assert.NoError(err)
	assert.True(ok)
	ok, err = sets.InSet(ctx, SetExemptAccounts, "mod1")
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(sets.LoadJSON(strings.NewReader(`{"moderators": ["mod3"], "exempt-accounts": ["city-hall"]}`)))
	for _, id := range []string{"mod1", "mod2", "mod3"} {
		ok, _ = sets.InSet(ctx, SetModerators, id)
		assert.True(ok, id)
	}
	ok, _ = sets.InSet(ctx, SetExemptAccounts, "city-hall")
	assert.True(ok)

	assert.Error(sets.LoadJSON(strings.NewReader(`["not", "an", "object"]`)))
}

func TestLoadFromFileJSON(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := filepath.Join(t.TempDir(), "sets.json")
	assert.NoError(os.WriteFile(p, []byte(`{"moderators": ["alice"]}`), 0o644))

	sets := NewMemSetStore()
	assert.NoError(sets.LoadFromFileJSON(p))
	ok, err := sets.InSet(ctx, SetModerators, "alice")
	assert.NoError(err)
	assert.True(ok)

	assert.Error(sets.LoadFromFileJSON(filepath.Join(t.TempDir(), "missing.json")))
}
