package moderr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	assert := assert.New(t)

	err := InvalidArgument("reason is required for %s", "ban")
	assert.True(errors.Is(err, ErrInvalidArgument))
	assert.Equal("invalid argument: reason is required for ban", err.Error())
	assert.Equal("invalid_argument", Kind(err))

	wrapped := fmt.Errorf("flagging: %w", NotFound("content %s", "c1"))
	assert.True(errors.Is(wrapped, ErrNotFound))
	assert.Equal("not_found", Kind(wrapped))

	assert.Equal("invalid_transition", Kind(InvalidTransition("removed")))
	assert.Equal("conflict", Kind(Conflict("dup")))
	assert.Equal("internal", Kind(errors.New("disk on fire")))
	assert.Equal("", Kind(nil))
}
