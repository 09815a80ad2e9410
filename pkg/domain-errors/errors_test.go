package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("direct code matches", func(t *testing.T) {
		err := New(CodeQuorumNotMet, "1 of 2 approvals")
		assert.True(t, HasCode(err, CodeQuorumNotMet))
		assert.False(t, HasCode(err, CodeGuardrailVetoed))
	})

	t.Run("inner code found through wrap", func(t *testing.T) {
		inner := New(CodeResourceUnavailable, "stock exhausted")
		outer := Wrap(inner, CodeInternal, "enact failed")
		assert.True(t, HasCode(outer, CodeResourceUnavailable))
		assert.True(t, HasCode(outer, CodeInternal))
	})

	t.Run("fmt wrapping preserved", func(t *testing.T) {
		err := fmt.Errorf("context: %w", New(CodeStillLocked, "locked"))
		assert.True(t, HasCode(err, CodeStillLocked))
	})

	t.Run("plain error has no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "stock exhausted", MessageOf(New(CodeResourceUnavailable, "stock exhausted")))
	assert.Equal(t, "internal error", MessageOf(errors.New("db down")))
}
