package errorx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := NotFound("variant_not_found", "product variant not found")
	wrapped := fmt.Errorf("add item: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindValidation))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(KindExternalTransient, "provider_unavailable", "payment provider unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "provider_unavailable")
	assert.Equal(t, "external_transient", err.Kind.String())

	e, ok := As(fmt.Errorf("ctx: %w", err))
	assert.True(t, ok)
	assert.Equal(t, "payment provider unavailable", e.Message)
}
