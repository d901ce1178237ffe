package immerr

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	id := uuid.New()
	err := NewAssetNotFound(AssetKindAgent, id)

	assert.True(t, IsNotFound(err, AssetKindAgent))
	assert.True(t, IsNotFound(err, ""))
	assert.False(t, IsNotFound(err, AssetKindConversation))
	assert.False(t, IsNotFound(errors.New("boring"), ""))
}

func TestLLMErrorUnwrap(t *testing.T) {
	cause := errors.New("rate limited")
	err := NewLLMError(LLMErrorTransient, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "transient")
}

func TestToolExecutionErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewToolExecutionError("clock", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "clock")
}
