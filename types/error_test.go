package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrTransport, "upstream failed").
		WithCause(root).
		WithRetryable(true).
		WithProvider("openai").
		WithPath("$.pizza")

	assert.Equal(t, ErrTransport, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, root))
	assert.Contains(t, err.Error(), "[TRANSPORT_ERROR] upstream failed: root")
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	inner := NewConfigurationError("bad schema")
	wrapped := fmt.Errorf("build guard: %w", inner)

	got, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, got)
	assert.True(t, IsConfigurationError(wrapped))
	assert.False(t, IsRetryable(wrapped))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.False(t, IsErrorCode(nil, ErrConfiguration))
}

func TestNewMissingMetadataError(t *testing.T) {
	t.Parallel()

	err := NewMissingMetadataError([]string{"required_key", "required_key2"})
	assert.Equal(t, "Missing required metadata keys: required_key, required_key2", err.Message)
	assert.Equal(t, ErrConfiguration, err.Code)
}
