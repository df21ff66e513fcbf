package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(KindNetwork, "failed to fetch tile", cause)

	require.Error(t, err)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "NETWORK")
	assert.Contains(t, err.Error(), "dial tcp")
}

func TestIsKindMatchesByKindOnly(t *testing.T) {
	err := Wrap(KindRateLimit, "429 from provider", errors.New("boom"))
	assert.True(t, errors.Is(err, New(KindRateLimit, "")))
	assert.False(t, errors.Is(err, New(KindTimeout, "")))
}

func TestOfNonAppError(t *testing.T) {
	assert.Equal(t, KindUnknown, Of(errors.New("plain error")))
	assert.Equal(t, Kind(""), Of(nil))
}

func TestIsKindHelper(t *testing.T) {
	err := New(KindCancelled, "cancelled by caller")
	assert.True(t, IsKind(err, KindCancelled))
	assert.False(t, IsKind(err, KindTimeout))
}
