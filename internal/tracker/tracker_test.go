package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-viewer/internal/domain"
)

func TestClaim_OnlyOnceUntilReset(t *testing.T) {
	tr := New()

	assert.True(t, tr.Claim(2))
	for i := 0; i < 50; i++ {
		assert.False(t, tr.Claim(2), "page must not be claimed twice")
	}
	assert.Equal(t, domain.StatusQueued, tr.Status(2))

	tr.Reset()
	assert.Equal(t, domain.StatusUnseen, tr.Status(2))
	assert.True(t, tr.Claim(2))
}

func TestClaim_RejectedWhileRenderingAndRendered(t *testing.T) {
	tr := New()
	require.True(t, tr.Claim(1))
	require.NoError(t, tr.MarkRendering(1))
	assert.False(t, tr.Claim(1))

	require.NoError(t, tr.MarkRendered(1))
	assert.False(t, tr.Claim(1))
	assert.Equal(t, domain.StatusRendered, tr.Status(1))
}

func TestFailedPageCanBeReclaimed(t *testing.T) {
	tr := New()
	require.True(t, tr.Claim(3))
	require.NoError(t, tr.MarkRendering(3))
	require.NoError(t, tr.MarkFailed(3, "engine exploded"))

	assert.Equal(t, domain.StatusFailed, tr.Status(3))
	assert.Equal(t, "engine exploded", tr.Reason(3))

	assert.True(t, tr.Claim(3))
	assert.Equal(t, domain.StatusQueued, tr.Status(3))
	assert.Empty(t, tr.Reason(3))

	require.NoError(t, tr.MarkRendering(3))
	require.NoError(t, tr.MarkRendered(3))
	assert.Equal(t, domain.StatusRendered, tr.Status(3))
}

func TestOutOfOrderTransitions_ReturnError(t *testing.T) {
	tr := New()

	err := tr.MarkRendering(1)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusUnseen, tr.Status(1), "failed transition must not change state")

	require.True(t, tr.Claim(1))
	assert.ErrorIs(t, tr.MarkRendered(1), domain.ErrInvalidTransition)
	assert.ErrorIs(t, tr.MarkFailed(1, "x"), domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusQueued, tr.Status(1))
}

func TestOutOfOrderTransitions_PanicWhenStrict(t *testing.T) {
	tr := New(WithStrict(true))
	assert.Panics(t, func() {
		_ = tr.MarkRendered(4)
	})
}
