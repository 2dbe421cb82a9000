package pdf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-viewer/internal/cache"
	"github.com/spherical/pdf-viewer/internal/domain"
)

func TestCachingEngine_ServesRepeatRendersFromCache(t *testing.T) {
	r := &fakeRasterizer{pages: 2}
	inner := newTestEngine(&fakeSource{docs: map[string][]byte{"a.pdf": []byte("%PDF")}}, r)
	mem := cache.NewMemoryClient(16)
	defer mem.Close()
	e := NewCachingEngine(inner, mem, time.Minute, 1, nil)

	doc, err := e.Open(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount())

	first := &captureSurface{}
	require.NoError(t, doc.RenderPage(context.Background(), 1, first))
	assert.Len(t, r.dpis, 1)
	assert.Equal(t, 1, mem.Len())

	second := &captureSurface{}
	require.NoError(t, doc.RenderPage(context.Background(), 1, second))
	assert.Len(t, r.dpis, 1, "second render should not reach the engine")
	require.NotNil(t, second.img)
	assert.Equal(t, first.img.Bounds(), second.img.Bounds())
	assert.Equal(t, first.img.At(0, 0), second.img.At(0, 0))
}

func TestCachingEngine_ReleasedHandleFailsEvenOnHit(t *testing.T) {
	r := &fakeRasterizer{pages: 1}
	inner := newTestEngine(&fakeSource{docs: map[string][]byte{"a.pdf": []byte("%PDF")}}, r)
	mem := cache.NewMemoryClient(16)
	defer mem.Close()
	e := NewCachingEngine(inner, mem, time.Minute, 1, nil)

	doc, err := e.Open(context.Background(), "a.pdf")
	require.NoError(t, err)
	require.NoError(t, doc.RenderPage(context.Background(), 1, &captureSurface{}))

	require.NoError(t, doc.Release())
	require.NoError(t, doc.Release())
	assert.Equal(t, 1, r.closedCount())

	err = doc.RenderPage(context.Background(), 1, &captureSurface{})
	assert.True(t, domain.IsReason(err, domain.ReasonReleased))
}

func TestCachingEngine_OutOfRangeAndFailuresAreNotCached(t *testing.T) {
	r := &fakeRasterizer{pages: 1}
	inner := newTestEngine(&fakeSource{docs: map[string][]byte{"a.pdf": []byte("%PDF")}}, r)
	mem := cache.NewMemoryClient(16)
	defer mem.Close()
	e := NewCachingEngine(inner, mem, time.Minute, 1, nil)

	doc, err := e.Open(context.Background(), "a.pdf")
	require.NoError(t, err)

	err = doc.RenderPage(context.Background(), 5, &captureSurface{})
	assert.True(t, domain.IsReason(err, domain.ReasonOutOfRange))

	r.err = assert.AnError
	err = doc.RenderPage(context.Background(), 1, &captureSurface{})
	assert.True(t, domain.IsReason(err, domain.ReasonEngineFailure))
	assert.Zero(t, mem.Len())
}

func TestCachingEngine_OpenErrorsPassThrough(t *testing.T) {
	inner := newTestEngine(&fakeSource{}, &fakeRasterizer{})
	mem := cache.NewMemoryClient(16)
	defer mem.Close()
	e := NewCachingEngine(inner, mem, time.Minute, 1, nil)

	_, err := e.Open(context.Background(), "missing.pdf")
	assert.True(t, domain.IsReason(err, domain.ReasonUnreachable))
}
