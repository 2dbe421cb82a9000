package main

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-viewer/internal/config"
	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/observability"
	"github.com/spherical/pdf-viewer/internal/pdf"
	"github.com/spherical/pdf-viewer/internal/viewer"
	"github.com/spherical/pdf-viewer/internal/viewport"
)

type pagesEngine struct {
	pages int
	fail  map[int]bool
}

func (e pagesEngine) Open(ctx context.Context, ref string) (domain.Document, error) {
	return pagesDoc(e), nil
}

type pagesDoc pagesEngine

func (d pagesDoc) PageCount() int { return d.pages }

func (d pagesDoc) RenderPage(ctx context.Context, page int, target domain.Surface) error {
	if d.fail[page] {
		return domain.RenderError(domain.ReasonEngineFailure, "broken page", errors.New("bad stream"))
	}
	return target.Paint(image.NewRGBA(image.Rect(0, 0, 600, 1000)))
}

func (d pagesDoc) Release() error { return nil }

func openHeadless(t *testing.T, engine domain.Engine) (*viewer.Manager, domain.SessionInfo) {
	t.Helper()
	m := viewer.NewManager(engine, viewport.New(), viewer.DefaultOptions())
	t.Cleanup(m.Close)
	info, err := m.OpenSession(context.Background(), "doc.pdf")
	require.NoError(t, err)
	return m, info
}

func TestScrollThrough_RendersEveryPage(t *testing.T) {
	m, info := openHeadless(t, pagesEngine{pages: 5})

	var steps []int
	info, err := scrollThrough(context.Background(), m, info, 900, func(done int) {
		steps = append(steps, done)
	})
	require.NoError(t, err)

	assert.Equal(t, 5, settled(info))
	for _, slot := range info.Pages {
		assert.Equal(t, domain.StatusRendered, slot.Status, "page %d", slot.Page)
	}
	require.NotEmpty(t, steps)
	assert.Equal(t, 5, steps[len(steps)-1])
	for i := 1; i < len(steps); i++ {
		assert.GreaterOrEqual(t, steps[i], steps[i-1])
	}
}

func TestScrollThrough_EmptyDocument(t *testing.T) {
	m, info := openHeadless(t, pagesEngine{})

	info, err := scrollThrough(context.Background(), m, info, 900, func(int) {})
	require.NoError(t, err)
	assert.Equal(t, 0, info.PageCount)
}

func TestScrollThrough_InvalidHeight(t *testing.T) {
	m, info := openHeadless(t, pagesEngine{pages: 1})

	_, err := scrollThrough(context.Background(), m, info, 0, func(int) {})
	assert.Error(t, err)
}

func TestScrollThrough_Cancelled(t *testing.T) {
	m, info := openHeadless(t, pagesEngine{pages: 3})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scrollThrough(ctx, m, info, 900, func(int) {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWritePages(t *testing.T) {
	m, info := openHeadless(t, pagesEngine{pages: 3, fail: map[int]bool{2: true}})
	info, err := scrollThrough(context.Background(), m, info, 900, func(int) {})
	require.NoError(t, err)

	out := t.TempDir()
	summary, err := writePages(m, info, out, 300)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Pages)
	assert.Equal(t, []string{
		filepath.Join(out, "page-001.png"),
		filepath.Join(out, "page-003.png"),
	}, summary.Files)
	assert.Equal(t, map[int]string{2: "broken page"}, summary.Failed)

	f, err := os.Open(summary.Files[0])
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 300, 500), img.Bounds())
}

func useConfig(t *testing.T, driver string) {
	t.Helper()
	c := config.DefaultConfig()
	c.Storage.UploadDir = t.TempDir()
	c.Cache.Driver = driver
	prevCfg, prevLogger := cfg, logger
	cfg, logger = c, observability.NopLogger()
	t.Cleanup(func() { cfg, logger = prevCfg, prevLogger })
}

func TestNewEngine_UsesConfiguredPageCache(t *testing.T) {
	useConfig(t, "memory")

	engine, closeEngine, err := newEngine(1)
	require.NoError(t, err)
	defer closeEngine()
	assert.IsType(t, &pdf.CachingEngine{}, engine)
}

func TestNewEngine_WithoutCache(t *testing.T) {
	useConfig(t, "none")

	engine, closeEngine, err := newEngine(1)
	require.NoError(t, err)
	defer closeEngine()
	assert.IsType(t, &pdf.Engine{}, engine)
}
