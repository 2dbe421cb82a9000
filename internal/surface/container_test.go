package surface

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-viewer/internal/domain"
)

func paintedCanvas(t *testing.T, w, h int) *Canvas {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	c := NewCanvas()
	require.NoError(t, c.Paint(img))
	return c
}

func TestNewContainer_ShowsEmptyMessage(t *testing.T) {
	c := NewContainer()
	els := c.Elements()
	require.Len(t, els, 1)
	assert.Equal(t, KindMessage, els[0].Kind)
	assert.Equal(t, MessageEmpty, els[0].Text)
}

func TestMountAndReplace(t *testing.T) {
	c := NewContainer()
	pos := c.Mount([]Element{Placeholder(1, 1, 800), Placeholder(1, 2, 800)})
	assert.Equal(t, []int{0, 1}, pos)
	assert.Equal(t, 2, c.Count(KindPlaceholder))

	canvas := paintedCanvas(t, 612, 792)
	require.NoError(t, c.Replace(1, Rendered(1, 2, canvas)))

	got, ok := c.Canvas(2)
	require.True(t, ok)
	assert.Same(t, canvas, got)
	els := c.Elements()
	assert.Equal(t, 612, els[1].Width)
	assert.Equal(t, 792, els[1].Height)
}

func TestReplace_RejectsOtherGeneration(t *testing.T) {
	c := NewContainer()
	c.Mount([]Element{Placeholder(2, 1, 800)})
	before := c.Version()

	err := c.Replace(0, Rendered(1, 1, paintedCanvas(t, 10, 10)))
	assert.ErrorIs(t, err, domain.ErrStaleGeneration)

	err = c.Replace(4, Placeholder(2, 1, 800))
	assert.ErrorIs(t, err, domain.ErrStaleGeneration)

	assert.Equal(t, before, c.Version(), "rejected replacements must not mutate")
	_, ok := c.Canvas(1)
	assert.False(t, ok)
}

func TestShowMessage_ClearsPages(t *testing.T) {
	c := NewContainer()
	c.Mount([]Element{Placeholder(1, 1, 800)})
	c.ShowMessage(OpenFailedMessage("bad file"))

	els := c.Elements()
	require.Len(t, els, 1)
	assert.Equal(t, "Error loading PDF: bad file", els[0].Text)
}

func TestCanvas_PNG(t *testing.T) {
	c := NewCanvas()
	_, err := c.PNG()
	assert.Error(t, err)
	assert.Error(t, c.Paint(nil))
	assert.False(t, c.Painted())

	c = paintedCanvas(t, 4, 3)
	data, err := c.PNG()
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
}

func TestFailedElement(t *testing.T) {
	el := Failed(3, 2, 800, "page missing")
	assert.Equal(t, KindError, el.Kind)
	assert.Equal(t, "Error rendering page: page missing", el.Text)
}
