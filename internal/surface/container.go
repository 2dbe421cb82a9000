// Package surface is the presentation surface of a viewer: an ordered list of
// page elements that clients render, plus the canvases rendered pages are
// painted into.
package surface

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/spherical/pdf-viewer/internal/domain"
)

// Texts shown to the user.
const (
	MessageEmpty      = "Select a PDF to start viewing"
	MessageLoading    = "Loading PDF..."
	MessageRendering  = "Rendering page..."
	messageOpenFailed = "Error loading PDF: %s"
	messagePageFailed = "Error rendering page: %s"
)

// OpenFailedMessage is the text shown in place of the document when it cannot be opened.
func OpenFailedMessage(reason string) string {
	return fmt.Sprintf(messageOpenFailed, reason)
}

// PageFailedMessage is the inline text shown in place of a page that failed to render.
func PageFailedMessage(reason string) string {
	return fmt.Sprintf(messagePageFailed, reason)
}

// Kind identifies what an element displays.
type Kind string

const (
	KindMessage     Kind = "message"
	KindPlaceholder Kind = "placeholder"
	KindLoading     Kind = "loading"
	KindCanvas      Kind = "canvas"
	KindError       Kind = "error"
)

// Element is one entry of the container.
type Element struct {
	Kind       Kind   `json:"kind"`
	Page       int    `json:"page,omitempty"`
	Generation uint64 `json:"generation,omitempty"`
	Text       string `json:"text,omitempty"`
	MinHeight  int    `json:"min_height,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`

	canvas *Canvas
}

// Placeholder returns the element mounted for a page before it renders.
func Placeholder(generation uint64, page, minHeight int) Element {
	return Element{Kind: KindPlaceholder, Page: page, Generation: generation, MinHeight: minHeight}
}

// Loading returns the element shown while a page renders.
func Loading(generation uint64, page, minHeight int) Element {
	return Element{Kind: KindLoading, Page: page, Generation: generation, MinHeight: minHeight, Text: MessageRendering}
}

// Rendered returns the element that shows a painted canvas.
func Rendered(generation uint64, page int, c *Canvas) Element {
	b := c.Bounds()
	return Element{Kind: KindCanvas, Page: page, Generation: generation, Width: b.Dx(), Height: b.Dy(), canvas: c}
}

// Failed returns the inline error indicator for a page.
func Failed(generation uint64, page, minHeight int, reason string) Element {
	return Element{Kind: KindError, Page: page, Generation: generation, MinHeight: minHeight, Text: PageFailedMessage(reason)}
}

// Canvas returns the painted canvas of a KindCanvas element.
func (e Element) Canvas() *Canvas {
	return e.canvas
}

// Container holds the elements of one viewer. It is safe for concurrent use.
type Container struct {
	mu       sync.RWMutex
	elements []Element
	version  uint64
}

// NewContainer creates a container showing the empty-view message.
func NewContainer() *Container {
	c := &Container{}
	c.ShowMessage(MessageEmpty)
	return c
}

// ShowMessage replaces all content with a single message.
func (c *Container) ShowMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elements = []Element{{Kind: KindMessage, Text: text}}
	c.version++
}

// Mount replaces all content with the given elements and returns their positions.
func (c *Container) Mount(elements []Element) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elements = make([]Element, len(elements))
	positions := make([]int, len(elements))
	for i, el := range elements {
		c.elements[i] = el
		positions[i] = i
	}
	c.version++
	return positions
}

// Replace swaps the element at pos. The current element must belong to the same
// page and generation, so a late result can never overwrite a newer session.
func (c *Container) Replace(pos int, el Element) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pos < 0 || pos >= len(c.elements) {
		return fmt.Errorf("%w: no element at %d", domain.ErrStaleGeneration, pos)
	}
	current := c.elements[pos]
	if current.Generation != el.Generation || current.Page != el.Page {
		return fmt.Errorf("%w: element %d belongs to page %d of generation %d",
			domain.ErrStaleGeneration, pos, current.Page, current.Generation)
	}
	c.elements[pos] = el
	c.version++
	return nil
}

// Elements returns a copy of the current content.
func (c *Container) Elements() []Element {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Element, len(c.elements))
	copy(out, c.elements)
	return out
}

// Canvas returns the rendered canvas of page, if it is currently displayed.
func (c *Container) Canvas(page int) (*Canvas, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, el := range c.elements {
		if el.Kind == KindCanvas && el.Page == page {
			return el.canvas, true
		}
	}
	return nil, false
}

// Count returns how many elements of kind are displayed.
func (c *Container) Count(kind Kind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, el := range c.elements {
		if el.Kind == kind {
			n++
		}
	}
	return n
}

// Version increases on every mutation.
func (c *Container) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Canvas is a render target. It implements domain.Surface.
type Canvas struct {
	mu      sync.Mutex
	img     image.Image
	encoded []byte
}

// NewCanvas creates an unpainted canvas.
func NewCanvas() *Canvas {
	return &Canvas{}
}

// Paint stores the page pixels.
func (c *Canvas) Paint(img image.Image) error {
	if img == nil {
		return errors.New("paint: nil image")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.img = img
	c.encoded = nil
	return nil
}

// Painted reports whether Paint has been called.
func (c *Canvas) Painted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img != nil
}

// Image returns the painted pixels, nil before Paint.
func (c *Canvas) Image() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img
}

// Bounds returns the painted size, empty before Paint.
func (c *Canvas) Bounds() image.Rectangle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.img == nil {
		return image.Rectangle{}
	}
	return c.img.Bounds()
}

// PNG returns the canvas encoded as PNG. The encoding is computed once.
func (c *Canvas) PNG() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.img == nil {
		return nil, errors.New("canvas not painted")
	}
	if c.encoded == nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, c.img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		c.encoded = buf.Bytes()
	}
	return c.encoded, nil
}
