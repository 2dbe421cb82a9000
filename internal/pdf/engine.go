// Package pdf adapts the MuPDF rendering engine (through go-fitz) to the viewer's
// document handle contract.
package pdf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/observability"
)

// rasterizer is the subset of *fitz.Document the handle needs.
type rasterizer interface {
	NumPage() int
	ImageDPI(pageNumber int, dpi float64) (*image.RGBA, error)
	Close() error
}

// Engine opens documents from a DocumentSource and decodes them with go-fitz.
type Engine struct {
	source    domain.DocumentSource
	validator *Validator
	scale     float64
	logger    *observability.Logger
	decode    func(data []byte) (rasterizer, error)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithScale sets the fixed render scale. 1.0 renders at 72 DPI.
func WithScale(scale float64) EngineOption {
	return func(e *Engine) {
		if scale > 0 {
			e.scale = scale
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *observability.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a new go-fitz backed engine.
func NewEngine(source domain.DocumentSource, opts ...EngineOption) *Engine {
	e := &Engine{
		source:    source,
		validator: NewValidator(),
		scale:     domain.DefaultScale,
		logger:    observability.NopLogger(),
		decode: func(data []byte) (rasterizer, error) {
			return fitz.NewFromMemory(data)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open fetches and decodes the referenced document.
func (e *Engine) Open(ctx context.Context, reference string) (domain.Document, error) {
	if err := e.validator.ValidateReference(reference); err != nil {
		return nil, domain.OpenError(domain.ReasonUnreachable, "invalid document reference", err)
	}

	rc, err := e.source.Fetch(ctx, reference)
	if err != nil {
		return nil, domain.OpenError(domain.ReasonUnreachable, fmt.Sprintf("cannot fetch %s", reference), err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, domain.OpenError(domain.ReasonUnreachable, fmt.Sprintf("cannot read %s", reference), err)
	}

	if len(data) == 0 {
		return nil, domain.OpenError(domain.ReasonUndecodable, "document is empty", nil)
	}

	doc, err := e.decode(data)
	if err != nil {
		return nil, domain.OpenError(domain.ReasonUndecodable, "failed to open PDF", err)
	}

	sum := sha256.Sum256(data)
	h := newHandle(doc, e.scale*domain.PointsPerInch, hex.EncodeToString(sum[:]))

	e.logger.Debug().
		Str("reference", reference).
		Int("pages", h.PageCount()).
		Int("bytes", len(data)).
		Msg("Opened document")

	return h, nil
}

// Handle is an open go-fitz document. Release may be called while renders are in
// flight: the handle is invalidated at once and the document is closed as soon as
// the last in-flight render returns.
type Handle struct {
	mu       sync.Mutex
	doc      rasterizer
	pages    int
	dpi      float64
	digest   string
	released bool
	closed   bool
	inflight int
}

func newHandle(doc rasterizer, dpi float64, digest string) *Handle {
	pages := doc.NumPage()
	if pages < 0 {
		pages = 0
	}
	return &Handle{doc: doc, pages: pages, dpi: dpi, digest: digest}
}

// PageCount returns the number of pages.
func (h *Handle) PageCount() int {
	return h.pages
}

// Digest returns the SHA-256 of the document bytes.
func (h *Handle) Digest() string {
	return h.digest
}

// DPI returns the resolution pages are rasterized at.
func (h *Handle) DPI() float64 {
	return h.dpi
}

// RenderPage rasterizes the 1-based page and paints it into target.
func (h *Handle) RenderPage(ctx context.Context, page int, target domain.Surface) error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return domain.RenderError(domain.ReasonReleased, fmt.Sprintf("page %d: document released", page), nil)
	}
	if page < 1 || page > h.pages {
		h.mu.Unlock()
		return domain.RenderError(domain.ReasonOutOfRange, fmt.Sprintf("page %d outside 1..%d", page, h.pages), nil)
	}
	h.inflight++
	h.mu.Unlock()

	img, err := h.rasterize(ctx, page)

	h.mu.Lock()
	h.inflight--
	released := h.released
	if released && h.inflight == 0 {
		h.closeLocked()
	}
	h.mu.Unlock()

	if released {
		return domain.RenderError(domain.ReasonReleased, fmt.Sprintf("page %d: document released during render", page), nil)
	}
	if err != nil {
		return domain.RenderError(domain.ReasonEngineFailure, fmt.Sprintf("failed to render page %d", page), err)
	}
	if err := target.Paint(img); err != nil {
		return domain.RenderError(domain.ReasonEngineFailure, fmt.Sprintf("failed to paint page %d", page), err)
	}
	return nil
}

func (h *Handle) rasterize(ctx context.Context, page int) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.doc.ImageDPI(page-1, h.dpi)
}

// Release invalidates the handle. It is idempotent.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	if h.inflight == 0 {
		return h.closeLocked()
	}
	return nil
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

func (h *Handle) closeLocked() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if err := h.doc.Close(); err != nil {
		return fmt.Errorf("close document: %w", err)
	}
	return nil
}
