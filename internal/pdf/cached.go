package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"
	"time"

	"github.com/spherical/pdf-viewer/internal/cache"
	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/observability"
)

// digester is implemented by handles that can identify their content.
type digester interface {
	Digest() string
}

// CachingEngine wraps an Engine and keeps rendered pages in a cache keyed by
// document digest, scale and page number. Handles without a digest are passed
// through uncached.
type CachingEngine struct {
	inner  domain.Engine
	cache  cache.Client
	ttl    time.Duration
	scale  float64
	logger *observability.Logger
}

// NewCachingEngine creates a caching decorator around inner.
func NewCachingEngine(inner domain.Engine, c cache.Client, ttl time.Duration, scale float64, logger *observability.Logger) *CachingEngine {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if scale <= 0 {
		scale = domain.DefaultScale
	}
	return &CachingEngine{inner: inner, cache: c, ttl: ttl, scale: scale, logger: logger}
}

// Open opens the document with the wrapped engine.
func (e *CachingEngine) Open(ctx context.Context, reference string) (domain.Document, error) {
	doc, err := e.inner.Open(ctx, reference)
	if err != nil {
		return nil, err
	}
	d, ok := doc.(digester)
	if !ok || d.Digest() == "" {
		return doc, nil
	}
	return &cachedDocument{engine: e, inner: doc, digest: d.Digest()}, nil
}

type cachedDocument struct {
	engine *CachingEngine
	inner  domain.Document
	digest string

	mu       sync.Mutex
	released bool
}

func (d *cachedDocument) PageCount() int {
	return d.inner.PageCount()
}

func (d *cachedDocument) Digest() string {
	return d.digest
}

func (d *cachedDocument) RenderPage(ctx context.Context, page int, target domain.Surface) error {
	d.mu.Lock()
	released := d.released
	d.mu.Unlock()
	if released {
		return domain.RenderError(domain.ReasonReleased, fmt.Sprintf("page %d: document released", page), nil)
	}
	if page < 1 || page > d.inner.PageCount() {
		return d.inner.RenderPage(ctx, page, target)
	}

	key := cache.PageKey(d.digest, d.engine.scale, page)
	if data, err := d.engine.cache.Get(ctx, key); err == nil {
		img, decErr := png.Decode(bytes.NewReader(data))
		if decErr == nil {
			if err := target.Paint(img); err != nil {
				return domain.RenderError(domain.ReasonEngineFailure, fmt.Sprintf("failed to paint page %d", page), err)
			}
			return nil
		}
		d.engine.logger.Warn().Err(decErr).Str("key", key).Msg("Discarding corrupt cached page")
		_ = d.engine.cache.Delete(ctx, key)
	}

	rec := &recordingSurface{target: target}
	if err := d.inner.RenderPage(ctx, page, rec); err != nil {
		return err
	}
	if rec.img == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, rec.img); err != nil {
		d.engine.logger.Warn().Err(err).Int("page", page).Msg("Failed to encode page for cache")
		return nil
	}
	if err := d.engine.cache.Set(ctx, key, buf.Bytes(), d.engine.ttl); err != nil {
		d.engine.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache rendered page")
	}
	return nil
}

func (d *cachedDocument) Release() error {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return nil
	}
	d.released = true
	d.mu.Unlock()
	return d.inner.Release()
}

// recordingSurface paints through to target and keeps the image it was given.
type recordingSurface struct {
	target domain.Surface
	img    image.Image
}

func (r *recordingSurface) Paint(img image.Image) error {
	if err := r.target.Paint(img); err != nil {
		return err
	}
	r.img = img
	return nil
}
