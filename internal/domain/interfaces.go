package domain

import (
	"context"
	"image"
	"io"
)

// Engine opens documents for page-by-page rendering
type Engine interface {
	// Open resolves the reference and decodes it. Failures are OpenErrors
	// with ReasonUnreachable or ReasonUndecodable.
	Open(ctx context.Context, reference string) (Document, error)
}

// Document is an open document handle. It is owned by exactly one session.
type Document interface {
	// PageCount returns the number of pages, never negative.
	PageCount() int

	// RenderPage paints the 1-based page into target at the engine's default scale.
	// Failures are RenderErrors; a released handle always fails with ReasonReleased.
	RenderPage(ctx context.Context, page int, target Surface) error

	// Release invalidates the handle. Calling it more than once is a no-op.
	Release() error
}

// Surface receives the pixels of a rendered page
type Surface interface {
	Paint(img image.Image) error
}

// DocumentSource fetches the raw bytes of a document
type DocumentSource interface {
	// Fetch returns ErrNotFound or ErrTransport (possibly wrapped) on failure.
	Fetch(ctx context.Context, reference string) (io.ReadCloser, error)
}

// DocumentLister lists stored documents in display order
type DocumentLister interface {
	List(ctx context.Context) ([]DocumentInfo, error)
}

// Observer reports when observed pages enter or leave the viewport's proximity
type Observer interface {
	// Observe registers targets and delivers intersection batches to callback.
	// It returns ErrObservationUnavailable when the mechanism is not supported.
	Observe(targets []ObservationTarget, opts ObservationOptions, callback func([]IntersectionEntry)) error

	// Disconnect drops every registered target; no further batches are delivered.
	Disconnect()
}
