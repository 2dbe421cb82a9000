// Package tracker records the render status of every page in a document session.
//
// The tracker is the single source of truth for whether a page's render work has
// started. Callers must only render a page after Claim returns true; that rule is
// what keeps a page that rapidly re-enters the viewport from being rendered twice.
//
// A Tracker is not safe for concurrent use. It is owned by one session manager and
// only touched while that manager holds its lock.
package tracker

import (
	"fmt"

	"github.com/spherical/pdf-viewer/internal/domain"
)

type entry struct {
	status domain.RenderStatus
	reason string
}

// Tracker maps 1-based page indexes to their render status.
// Pages without an entry are Unseen.
type Tracker struct {
	pages  map[int]entry
	strict bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStrict makes out-of-order transitions panic instead of returning an error.
func WithStrict(strict bool) Option {
	return func(t *Tracker) {
		t.strict = strict
	}
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{pages: make(map[int]entry)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Claim grants the exclusive right to render page. It succeeds only for Unseen
// and Failed pages, moving them to Queued.
func (t *Tracker) Claim(page int) bool {
	switch t.Status(page) {
	case domain.StatusUnseen, domain.StatusFailed:
		t.pages[page] = entry{status: domain.StatusQueued}
		return true
	default:
		return false
	}
}

// MarkRendering moves a Queued page to Rendering.
func (t *Tracker) MarkRendering(page int) error {
	return t.transition(page, domain.StatusQueued, entry{status: domain.StatusRendering})
}

// MarkRendered moves a Rendering page to Rendered.
func (t *Tracker) MarkRendered(page int) error {
	return t.transition(page, domain.StatusRendering, entry{status: domain.StatusRendered})
}

// MarkFailed moves a Rendering page to Failed. The page can be claimed again.
func (t *Tracker) MarkFailed(page int, reason string) error {
	return t.transition(page, domain.StatusRendering, entry{status: domain.StatusFailed, reason: reason})
}

// Reset forgets every page. Only session teardown calls it.
func (t *Tracker) Reset() {
	t.pages = make(map[int]entry)
}

// Status returns the current status of page.
func (t *Tracker) Status(page int) domain.RenderStatus {
	return t.pages[page].status
}

// Reason returns the failure reason of a Failed page.
func (t *Tracker) Reason(page int) string {
	return t.pages[page].reason
}

func (t *Tracker) transition(page int, from domain.RenderStatus, to entry) error {
	current := t.Status(page)
	if current != from {
		err := fmt.Errorf("%w: page %d is %s, want %s before %s",
			domain.ErrInvalidTransition, page, current, from, to.status)
		if t.strict {
			panic(err)
		}
		return err
	}
	t.pages[page] = to
	return nil
}
