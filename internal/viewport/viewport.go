// Package viewport implements viewport proximity observation for page placeholders.
//
// A Viewport lays observed pages out top to bottom and, given a scroll position,
// reports which pages are within the look-ahead margin of the visible area. Like a
// browser IntersectionObserver it delivers one initial batch on Observe and after
// that only reports pages whose intersecting state changed. Clients that run a real
// IntersectionObserver can forward their batches through Deliver instead.
//
// A Viewport is not safe for concurrent use; its owner serialises access.
package viewport

import (
	"github.com/spherical/pdf-viewer/internal/domain"
)

type target struct {
	page   int
	top    int
	height int
}

// Viewport computes intersection batches from scroll geometry.
type Viewport struct {
	targets  []target
	index    map[int]int // page -> position in targets
	last     map[int]bool
	opts     domain.ObservationOptions
	callback func([]domain.IntersectionEntry)

	scrollTop int
	height    int
}

// New creates a viewport with no visible area. Nothing intersects until the
// first Scroll with a positive height.
func New() *Viewport {
	return &Viewport{}
}

// Observe registers targets, replacing any previous registration, and delivers
// the initial batch.
func (v *Viewport) Observe(targets []domain.ObservationTarget, opts domain.ObservationOptions, callback func([]domain.IntersectionEntry)) error {
	v.targets = make([]target, 0, len(targets))
	v.index = make(map[int]int, len(targets))
	v.last = make(map[int]bool, len(targets))
	v.opts = opts
	v.callback = callback

	for _, t := range targets {
		v.index[t.Page] = len(v.targets)
		v.targets = append(v.targets, target{page: t.Page, height: t.Height})
	}
	v.layout()

	entries := make([]domain.IntersectionEntry, 0, len(v.targets))
	for _, t := range v.targets {
		entry := v.measure(t)
		v.last[t.page] = entry.Intersecting
		entries = append(entries, entry)
	}
	v.emit(entries)
	return nil
}

// Disconnect drops every target. Later Scroll, Resize and Deliver calls are ignored.
func (v *Viewport) Disconnect() {
	v.targets = nil
	v.index = nil
	v.last = nil
	v.callback = nil
}

// Observed returns the number of registered targets.
func (v *Viewport) Observed() int {
	return len(v.targets)
}

// Scroll moves the visible area and reports pages whose state changed.
func (v *Viewport) Scroll(top, height int) {
	if top < 0 {
		top = 0
	}
	if height < 0 {
		height = 0
	}
	v.scrollTop = top
	v.height = height
	v.update()
}

// Resize changes the height of an observed page, for example once its rendered
// canvas replaces the placeholder, and reports any resulting changes.
func (v *Viewport) Resize(page, height int) {
	i, ok := v.index[page]
	if !ok || height <= 0 || v.targets[i].height == height {
		return
	}
	v.targets[i].height = height
	v.layout()
	v.update()
}

// Deliver forwards a batch measured elsewhere. Entries for pages that are not
// observed are dropped.
func (v *Viewport) Deliver(entries []domain.IntersectionEntry) {
	if v.callback == nil {
		return
	}
	known := make([]domain.IntersectionEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := v.index[e.Page]; !ok {
			continue
		}
		v.last[e.Page] = e.Intersecting
		known = append(known, e)
	}
	v.emit(known)
}

// ContentHeight returns the total height of all observed pages.
func (v *Viewport) ContentHeight() int {
	if len(v.targets) == 0 {
		return 0
	}
	last := v.targets[len(v.targets)-1]
	return last.top + last.height
}

// Offset returns the top edge of an observed page.
func (v *Viewport) Offset(page int) (int, bool) {
	i, ok := v.index[page]
	if !ok {
		return 0, false
	}
	return v.targets[i].top, true
}

func (v *Viewport) layout() {
	y := 0
	for i := range v.targets {
		v.targets[i].top = y
		y += v.targets[i].height
	}
}

func (v *Viewport) update() {
	if v.callback == nil {
		return
	}
	var changed []domain.IntersectionEntry
	for _, t := range v.targets {
		entry := v.measure(t)
		if v.last[t.page] == entry.Intersecting {
			continue
		}
		v.last[t.page] = entry.Intersecting
		changed = append(changed, entry)
	}
	v.emit(changed)
}

// measure computes the visible fraction of t inside the margin-extended viewport.
func (v *Viewport) measure(t target) domain.IntersectionEntry {
	entry := domain.IntersectionEntry{Page: t.page}
	if v.height <= 0 || t.height <= 0 {
		return entry
	}

	rootTop := v.scrollTop - v.opts.Margin
	rootBottom := v.scrollTop + v.height + v.opts.Margin

	overlap := min(rootBottom, t.top+t.height) - max(rootTop, t.top)
	if overlap <= 0 {
		return entry
	}

	entry.Ratio = float64(overlap) / float64(t.height)
	entry.Intersecting = entry.Ratio >= v.opts.Threshold
	return entry
}

func (v *Viewport) emit(entries []domain.IntersectionEntry) {
	if len(entries) == 0 || v.callback == nil {
		return
	}
	v.callback(entries)
}

// Unsupported is an observer for environments without viewport observation.
// Observe always fails with domain.ErrObservationUnavailable.
type Unsupported struct{}

// Observe implements domain.Observer.
func (Unsupported) Observe([]domain.ObservationTarget, domain.ObservationOptions, func([]domain.IntersectionEntry)) error {
	return domain.ErrObservationUnavailable
}

// Disconnect implements domain.Observer.
func (Unsupported) Disconnect() {}
