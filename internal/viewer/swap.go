package viewer

import (
	"context"

	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/surface"
)

// dispatch is the scheduler's Dispatcher. It runs under the manager lock.
func (m *Manager) dispatch(generation uint64, page int) {
	m.wg.Add(1)
	go m.renderTask(generation, page)
}

// renderTask renders one claimed page and swaps the result into its slot.
func (m *Manager) renderTask(generation uint64, page int) {
	defer m.wg.Done()

	acquireCtx := context.Background()
	if m.opts.RenderTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(acquireCtx, m.opts.RenderTimeout)
		defer cancel()
	}
	if err := m.sem.Acquire(acquireCtx, 1); err != nil {
		m.failUnstarted(generation, page, err)
		return
	}
	defer m.sem.Release(1)

	doc, ok := m.beginRender(generation, page)
	if !ok {
		return
	}

	canvas := surface.NewCanvas()
	err := doc.RenderPage(context.Background(), page, canvas)

	m.finishRender(generation, page, canvas, err)
}

// beginRender swaps in the loading indicator and returns the handle to render with.
func (m *Manager) beginRender(generation uint64, page int) (domain.Document, bool) {
	m.mu.Lock()
	s := m.current(generation)
	if s == nil {
		m.mu.Unlock()
		m.discard(generation, page, "session changed before render started")
		return nil, false
	}
	slot := s.slot(page)
	if err := m.tracker.MarkRendering(page); err != nil || slot == nil {
		m.mu.Unlock()
		m.logger.Error().Err(err).Int("page", page).Msg("Render task started for an unclaimed page")
		return nil, false
	}
	if err := m.container.Replace(slot.Element, surface.Loading(generation, page, m.opts.PlaceholderHeight)); err != nil {
		m.logger.Warn().Err(err).Int("page", page).Msg("Failed to show rendering indicator")
	}
	doc, ref := s.doc, s.reference
	m.mu.Unlock()

	m.emit(m.event(domain.EventPageRendering, generation, ref, page, surface.MessageRendering))
	return doc, true
}

// finishRender swaps the canvas or an error indicator into the page's slot,
// unless the session it was rendered for is gone.
func (m *Manager) finishRender(generation uint64, page int, canvas *surface.Canvas, renderErr error) {
	m.mu.Lock()
	s := m.current(generation)
	if s == nil {
		m.mu.Unlock()
		m.discard(generation, page, "session changed during render")
		return
	}
	slot := s.slot(page)
	ref := s.reference

	var evt domain.SessionEvent
	if renderErr != nil {
		text := describe(renderErr)
		m.failLocked(generation, slot, text)
		m.logger.Warn().Err(renderErr).Str("reference", ref).Int("page", page).Msg("Page render failed")
		evt = m.event(domain.EventPageFailed, generation, ref, page, text)
	} else {
		if err := m.container.Replace(slot.Element, surface.Rendered(generation, page, canvas)); err != nil {
			m.logger.Warn().Err(err).Int("page", page).Msg("Failed to mount rendered page")
		}
		if err := m.tracker.MarkRendered(page); err != nil {
			m.logger.Error().Err(err).Int("page", page).Msg("Unexpected page state after render")
		}
		if m.geometry && m.viewport != nil {
			m.viewport.Resize(page, canvas.Bounds().Dy())
		}
		m.logger.Debug().Str("reference", ref).Int("page", page).Msg("Page rendered")
		evt = m.event(domain.EventPageRendered, generation, ref, page, "")
	}
	m.mu.Unlock()

	m.emit(evt)
}

// failUnstarted fails a Queued page whose task never got a render slot.
func (m *Manager) failUnstarted(generation uint64, page int, cause error) {
	m.mu.Lock()
	s := m.current(generation)
	if s == nil {
		m.mu.Unlock()
		m.discard(generation, page, "session changed while waiting for a render slot")
		return
	}
	slot := s.slot(page)
	if err := m.tracker.MarkRendering(page); err != nil {
		m.mu.Unlock()
		m.logger.Error().Err(err).Int("page", page).Msg("Render task started for an unclaimed page")
		return
	}
	text := "timed out waiting for a render slot"
	m.failLocked(generation, slot, text)
	ref := s.reference
	m.mu.Unlock()

	m.logger.Warn().Err(cause).Int("page", page).Msg("Page render not started")
	m.emit(m.event(domain.EventPageFailed, generation, ref, page, text))
}

// failLocked records a failure and shows the inline error indicator. The page
// goes back to observation so a later intersection can claim it again.
func (m *Manager) failLocked(generation uint64, slot *domain.PageSlot, reason string) {
	if err := m.tracker.MarkFailed(slot.Page, reason); err != nil {
		m.logger.Error().Err(err).Int("page", slot.Page).Msg("Unexpected page state after render")
	}
	if err := m.container.Replace(slot.Element, surface.Failed(generation, slot.Page, m.opts.PlaceholderHeight, reason)); err != nil {
		m.logger.Warn().Err(err).Int("page", slot.Page).Msg("Failed to show error indicator")
	}
	m.scheduler.Reobserve(slot.Page)
}

func (m *Manager) discard(generation uint64, page int, why string) {
	m.logger.Debug().Uint64("generation", generation).Int("page", page).Msg("Discarding render result: " + why)
	m.emit(m.event(domain.EventPageDiscarded, generation, "", page, why))
}
