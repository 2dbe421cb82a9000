// Package viewer manages document viewing sessions: opening a document,
// mounting one placeholder per page, rendering pages as they approach the
// viewport and tearing everything down when another document is selected.
//
// All session state is owned by a Manager and mutated under its lock. Document
// opens and page renders run with the lock released; every continuation checks
// the session generation it was started for before touching state, so results
// that arrive after the session changed are discarded.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/observability"
	"github.com/spherical/pdf-viewer/internal/scheduler"
	"github.com/spherical/pdf-viewer/internal/surface"
	"github.com/spherical/pdf-viewer/internal/tracker"
	"github.com/spherical/pdf-viewer/internal/viewport"
)

// Options configures a Manager.
type Options struct {
	PlaceholderHeight int
	Observation       domain.ObservationOptions
	// Strict makes out-of-order page transitions panic.
	Strict bool
	// MaxConcurrent bounds the number of pages rendering at once.
	MaxConcurrent int
	// RenderTimeout bounds how long a render task waits for a slot. Zero waits forever.
	RenderTimeout time.Duration
	Logger        *observability.Logger
	// OnEvent is called outside the manager lock for every session event.
	OnEvent func(domain.SessionEvent)
}

// DefaultOptions mirrors the browser viewer defaults.
func DefaultOptions() Options {
	return Options{
		PlaceholderHeight: domain.DefaultPlaceholderHeight,
		Observation:       domain.DefaultObservationOptions(),
		MaxConcurrent:     4,
	}
}

type session struct {
	generation uint64
	reference  string
	doc        domain.Document
	slots      []domain.PageSlot // slots[i] is page i+1
}

func (s *session) slot(page int) *domain.PageSlot {
	if page < 1 || page > len(s.slots) {
		return nil
	}
	return &s.slots[page-1]
}

// Manager owns at most one active document session.
type Manager struct {
	mu sync.Mutex

	engine    domain.Engine
	viewport  *viewport.Viewport // nil unless the observer is a geometry viewport
	tracker   *tracker.Tracker
	scheduler *scheduler.Scheduler
	container *surface.Container
	sem       *semaphore.Weighted
	wg        sync.WaitGroup

	opts   Options
	logger *observability.Logger

	generation uint64
	opening    uint64 // generation of an open in progress, 0 if none
	session    *session
	geometry   bool // Scroll has been used, canvas heights feed the layout
	closed     bool
	lastActive time.Time
}

// NewManager creates a manager. observer may be nil, in which case every page of
// every session renders eagerly.
func NewManager(engine domain.Engine, observer domain.Observer, opts Options) *Manager {
	if opts.PlaceholderHeight <= 0 {
		opts.PlaceholderHeight = domain.DefaultPlaceholderHeight
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}

	m := &Manager{
		engine:     engine,
		tracker:    tracker.New(tracker.WithStrict(opts.Strict)),
		container:  surface.NewContainer(),
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		opts:       opts,
		logger:     opts.Logger,
		lastActive: time.Now(),
	}
	if vp, ok := observer.(*viewport.Viewport); ok {
		m.viewport = vp
	}
	m.scheduler = scheduler.New(observer, m.tracker, m.dispatch, opts.Observation, opts.Logger)
	return m
}

// OpenSession replaces the current session with one for reference. It returns
// domain.ErrSuperseded when another open or a teardown happened while the
// document was loading.
func (m *Manager) OpenSession(ctx context.Context, reference string) (domain.SessionInfo, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.SessionInfo{}, domain.ErrClosed
	}
	m.generation++
	gen := m.generation
	m.opening = gen
	closedEvt, hadSession := m.teardownLocked()
	m.container.ShowMessage(surface.MessageLoading)
	m.touchLocked()
	m.mu.Unlock()
	if hadSession {
		m.emit(closedEvt)
	}

	m.logger.Info().Uint64("generation", gen).Str("reference", reference).Msg("Opening document")
	start := time.Now()
	doc, err := m.engine.Open(ctx, reference)

	var events []domain.SessionEvent
	defer func() { m.emit(events...) }()
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation || m.closed {
		if doc != nil {
			if relErr := doc.Release(); relErr != nil {
				m.logger.Warn().Err(relErr).Msg("Failed to release superseded document")
			}
		}
		m.logger.Debug().Uint64("generation", gen).Uint64("current", m.generation).Msg("Open superseded")
		return domain.SessionInfo{}, domain.ErrSuperseded
	}
	m.opening = 0

	if err != nil {
		text := describe(err)
		m.container.ShowMessage(surface.OpenFailedMessage(text))
		m.logger.Warn().Err(err).Str("reference", reference).Msg("Failed to open document")
		events = append(events, m.event(domain.EventOpenFailed, gen, reference, 0, text))
		return domain.SessionInfo{}, err
	}

	count := doc.PageCount()
	elements := make([]surface.Element, count)
	for i := range elements {
		elements[i] = surface.Placeholder(gen, i+1, m.opts.PlaceholderHeight)
	}
	positions := m.container.Mount(elements)

	s := &session{
		generation: gen,
		reference:  reference,
		doc:        doc,
		slots:      make([]domain.PageSlot, count),
	}
	targets := make([]domain.ObservationTarget, count)
	for i := range s.slots {
		s.slots[i] = domain.PageSlot{Page: i + 1, Element: positions[i]}
		targets[i] = domain.ObservationTarget{Page: i + 1, Height: m.opts.PlaceholderHeight}
	}
	m.session = s
	m.geometry = false

	events = append(events, m.event(domain.EventSessionOpened, gen, reference, 0, fmt.Sprintf("%d pages", count)))
	fallback := m.scheduler.Observe(gen, targets)

	m.logger.Info().
		Uint64("generation", gen).
		Str("reference", reference).
		Int("pages", count).
		Bool("fallback", fallback).
		Dur("duration", time.Since(start)).
		Msg("Document session opened")

	return m.snapshotLocked(), nil
}

// TeardownSession discards the active session and restores the empty view. An
// open in progress is abandoned. Without a session it does nothing.
func (m *Manager) TeardownSession() {
	m.mu.Lock()
	if m.session == nil && m.opening == 0 {
		m.mu.Unlock()
		return
	}
	m.generation++
	m.opening = 0
	evt, had := m.teardownLocked()
	m.container.ShowMessage(surface.MessageEmpty)
	m.touchLocked()
	m.mu.Unlock()
	if had {
		m.emit(evt)
	}
}

// teardownLocked releases the active session, if any.
func (m *Manager) teardownLocked() (domain.SessionEvent, bool) {
	m.scheduler.Disconnect()
	m.tracker.Reset()
	s := m.session
	if s == nil {
		return domain.SessionEvent{}, false
	}
	m.session = nil
	if err := s.doc.Release(); err != nil {
		m.logger.Warn().Err(err).Str("reference", s.reference).Msg("Failed to release document")
	}
	m.logger.Info().Uint64("generation", s.generation).Str("reference", s.reference).Msg("Document session closed")
	return m.event(domain.EventSessionClosed, s.generation, s.reference, 0, ""), true
}

// Report feeds an intersection batch measured by the client for generation.
func (m *Manager) Report(generation uint64, entries []domain.IntersectionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkGenerationLocked(generation); err != nil {
		return err
	}
	if m.viewport == nil {
		return domain.ErrObservationUnavailable
	}
	m.touchLocked()
	m.viewport.Deliver(entries)
	return nil
}

// Scroll moves the server-side viewport of generation's session.
func (m *Manager) Scroll(generation uint64, top, height int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkGenerationLocked(generation); err != nil {
		return err
	}
	if m.viewport == nil {
		return domain.ErrObservationUnavailable
	}
	m.touchLocked()
	m.geometry = true
	m.viewport.Scroll(top, height)
	return nil
}

// Retry renders a Failed page again without waiting for it to re-enter the viewport.
func (m *Manager) Retry(page int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session
	if s == nil {
		return domain.ErrNoSession
	}
	slot := s.slot(page)
	if slot == nil {
		return domain.RenderError(domain.ReasonOutOfRange, fmt.Sprintf("page %d outside 1..%d", page, len(s.slots)), nil)
	}
	if st := m.tracker.Status(page); st != domain.StatusFailed {
		return fmt.Errorf("%w: page %d is %s, only failed pages can be retried", domain.ErrInvalidTransition, page, st)
	}
	m.touchLocked()
	if !m.scheduler.Dispatch(s.generation, page) {
		return fmt.Errorf("%w: page %d could not be claimed", domain.ErrInvalidTransition, page)
	}
	return nil
}

// Session returns a snapshot of the active session.
func (m *Manager) Session() (domain.SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return domain.SessionInfo{}, domain.ErrNoSession
	}
	return m.snapshotLocked(), nil
}

// Elements returns the current content of the presentation surface.
func (m *Manager) Elements() []surface.Element {
	return m.container.Elements()
}

// Container exposes the presentation surface for read access.
func (m *Manager) Container() *surface.Container {
	return m.container
}

// Canvas returns the painted canvas of a rendered page of the active session.
func (m *Manager) Canvas(page int) (*surface.Canvas, error) {
	m.mu.Lock()
	s := m.session
	if s == nil {
		m.mu.Unlock()
		return nil, domain.ErrNoSession
	}
	slot := s.slot(page)
	if slot == nil {
		m.mu.Unlock()
		return nil, domain.RenderError(domain.ReasonOutOfRange, fmt.Sprintf("page %d outside 1..%d", page, len(s.slots)), nil)
	}
	status := m.tracker.Status(page)
	m.mu.Unlock()

	if status != domain.StatusRendered {
		return nil, fmt.Errorf("%w: page %d is %s", ErrNotRendered, page, status)
	}
	c, ok := m.container.Canvas(page)
	if !ok {
		return nil, fmt.Errorf("%w: page %d", ErrNotRendered, page)
	}
	return c, nil
}

// ErrNotRendered is returned by Canvas for pages without a painted canvas.
var ErrNotRendered = errors.New("page not rendered")

// Wait blocks until every dispatched render task has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// LastActive returns when the manager last handled a request.
func (m *Manager) LastActive() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActive
}

// Close tears down the session and refuses further opens. It waits for render
// tasks to drain.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.generation++
	m.opening = 0
	evt, had := m.teardownLocked()
	m.container.ShowMessage(surface.MessageEmpty)
	m.mu.Unlock()
	if had {
		m.emit(evt)
	}
	m.wg.Wait()
}

func (m *Manager) checkGenerationLocked(generation uint64) error {
	if m.closed {
		return domain.ErrClosed
	}
	if m.session == nil {
		return domain.ErrNoSession
	}
	if generation != m.session.generation {
		return fmt.Errorf("%w: got %d, current %d", domain.ErrStaleGeneration, generation, m.session.generation)
	}
	return nil
}

// current returns the active session if it still belongs to generation.
func (m *Manager) current(generation uint64) *session {
	if m.session == nil || m.session.generation != generation {
		return nil
	}
	return m.session
}

func (m *Manager) snapshotLocked() domain.SessionInfo {
	s := m.session
	pages := make([]domain.PageSlot, len(s.slots))
	for i, slot := range s.slots {
		slot.Status = m.tracker.Status(slot.Page)
		slot.Reason = m.tracker.Reason(slot.Page)
		pages[i] = slot
	}
	return domain.SessionInfo{
		Generation: s.generation,
		Reference:  s.reference,
		PageCount:  len(s.slots),
		Fallback:   m.scheduler.Fallback(),
		Pages:      pages,
	}
}

func (m *Manager) touchLocked() {
	m.lastActive = time.Now()
}

func (m *Manager) event(t domain.EventType, gen uint64, reference string, page int, payload string) domain.SessionEvent {
	return domain.SessionEvent{
		Type:       t,
		Generation: gen,
		Reference:  reference,
		PageNumber: page,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}

func (m *Manager) emit(events ...domain.SessionEvent) {
	if m.opts.OnEvent == nil {
		return
	}
	for _, e := range events {
		m.opts.OnEvent(e)
	}
}

// describe turns an error into the short text shown to users.
func describe(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
