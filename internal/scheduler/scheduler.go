// Package scheduler turns viewport intersection batches into page render work.
package scheduler

import (
	"errors"

	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/observability"
	"github.com/spherical/pdf-viewer/internal/tracker"
)

// State is the observation state of one page slot.
type State int

const (
	StateNotObserved State = iota
	StateObserved
	StateDispatched
)

func (s State) String() string {
	switch s {
	case StateObserved:
		return "observed"
	case StateDispatched:
		return "dispatched"
	default:
		return "not_observed"
	}
}

// Dispatcher starts the render task for page. It must not block.
type Dispatcher func(generation uint64, page int)

// Scheduler registers the active session's pages with an Observer and dispatches
// a render for every intersecting page the Tracker lets it claim.
//
// A Scheduler is owned by one session manager and is not safe for concurrent use.
type Scheduler struct {
	observer domain.Observer
	tracker  *tracker.Tracker
	dispatch Dispatcher
	opts     domain.ObservationOptions
	logger   *observability.Logger

	generation uint64
	states     map[int]State
	fallback   bool
}

// New creates a scheduler. A nil observer always takes the eager fallback path.
func New(observer domain.Observer, tr *tracker.Tracker, dispatch Dispatcher, opts domain.ObservationOptions, logger *observability.Logger) *Scheduler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Scheduler{
		observer: observer,
		tracker:  tr,
		dispatch: dispatch,
		opts:     opts,
		logger:   logger,
		states:   make(map[int]State),
	}
}

// Observe registers targets for the session identified by generation. When the
// observer is unavailable every page is dispatched immediately in index order.
// It reports whether that fallback was taken.
func (s *Scheduler) Observe(generation uint64, targets []domain.ObservationTarget) bool {
	s.generation = generation
	s.states = make(map[int]State, len(targets))
	s.fallback = false
	for _, t := range targets {
		s.states[t.Page] = StateObserved
	}

	var err error
	if s.observer == nil {
		err = domain.ErrObservationUnavailable
	} else {
		err = s.observer.Observe(targets, s.opts, func(entries []domain.IntersectionEntry) {
			s.Notify(generation, entries)
		})
	}
	if err == nil {
		return false
	}

	if errors.Is(err, domain.ErrObservationUnavailable) {
		s.logger.Info().Uint64("generation", generation).Msg("Viewport observation unavailable, rendering all pages")
	} else {
		s.logger.Warn().Err(err).Uint64("generation", generation).Msg("Viewport observation setup failed, rendering all pages")
	}

	s.fallback = true
	for _, t := range targets {
		s.claimAndDispatch(generation, t.Page)
	}
	return true
}

// Notify processes one intersection batch in the order received. Batches from a
// generation other than the current one are discarded. It returns the number of
// renders dispatched.
func (s *Scheduler) Notify(generation uint64, entries []domain.IntersectionEntry) int {
	if generation == 0 || generation != s.generation {
		s.logger.Debug().
			Uint64("generation", generation).
			Uint64("current", s.generation).
			Msg("Discarding stale intersection batch")
		return 0
	}

	dispatched := 0
	for _, e := range entries {
		if !e.Intersecting {
			continue
		}
		if s.claimAndDispatch(generation, e.Page) {
			dispatched++
		}
	}
	return dispatched
}

// Reobserve returns a page to Observed after its render failed so that a later
// intersection may claim it again.
func (s *Scheduler) Reobserve(page int) {
	if _, ok := s.states[page]; ok {
		s.states[page] = StateObserved
	}
}

// Dispatch claims and dispatches one page outside of any intersection batch, as
// a manual retry does.
func (s *Scheduler) Dispatch(generation uint64, page int) bool {
	if generation == 0 || generation != s.generation {
		return false
	}
	return s.claimAndDispatch(generation, page)
}

// Disconnect stops observation and forgets the observation set.
func (s *Scheduler) Disconnect() {
	if s.observer != nil {
		s.observer.Disconnect()
	}
	s.generation = 0
	s.states = make(map[int]State)
	s.fallback = false
}

// State returns the observation state of page.
func (s *Scheduler) State(page int) State {
	return s.states[page]
}

// Observed returns the size of the observation set.
func (s *Scheduler) Observed() int {
	return len(s.states)
}

// Fallback reports whether the current session renders eagerly.
func (s *Scheduler) Fallback() bool {
	return s.fallback
}

// Generation returns the generation currently being observed, 0 if none.
func (s *Scheduler) Generation() uint64 {
	return s.generation
}

func (s *Scheduler) claimAndDispatch(generation uint64, page int) bool {
	if s.states[page] == StateNotObserved {
		return false
	}
	if !s.tracker.Claim(page) {
		return false
	}
	s.states[page] = StateDispatched
	s.dispatch(generation, page)
	return true
}
