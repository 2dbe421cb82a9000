package viewer

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/observability"
)

var (
	// ErrViewerNotFound is returned for unknown viewer ids.
	ErrViewerNotFound = errors.New("viewer not found")
	// ErrTooManyViewers is returned when the registry is full.
	ErrTooManyViewers = errors.New("too many open viewers")
)

// Factory builds a new Manager for the viewer id.
type Factory func(id string) *Manager

// Registry holds independent viewers keyed by id.
type Registry struct {
	mu      sync.RWMutex
	viewers map[string]*Manager
	factory Factory
	max     int
	logger  *observability.Logger
}

// NewRegistry creates a registry that allows at most max viewers (0 for no limit).
func NewRegistry(factory Factory, max int, logger *observability.Logger) *Registry {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Registry{
		viewers: make(map[string]*Manager),
		factory: factory,
		max:     max,
		logger:  logger,
	}
}

// Create builds and registers a new viewer.
func (r *Registry) Create() (string, *Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.viewers) >= r.max {
		return "", nil, ErrTooManyViewers
	}
	id := uuid.New().String()
	m := r.factory(id)
	r.viewers[id] = m
	r.logger.Info().Str("viewer_id", id).Int("viewers", len(r.viewers)).Msg("Viewer created")
	return id, m, nil
}

// Get looks up a viewer.
func (r *Registry) Get(id string) (*Manager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.viewers[id]
	if !ok {
		return nil, ErrViewerNotFound
	}
	return m, nil
}

// Remove closes and forgets a viewer.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	m, ok := r.viewers[id]
	delete(r.viewers, id)
	r.mu.Unlock()
	if !ok {
		return ErrViewerNotFound
	}
	m.Close()
	r.logger.Info().Str("viewer_id", id).Msg("Viewer removed")
	return nil
}

// Len returns the number of registered viewers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.viewers)
}

// Reap removes viewers that have been idle for longer than idle.
func (r *Registry) Reap(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()
	var stale []*Manager
	for id, m := range r.viewers {
		if m.LastActive().Before(cutoff) {
			stale = append(stale, m)
			delete(r.viewers, id)
		}
	}
	r.mu.Unlock()

	for _, m := range stale {
		m.Close()
	}
	if len(stale) > 0 {
		r.logger.Info().Int("reaped", len(stale)).Msg("Closed idle viewers")
	}
	return len(stale)
}

// CloseAll closes every viewer.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	viewers := r.viewers
	r.viewers = make(map[string]*Manager)
	r.mu.Unlock()

	for _, m := range viewers {
		m.Close()
	}
}

// Summary lists the viewer ids with their active document, if any.
func (r *Registry) Summary() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.viewers))
	for id, m := range r.viewers {
		info, err := m.Session()
		if errors.Is(err, domain.ErrNoSession) {
			out[id] = ""
			continue
		}
		out[id] = info.Reference
	}
	return out
}
