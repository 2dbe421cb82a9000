package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/tracker"
	"github.com/spherical/pdf-viewer/internal/viewport"
)

type dispatchLog struct {
	calls []int
	gens  []uint64
}

func (d *dispatchLog) dispatch(generation uint64, page int) {
	d.calls = append(d.calls, page)
	d.gens = append(d.gens, generation)
}

type failingObserver struct{ err error }

func (f failingObserver) Observe([]domain.ObservationTarget, domain.ObservationOptions, func([]domain.IntersectionEntry)) error {
	return f.err
}
func (failingObserver) Disconnect() {}

func targets(n int) []domain.ObservationTarget {
	ts := make([]domain.ObservationTarget, n)
	for i := range ts {
		ts[i] = domain.ObservationTarget{Page: i + 1, Height: domain.DefaultPlaceholderHeight}
	}
	return ts
}

func TestObserve_NothingVisibleDispatchesNothing(t *testing.T) {
	log := &dispatchLog{}
	vp := viewport.New()
	s := New(vp, tracker.New(), log.dispatch, domain.DefaultObservationOptions(), nil)

	assert.False(t, s.Observe(1, targets(3)))
	assert.Empty(t, log.calls)
	assert.Equal(t, 3, s.Observed())
	assert.Equal(t, StateObserved, s.State(2))
}

func TestNotify_DispatchesOnlyClaimedPages(t *testing.T) {
	log := &dispatchLog{}
	tr := tracker.New()
	s := New(viewport.New(), tr, log.dispatch, domain.DefaultObservationOptions(), nil)
	s.Observe(7, targets(3))

	batch := []domain.IntersectionEntry{
		{Page: 2, Intersecting: true},
		{Page: 3, Intersecting: false},
	}
	assert.Equal(t, 1, s.Notify(7, batch))

	// Rapid re-entry of the same page before its render completes.
	for i := 0; i < 20; i++ {
		s.Notify(7, []domain.IntersectionEntry{{Page: 2, Intersecting: false}})
		s.Notify(7, []domain.IntersectionEntry{{Page: 2, Intersecting: true}})
	}

	assert.Equal(t, []int{2}, log.calls)
	assert.Equal(t, []uint64{7}, log.gens)
	assert.Equal(t, StateDispatched, s.State(2))
	assert.Equal(t, domain.StatusQueued, tr.Status(2))
	assert.Equal(t, domain.StatusUnseen, tr.Status(1))
}

func TestNotify_DiscardsStaleGeneration(t *testing.T) {
	log := &dispatchLog{}
	s := New(viewport.New(), tracker.New(), log.dispatch, domain.DefaultObservationOptions(), nil)
	s.Observe(2, targets(3))

	assert.Zero(t, s.Notify(1, []domain.IntersectionEntry{{Page: 1, Intersecting: true}}))
	assert.Empty(t, log.calls)

	s.Disconnect()
	assert.Zero(t, s.Notify(2, []domain.IntersectionEntry{{Page: 1, Intersecting: true}}))
	assert.Empty(t, log.calls)
	assert.Zero(t, s.Observed())
}

func TestNotify_IgnoresUnobservedPages(t *testing.T) {
	log := &dispatchLog{}
	s := New(viewport.New(), tracker.New(), log.dispatch, domain.DefaultObservationOptions(), nil)
	s.Observe(1, targets(2))

	assert.Zero(t, s.Notify(1, []domain.IntersectionEntry{{Page: 5, Intersecting: true}}))
}

func TestObserve_FallbackRendersAllInOrder(t *testing.T) {
	cases := map[string]domain.Observer{
		"nil observer": nil,
		"unsupported":  viewport.Unsupported{},
		"setup error":  failingObserver{err: errors.New("boom")},
	}

	for name, observer := range cases {
		t.Run(name, func(t *testing.T) {
			log := &dispatchLog{}
			s := New(observer, tracker.New(), log.dispatch, domain.DefaultObservationOptions(), nil)

			assert.True(t, s.Observe(3, targets(4)))
			assert.True(t, s.Fallback())
			assert.Equal(t, []int{1, 2, 3, 4}, log.calls)
		})
	}
}

func TestReobserve_AllowsReclaimAfterFailure(t *testing.T) {
	log := &dispatchLog{}
	tr := tracker.New()
	s := New(viewport.New(), tr, log.dispatch, domain.DefaultObservationOptions(), nil)
	s.Observe(1, targets(2))

	s.Notify(1, []domain.IntersectionEntry{{Page: 1, Intersecting: true}})
	require.NoError(t, tr.MarkRendering(1))
	require.NoError(t, tr.MarkFailed(1, "boom"))
	s.Reobserve(1)
	assert.Equal(t, StateObserved, s.State(1))

	assert.True(t, s.Dispatch(1, 1))
	assert.Equal(t, []int{1, 1}, log.calls)
	assert.False(t, s.Dispatch(99, 1), "wrong generation")
}

func TestObserve_GeometryDrivenDispatch(t *testing.T) {
	log := &dispatchLog{}
	vp := viewport.New()
	s := New(vp, tracker.New(), log.dispatch, domain.DefaultObservationOptions(), nil)
	s.Observe(4, targets(3))

	vp.Scroll(900, 600)

	assert.Equal(t, []int{2}, log.calls)
}
