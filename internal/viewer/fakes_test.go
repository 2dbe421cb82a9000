package viewer

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/spherical/pdf-viewer/internal/domain"
)

// fakeEngine opens documents from a fixed table of page counts.
type fakeEngine struct {
	mu      sync.Mutex
	pages   map[string]int
	openErr map[string]error
	gates   map[string]chan struct{} // blocks Open until closed
	docs    map[string][]*fakeDoc
	setup   map[string]func(*fakeDoc)
	opened  chan string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		pages:   make(map[string]int),
		openErr: make(map[string]error),
		gates:   make(map[string]chan struct{}),
		docs:    make(map[string][]*fakeDoc),
		setup:   make(map[string]func(*fakeDoc)),
	}
}

func (e *fakeEngine) add(ref string, pages int) *fakeEngine {
	e.pages[ref] = pages
	return e
}

func (e *fakeEngine) Open(ctx context.Context, ref string) (domain.Document, error) {
	e.mu.Lock()
	gate := e.gates[ref]
	e.mu.Unlock()
	if e.opened != nil {
		e.opened <- ref
	}
	if gate != nil {
		<-gate
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err, ok := e.openErr[ref]; ok {
		return nil, err
	}
	n, ok := e.pages[ref]
	if !ok {
		return nil, domain.OpenError(domain.ReasonUnreachable, "cannot fetch "+ref, domain.ErrNotFound)
	}
	doc := newFakeDoc(n)
	if setup := e.setup[ref]; setup != nil {
		setup(doc)
	}
	e.docs[ref] = append(e.docs[ref], doc)
	return doc, nil
}

func (e *fakeEngine) doc(ref string) *fakeDoc {
	e.mu.Lock()
	defer e.mu.Unlock()
	docs := e.docs[ref]
	if len(docs) == 0 {
		return nil
	}
	return docs[len(docs)-1]
}

// fakeDoc renders solid images. Individual pages can be held or made to fail.
type fakeDoc struct {
	mu       sync.Mutex
	pages    int
	calls    map[int]int
	gates    map[int]chan struct{}
	started  chan int
	fail     map[int]error
	released bool
}

func newFakeDoc(pages int) *fakeDoc {
	return &fakeDoc{
		pages: pages,
		calls: make(map[int]int),
		gates: make(map[int]chan struct{}),
		fail:  make(map[int]error),
	}
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) RenderPage(ctx context.Context, page int, target domain.Surface) error {
	d.mu.Lock()
	d.calls[page]++
	gate := d.gates[page]
	started := d.started
	d.mu.Unlock()

	if started != nil {
		started <- page
	}
	if gate != nil {
		<-gate
	}

	d.mu.Lock()
	err := d.fail[page]
	released := d.released
	d.mu.Unlock()

	if released {
		return domain.RenderError(domain.ReasonReleased, "document released", nil)
	}
	if err != nil {
		return err
	}
	return target.Paint(image.NewRGBA(image.Rect(0, 0, 600, 400+page)))
}

func (d *fakeDoc) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
	return nil
}

func (d *fakeDoc) hold(page int) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan struct{})
	d.gates[page] = ch
	return ch
}

func (d *fakeDoc) failPage(page int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.fail, page)
		return
	}
	d.fail[page] = err
}

func (d *fakeDoc) renderCalls(page int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[page]
}

func (d *fakeDoc) totalCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		n += c
	}
	return n
}

func (d *fakeDoc) isReleased() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

// eventLog records session events.
type eventLog struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (l *eventLog) record(e domain.SessionEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count(t domain.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func renderFailure(page int) error {
	return domain.RenderError(domain.ReasonEngineFailure, fmt.Sprintf("failed to render page %d", page), nil)
}
