// Package mirror keeps in-memory mirrors of remote queries alive for
// one dashboard instance. Every live query is registered under a
// logical name; deliveries from all of them are serialized onto a
// single goroutine, so mirror callbacks never race each other and
// never need locks of their own.
package mirror

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Compunic-startup/compunic-management/internal/store"
)

// ErrClosed is returned by Open after the manager has been torn down.
var ErrClosed = errors.New("mirror: manager closed")

// Manager owns every subscription a dashboard opens. Close tears all
// of them down; a dashboard must call it on every exit path, since a
// subscription left open holds a live query for the life of the
// process.
type Manager struct {
	store store.Store

	mu      sync.Mutex
	handles map[string]*Handle
	closed  bool

	events chan func()
	done   chan struct{}
	open   atomic.Int64
}

// Handle is one logical live query. Cancel is idempotent, and once it
// returns no further delivery reaches the callback, even if the
// backend emits a late update.
type Handle struct {
	name      string
	cancel    store.CancelFunc
	once      sync.Once
	cancelled atomic.Bool
	manager   *Manager
}

func (h *Handle) Cancel() {
	h.once.Do(func() {
		h.cancelled.Store(true)
		h.cancel()
		h.manager.open.Add(-1)
	})
}

func NewManager(st store.Store) *Manager {
	m := &Manager{
		store:   st,
		handles: make(map[string]*Handle),
		events:  make(chan func(), 128),
		done:    make(chan struct{}),
	}
	go m.loop()
	return m
}

func (m *Manager) loop() {
	for {
		select {
		case fn := <-m.events:
			fn()
		case <-m.done:
			return
		}
	}
}

func (m *Manager) post(fn func()) {
	select {
	case m.events <- fn:
	case <-m.done:
	}
}

// Open registers a live query under a logical name. Opening a name
// that is already registered cancels the previous subscription first,
// so a changed filter (say, a new date) never leaves two overlapping
// mirrors behind one view. The cancel-previous/insert-new swap is one
// critical section: however many Opens race on a name, exactly one
// handle remains registered and every displaced one is cancelled. The
// callback runs on the manager goroutine and receives whole-snapshot
// replacements.
func (m *Manager) Open(ctx context.Context, name string, q store.Query, fn func(store.Snapshot)) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if previous := m.handles[name]; previous != nil {
		previous.Cancel()
	}

	h := &Handle{name: name, manager: m}
	cancel, err := m.store.Subscribe(ctx, q, func(snapshot store.Snapshot) {
		m.post(func() {
			if h.cancelled.Load() {
				return
			}
			fn(snapshot)
		})
	})
	if err != nil {
		return nil, err
	}
	h.cancel = cancel
	m.open.Add(1)
	m.handles[name] = h
	return h, nil
}

// OpenAll opens several queries and cancels the ones already opened if
// any of them fails, so a dashboard mount is all-or-nothing.
func (m *Manager) OpenAll(ctx context.Context, queries map[string]store.Query, fns map[string]func(store.Snapshot)) error {
	var opened []*Handle
	for name, q := range queries {
		fn, ok := fns[name]
		if !ok {
			continue
		}
		h, err := m.Open(ctx, name, q, fn)
		if err != nil {
			for _, prev := range opened {
				prev.Cancel()
			}
			return err
		}
		opened = append(opened, h)
	}
	return nil
}

// Close cancels every live query and stops the delivery loop.
// Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.handles = nil
	m.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
	close(m.done)
}

// OpenCount reports live subscriptions; exported as a gauge so a leak
// shows up on /metrics.
func (m *Manager) OpenCount() int64 {
	return m.open.Load()
}

// Wait flushes the delivery queue: it returns once every delivery
// posted before the call has run. Used by callers that need to observe
// a write's effect on the projected state.
func (m *Manager) Wait() {
	flushed := make(chan struct{})
	m.post(func() { close(flushed) })
	select {
	case <-flushed:
	case <-m.done:
	}
}
