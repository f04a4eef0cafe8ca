package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store used by tests and local development.
// Deliveries happen synchronously on the writer's goroutine, in write
// order: deliverMu spans each write and its dispatch, so a mirror can
// never observe an older snapshot after a newer one. Subscriber
// callbacks therefore must not write back into the store; they hand
// snapshots off instead, which is all the mirror manager does.
type Memory struct {
	deliverMu sync.Mutex

	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	subs        map[int64]*memorySub
	nextSub     int64
}

type memorySub struct {
	query     Query
	fn        func(Snapshot)
	cancelled bool
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]map[string]any),
		subs:        make(map[int64]*memorySub),
	}
}

func (m *Memory) Subscribe(_ context.Context, q Query, fn func(Snapshot)) (CancelFunc, error) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	sub := &memorySub{query: q, fn: fn}
	m.subs[id] = sub
	snapshot := q.Apply(m.loadLocked(q.Collection))
	m.mu.Unlock()

	fn(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			sub.cancelled = true
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}, nil
}

func (m *Memory) GetAll(_ context.Context, q Query) (Snapshot, error) {
	m.mu.Lock()
	docs := m.loadLocked(q.Collection)
	m.mu.Unlock()
	return q.Apply(docs), nil
}

func (m *Memory) Set(_ context.Context, collection, id string, fields map[string]any) error {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()
	m.mu.Lock()
	docs := m.collectionLocked(collection)
	existing, ok := docs[id]
	if !ok {
		existing = make(map[string]any)
		docs[id] = existing
	}
	for k, v := range fields {
		existing[k] = v
	}
	pending := m.snapshotsLocked(collection)
	m.mu.Unlock()
	dispatch(pending)
	return nil
}

func (m *Memory) Create(_ context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()
	m.mu.Lock()
	docs := m.collectionLocked(collection)
	doc := make(map[string]any, len(fields))
	for k, v := range fields {
		doc[k] = v
	}
	docs[id] = doc
	pending := m.snapshotsLocked(collection)
	m.mu.Unlock()
	dispatch(pending)
	return id, nil
}

func (m *Memory) Update(_ context.Context, collection, id string, fields map[string]any) error {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()
	m.mu.Lock()
	docs := m.collectionLocked(collection)
	existing, ok := docs[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	for k, v := range fields {
		existing[k] = v
	}
	pending := m.snapshotsLocked(collection)
	m.mu.Unlock()
	dispatch(pending)
	return nil
}

type delivery struct {
	fn       func(Snapshot)
	snapshot Snapshot
}

// snapshotsLocked recomputes the result set of every live query on the
// written collection. Callbacks run outside mu but inside deliverMu,
// preserving write order across concurrent writers.
func (m *Memory) snapshotsLocked(collection string) []delivery {
	var pending []delivery
	docs := m.loadLocked(collection)
	for _, sub := range m.subs {
		if sub.cancelled || sub.query.Collection != collection {
			continue
		}
		pending = append(pending, delivery{fn: sub.fn, snapshot: sub.query.Apply(docs)})
	}
	return pending
}

func dispatch(pending []delivery) {
	for _, d := range pending {
		d.fn(d.snapshot)
	}
}

// SubscriberCount reports live subscriptions; tests use it to prove
// teardown released everything.
func (m *Memory) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *Memory) collectionLocked(name string) map[string]map[string]any {
	docs, ok := m.collections[name]
	if !ok {
		docs = make(map[string]map[string]any)
		m.collections[name] = docs
	}
	return docs
}

func (m *Memory) loadLocked(name string) []Document {
	raw := m.collections[name]
	docs := make([]Document, 0, len(raw))
	for id, fields := range raw {
		copied := make(map[string]any, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
		docs = append(docs, Document{ID: id, Fields: copied})
	}
	return docs
}
