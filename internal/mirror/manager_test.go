package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Compunic-startup/compunic-management/internal/store"
)

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc(store.Snapshot) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestOpenDeliversSnapshots(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	m := NewManager(mem)
	defer m.Close()

	var got []int
	var mu sync.Mutex
	_, err := m.Open(ctx, "tickets", store.Query{Collection: "tickets"}, func(s store.Snapshot) {
		mu.Lock()
		got = append(got, len(s))
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := mem.Create(ctx, "tickets", map[string]any{"status": "Open"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("expected deliveries [0 1], got %v", got)
	}
}

func TestCancelDropsLateDeliveries(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	m := NewManager(mem)
	defer m.Close()

	c := &counter{}
	h, err := m.Open(ctx, "tickets", store.Query{Collection: "tickets"}, c.inc)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	m.Wait()
	h.Cancel()
	h.Cancel() // idempotent

	if _, err := mem.Create(ctx, "tickets", map[string]any{"status": "Open"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	m.Wait()

	if c.get() != 1 {
		t.Fatalf("expected only the initial delivery, got %d", c.get())
	}
	if m.OpenCount() != 0 {
		t.Fatalf("expected no live subscriptions, got %d", m.OpenCount())
	}
}

func TestReopenReplacesPreviousQuery(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	m := NewManager(mem)
	defer m.Close()

	if err := mem.Set(ctx, "attendance", "2026-08-27_u1", map[string]any{"date": "2026-08-27", "userId": "u1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := mem.Set(ctx, "attendance", "2026-08-28_u1", map[string]any{"date": "2026-08-28", "userId": "u1"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	var mu sync.Mutex
	var last store.Snapshot
	record := func(s store.Snapshot) {
		mu.Lock()
		last = s
		mu.Unlock()
	}

	dayQuery := func(date string) store.Query {
		return store.Query{Collection: "attendance", Wheres: []store.Where{{Field: "date", Op: store.OpEq, Value: date}}}
	}
	if _, err := m.Open(ctx, "attendance", dayQuery("2026-08-27"), record); err != nil {
		t.Fatalf("open: %v", err)
	}
	m.Wait()

	// Same logical name, new filter: the old subscription must be gone.
	if _, err := m.Open(ctx, "attendance", dayQuery("2026-08-28"), record); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	m.Wait()

	if m.OpenCount() != 1 {
		t.Fatalf("expected exactly one live subscription, got %d", m.OpenCount())
	}

	mu.Lock()
	if len(last) != 1 || last[0].Fields["date"] != "2026-08-28" {
		mu.Unlock()
		t.Fatalf("expected mirror for the new filter, got %v", last)
	}
	mu.Unlock()

	// A write matching only the old filter must not reach the callback.
	if err := mem.Set(ctx, "attendance", "2026-08-27_u2", map[string]any{"date": "2026-08-27", "userId": "u2"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(last) != 1 || last[0].Fields["date"] != "2026-08-28" {
		t.Fatalf("old query leaked a delivery: %v", last)
	}
}

func TestConcurrentReopenLeavesNoOrphans(t *testing.T) {
	ctx := context.Background()
	c := &counter{}

	// Racing Opens on one logical name must end with exactly one
	// registered handle; after Close the store may hold no live
	// subscription at all.
	for attempt := 0; attempt < 200; attempt++ {
		mem := store.NewMemory()
		m := NewManager(mem)

		const racers = 8
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if _, err := m.Open(ctx, "attendance", store.Query{Collection: "attendance"}, c.inc); err != nil {
					t.Errorf("open: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		if got := m.OpenCount(); got != 1 {
			t.Fatalf("attempt %d: expected one live subscription, got %d", attempt, got)
		}
		m.Close()
		if got := mem.SubscriberCount(); got != 0 {
			t.Fatalf("attempt %d: %d subscriptions still live after Close", attempt, got)
		}
		if got := m.OpenCount(); got != 0 {
			t.Fatalf("attempt %d: open count %d after Close", attempt, got)
		}
	}
}

func TestCloseCancelsEverything(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	m := NewManager(mem)

	tickets, tasks := &counter{}, &counter{}
	if _, err := m.Open(ctx, "tickets", store.Query{Collection: "tickets"}, tickets.inc); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := m.Open(ctx, "tasks", store.Query{Collection: "tasks"}, tasks.inc); err != nil {
		t.Fatalf("open: %v", err)
	}
	m.Wait()
	m.Close()
	m.Close() // idempotent

	if _, err := mem.Create(ctx, "tickets", map[string]any{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := mem.Create(ctx, "tasks", map[string]any{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if tickets.get() != 1 || tasks.get() != 1 {
		t.Fatalf("expected no deliveries after close, got tickets=%d tasks=%d", tickets.get(), tasks.get())
	}
	if m.OpenCount() != 0 {
		t.Fatalf("expected no live subscriptions, got %d", m.OpenCount())
	}
	if _, err := m.Open(ctx, "tickets", store.Query{Collection: "tickets"}, tickets.inc); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

// failingStore wraps Memory but rejects subscriptions on one
// collection, to check that one failed mirror leaves the others alive.
type failingStore struct {
	*store.Memory
	broken string
}

func (f *failingStore) Subscribe(ctx context.Context, q store.Query, fn func(store.Snapshot)) (store.CancelFunc, error) {
	if q.Collection == f.broken {
		return nil, errors.New("permission denied")
	}
	return f.Memory.Subscribe(ctx, q, fn)
}

func TestMirrorsFailIndependently(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	st := &failingStore{Memory: mem, broken: "expenses"}
	m := NewManager(st)
	defer m.Close()

	c := &counter{}
	if _, err := m.Open(ctx, "tickets", store.Query{Collection: "tickets"}, c.inc); err != nil {
		t.Fatalf("open tickets: %v", err)
	}
	if _, err := m.Open(ctx, "expenses", store.Query{Collection: "expenses"}, c.inc); err == nil {
		t.Fatalf("expected expenses subscription to fail")
	}

	if _, err := mem.Create(ctx, "tickets", map[string]any{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	m.Wait()

	if c.get() != 2 {
		t.Fatalf("expected ticket mirror to keep updating, got %d deliveries", c.get())
	}
}
