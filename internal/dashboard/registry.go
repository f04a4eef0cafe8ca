package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Compunic-startup/compunic-management/internal/model"
	"github.com/Compunic-startup/compunic-management/internal/notify"
	"github.com/Compunic-startup/compunic-management/internal/store"
)

// ErrConsoleMounted is returned by Open when the session already holds
// a different console's dashboard. The caller must close the session
// before switching consoles.
var ErrConsoleMounted = errors.New("dashboard: a different console is already mounted for this session")

// Registry tracks the mounted dashboard of every live session, so a
// session teardown can cancel every subscription that session opened.
type Registry struct {
	store  store.Store
	notify *notify.Notifier
	now    func() time.Time

	mu   sync.Mutex
	open map[string]Dashboard
}

func NewRegistry(st store.Store, n *notify.Notifier, now func() time.Time) *Registry {
	return &Registry{
		store:  st,
		notify: n,
		now:    now,
		open:   make(map[string]Dashboard),
	}
}

// Open mounts the dashboard for an admitted principal's role, or
// returns the one already mounted for this session. A session holds at
// most one console at a time; opening a different one fails with
// ErrConsoleMounted rather than silently returning the old mount.
func (r *Registry) Open(ctx context.Context, who model.Principal) (Dashboard, error) {
	r.mu.Lock()
	if d, ok := r.open[who.ID]; ok {
		r.mu.Unlock()
		if d.Role() != mountRole(who.Role) {
			return nil, ErrConsoleMounted
		}
		return d, nil
	}
	r.mu.Unlock()

	var (
		d   Dashboard
		err error
	)
	switch who.Role {
	case model.RoleAdmin:
		d, err = OpenAdmin(ctx, r.store, who, r.notify, r.now)
	case model.RoleDeveloper:
		d, err = OpenDeveloper(ctx, r.store, who, r.notify, r.now)
	case model.RoleHR:
		d, err = OpenHR(ctx, r.store, who, r.notify, r.now)
	default:
		// Tester doubles as the safe-default dashboard.
		d, err = OpenTester(ctx, r.store, who, r.notify, r.now)
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.open[who.ID]; ok {
		// Lost the race with a concurrent mount; keep the first one.
		r.mu.Unlock()
		d.Close()
		if existing.Role() != mountRole(who.Role) {
			return nil, ErrConsoleMounted
		}
		return existing, nil
	}
	r.open[who.ID] = d
	r.mu.Unlock()
	return d, nil
}

// mountRole maps a principal's role to the dashboard it mounts; every
// role not listed in the Open switch falls through to the tester view.
func mountRole(role model.Role) model.Role {
	switch role {
	case model.RoleAdmin, model.RoleDeveloper, model.RoleHR:
		return role
	default:
		return model.RoleTester
	}
}

func (r *Registry) Get(principalID string) (Dashboard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.open[principalID]
	return d, ok
}

// CloseSession unmounts one session's dashboard, cancelling all its
// subscriptions. Safe to call for a session that never mounted.
func (r *Registry) CloseSession(principalID string) {
	r.mu.Lock()
	d, ok := r.open[principalID]
	delete(r.open, principalID)
	r.mu.Unlock()
	if ok {
		d.Close()
	}
}

// CloseAll unmounts everything; called on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	dashboards := make([]Dashboard, 0, len(r.open))
	for _, d := range r.open {
		dashboards = append(dashboards, d)
	}
	r.open = make(map[string]Dashboard)
	r.mu.Unlock()
	for _, d := range dashboards {
		d.Close()
	}
}

// Mounted reports how many sessions currently hold a dashboard.
func (r *Registry) Mounted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}
