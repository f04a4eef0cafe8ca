package gate

import (
	"context"
	"testing"
	"time"

	"github.com/Compunic-startup/compunic-management/internal/model"
	"github.com/Compunic-startup/compunic-management/internal/session"
)

func resolved(role model.Role) session.Session {
	return session.Session{
		Principal: model.Principal{ID: "u1", Email: "ana@compunic.com", Role: role},
		Resolved:  true,
	}
}

func TestAdmittedBeforeTimeoutStaysAdmitted(t *testing.T) {
	g := New([]model.Role{model.RoleAdmin, model.RoleTester}, 50*time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	g.OnResolved(resolved(model.RoleTester))

	if state := g.State(); state != StateAdmitted {
		t.Fatalf("expected admitted, got %s", state)
	}

	// The timer must have been cancelled: well past the deadline the
	// gate still reads admitted, never TimedOut.
	time.Sleep(100 * time.Millisecond)
	if state := g.State(); state != StateAdmitted {
		t.Fatalf("late timeout fired: %s", state)
	}
	if s, ok := g.Session(); !ok || s.Principal.Role != model.RoleTester {
		t.Fatalf("expected admitted session, got %+v ok=%v", s, ok)
	}
}

func TestTimeoutExactlyOnce(t *testing.T) {
	g := New([]model.Role{model.RoleAdmin}, 20*time.Millisecond)

	state := g.Wait(context.Background())
	if state != StateTimedOut {
		t.Fatalf("expected timed_out, got %s", state)
	}

	// Late resolution after the timeout must be ignored; TimedOut is
	// terminal and distinct from Denied.
	g.OnResolved(resolved(model.RoleAdmin))
	if state := g.State(); state != StateTimedOut {
		t.Fatalf("late resolution overrode timeout: %s", state)
	}
	if _, ok := g.Session(); ok {
		t.Fatalf("timed out gate must not expose a session")
	}
}

func TestDeniedRole(t *testing.T) {
	g := New([]model.Role{model.RoleAdmin}, time.Second)
	g.OnResolved(resolved(model.RoleTester))
	if state := g.State(); state != StateDenied {
		t.Fatalf("expected denied, got %s", state)
	}
}

func TestUnauthenticated(t *testing.T) {
	g := New([]model.Role{model.RoleAdmin}, time.Second)
	g.OnUnauthenticated()
	if state := g.Wait(context.Background()); state != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", state)
	}
}

func TestUnresolvedSessionIsUnauthenticated(t *testing.T) {
	g := New([]model.Role{model.RoleAdmin}, time.Second)
	g.OnResolved(session.Session{})
	if state := g.State(); state != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", state)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	g := New([]model.Role{model.RoleAdmin}, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if state := g.Wait(ctx); state != StateResolving {
		t.Fatalf("expected still resolving, got %s", state)
	}
	g.OnUnauthenticated()
}
