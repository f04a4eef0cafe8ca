// Package gate decides, before any dashboard mounts, whether a session
// may see it. A gate starts Resolving and moves exactly once to one of
// four terminal states; a bounded timer turns an indeterminate
// resolution into TimedOut instead of waiting forever.
package gate

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Compunic-startup/compunic-management/internal/model"
	"github.com/Compunic-startup/compunic-management/internal/session"
)

type State string

const (
	StateResolving       State = "resolving"
	StateAdmitted        State = "admitted"
	StateDenied          State = "denied"
	StateUnauthenticated State = "unauthenticated"
	// StateTimedOut is distinct from Denied: the cause (network vs.
	// permission) is indeterminate, so the caller offers an explicit
	// retry instead of a silent redirect.
	StateTimedOut State = "timed_out"
)

type Gate struct {
	allowed []model.Role

	mu      sync.Mutex
	state   State
	session session.Session
	timer   *time.Timer
	done    chan struct{}
}

// New arms the resolution timer immediately. Exactly one transition
// out of Resolving will ever happen; the timer is cancelled on any
// earlier transition so a successful admission can never be followed
// by a late TimedOut.
func New(allowed []model.Role, timeout time.Duration) *Gate {
	g := &Gate{
		allowed: allowed,
		state:   StateResolving,
		done:    make(chan struct{}),
	}
	g.timer = time.AfterFunc(timeout, g.onTimeout)
	return g
}

// OnResolved delivers the resolver's outcome. Ignored unless the gate
// is still Resolving.
func (g *Gate) OnResolved(s session.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateResolving {
		return
	}
	g.session = s
	if !s.Resolved || s.Principal.ID == "" {
		g.transitionLocked(StateUnauthenticated)
		return
	}
	if slices.Contains(g.allowed, s.Principal.Role) {
		g.transitionLocked(StateAdmitted)
		return
	}
	g.transitionLocked(StateDenied)
}

// OnUnauthenticated is the short-circuit for requests with no
// principal at all.
func (g *Gate) OnUnauthenticated() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateResolving {
		return
	}
	g.transitionLocked(StateUnauthenticated)
}

func (g *Gate) onTimeout() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateResolving {
		return
	}
	g.transitionLocked(StateTimedOut)
}

func (g *Gate) transitionLocked(next State) {
	g.state = next
	g.timer.Stop()
	close(g.done)
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Session returns the resolved session once the gate has admitted it.
func (g *Gate) Session() (session.Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session, g.state == StateAdmitted
}

// Wait blocks until the gate leaves Resolving or the context ends.
func (g *Gate) Wait(ctx context.Context) State {
	select {
	case <-g.done:
	case <-ctx.Done():
	}
	return g.State()
}

// Run arms a gate and resolves the session in the background: parse
// the bearer token, then do the one-shot role lookup. The resolution
// call is bounded by the same timeout that arms the gate's timer.
func Run(resolver *session.Resolver, token string, allowed []model.Role, timeout time.Duration) *Gate {
	g := New(allowed, timeout)
	go func() {
		claims, err := resolver.ParseToken(token)
		if err != nil {
			g.OnUnauthenticated()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		g.OnResolved(resolver.Resolve(ctx, claims))
	}()
	return g
}
