// Package presence tracks live connection counts per identity and the
// optional one-call-at-a-time guard used by call signaling.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActiveCallTTL bounds how long an accepted call keeps both parties busy
// when no end signal ever arrives.
const ActiveCallTTL = 4 * time.Hour

// Tracker counts live connections per identity. An identity is online while
// its count is above zero.
type Tracker interface {
	// Connect records a new connection and returns the identity's live count.
	Connect(ctx context.Context, id uuid.UUID) (int64, error)
	// Disconnect removes a connection and returns the remaining live count.
	Disconnect(ctx context.Context, id uuid.UUID) (int64, error)
}

// CallGuard marks identities as busy while a call is being set up or is in progress.
type CallGuard interface {
	// Reserve marks caller and callee busy for the invite TTL. It returns
	// false without changes when either party is already busy.
	Reserve(ctx context.Context, caller, callee uuid.UUID) (bool, error)
	// Extend keeps an accepted call reserved for ActiveCallTTL.
	Extend(ctx context.Context, a, b uuid.UUID) error
	// Release frees both parties if they are still paired with each other.
	Release(ctx context.Context, a, b uuid.UUID) error
}

// MemoryTracker is a process-local Tracker.
type MemoryTracker struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int64
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{counts: make(map[uuid.UUID]int64)}
}

func (t *MemoryTracker) Connect(_ context.Context, id uuid.UUID) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[id]++
	return t.counts[id], nil
}

func (t *MemoryTracker) Disconnect(_ context.Context, id uuid.UUID) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.counts[id] - 1
	if n <= 0 {
		delete(t.counts, id)
		return 0, nil
	}
	t.counts[id] = n
	return n, nil
}

type reservation struct {
	partner uuid.UUID
	expires time.Time
}

// MemoryCallGuard is a process-local CallGuard.
type MemoryCallGuard struct {
	mu        sync.Mutex
	inviteTTL time.Duration
	busy      map[uuid.UUID]reservation
	now       func() time.Time
}

func NewMemoryCallGuard(inviteTTL time.Duration) *MemoryCallGuard {
	return &MemoryCallGuard{
		inviteTTL: inviteTTL,
		busy:      make(map[uuid.UUID]reservation),
		now:       time.Now,
	}
}

func (g *MemoryCallGuard) Reserve(_ context.Context, caller, callee uuid.UUID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if g.busyLocked(caller, now) || g.busyLocked(callee, now) {
		return false, nil
	}
	expires := now.Add(g.inviteTTL)
	g.busy[caller] = reservation{partner: callee, expires: expires}
	g.busy[callee] = reservation{partner: caller, expires: expires}
	return true, nil
}

func (g *MemoryCallGuard) Extend(_ context.Context, a, b uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	expires := g.now().Add(ActiveCallTTL)
	for _, pair := range [][2]uuid.UUID{{a, b}, {b, a}} {
		if r, ok := g.busy[pair[0]]; ok && r.partner == pair[1] {
			g.busy[pair[0]] = reservation{partner: pair[1], expires: expires}
		}
	}
	return nil
}

func (g *MemoryCallGuard) Release(_ context.Context, a, b uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, pair := range [][2]uuid.UUID{{a, b}, {b, a}} {
		if r, ok := g.busy[pair[0]]; ok && r.partner == pair[1] {
			delete(g.busy, pair[0])
		}
	}
	return nil
}

func (g *MemoryCallGuard) busyLocked(id uuid.UUID, now time.Time) bool {
	r, ok := g.busy[id]
	if !ok {
		return false
	}
	if !now.Before(r.expires) {
		delete(g.busy, id)
		return false
	}
	return true
}
