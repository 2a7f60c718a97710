// internal/swap/guard.go
package swap

import (
	"sync"
	"sync/atomic"
)

// Guard provides per-user, non-blocking mutual exclusion.
// Slots are created on first use and never removed, so a release can never
// race with another caller creating a fresh slot for the same user.
type Guard struct {
	slots sync.Map // int64 -> *atomic.Bool
}

func NewGuard() *Guard {
	return &Guard{}
}

func (g *Guard) slot(userID int64) *atomic.Bool {
	if v, ok := g.slots.Load(userID); ok {
		return v.(*atomic.Bool)
	}
	v, _ := g.slots.LoadOrStore(userID, new(atomic.Bool))
	return v.(*atomic.Bool)
}

// TryAcquire returns false immediately when the user already has a swap in flight.
func (g *Guard) TryAcquire(userID int64) bool {
	return g.slot(userID).CompareAndSwap(false, true)
}

// Release frees the user's slot. It must be called once per successful TryAcquire.
func (g *Guard) Release(userID int64) {
	g.slot(userID).Store(false)
}

// held reports whether the user currently has a swap in flight.
func (g *Guard) held(userID int64) bool {
	return g.slot(userID).Load()
}
