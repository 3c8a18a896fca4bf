// Package guard implements the goroutine-scoped reentrancy guard.
//
// When a handler delegates to the original implementation of an
// intercepted method, the original is reached by calling the method again.
// That call passes through the dispatch entry point a second time, and
// without a marker it would be intercepted again, recursing into the
// handler. The guard is that marker: a per-goroutine slot holding "the
// instance whose original implementation is being entered on this
// goroutine".
//
// Protocol:
//
//	prev := g.Arm(r)      // before calling the original
//	defer g.Restore(prev) // on every exit path, panics included
//	...
//	g.Consume(r)          // in the entry point: true exactly once
//
// Slots are keyed by goroutine id. A goroutine only ever reads or writes its
// own slot, so two goroutines may delegate on the same instance at the same
// time without observing each other. Empty slots are removed from the map,
// so the map only holds goroutines that are currently delegating and needs
// no cleanup of dead goroutines.
package guard

import (
	"sync/atomic"

	"github.com/petermattis/goid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/kolkov/inlinemock/internal/dispatch/ref"
)

// Guard holds the reentrancy slots of all goroutines.
//
// The zero value is not usable; create Guards with New.
//
// Thread Safety: all methods are safe for concurrent use. Each method acts
// on the calling goroutine's slot only.
type Guard struct {
	// slots maps goroutine id to the armed instance.
	// Key: int64 (goroutine id). Value: ref.Ref (never the zero Ref).
	slots *xsync.MapOf[int64, ref.Ref]

	// armed counts non-empty slots. Consume skips the map lookup when it
	// is zero, which is the state of every goroutine that is not inside a
	// delegated call.
	armed atomic.Int64
}

// New creates a Guard with no armed slots.
func New() *Guard {
	return &Guard{slots: xsync.NewMapOf[int64, ref.Ref]()}
}

// Arm sets the calling goroutine's slot to r and returns the previous
// value (the zero Ref if the slot was empty).
//
// Arm must be paired with Restore(prev) in a defer.
func (g *Guard) Arm(r ref.Ref) (prev ref.Ref) {
	gid := goid.Get()
	prev, _ = g.slots.Load(gid)
	g.set(gid, prev, r)
	return prev
}

// Restore sets the calling goroutine's slot back to prev.
func (g *Guard) Restore(prev ref.Ref) {
	gid := goid.Get()
	cur, _ := g.slots.Load(gid)
	g.set(gid, cur, prev)
}

// Consume reports whether the calling goroutine's slot holds r. If it does,
// the slot is cleared, so a second call with the same r returns false.
//
// Performance: one atomic load when no goroutine is delegating, otherwise
// a goroutine id lookup plus one map load.
func (g *Guard) Consume(r ref.Ref) bool {
	if g.armed.Load() == 0 || !r.Valid() {
		return false
	}

	gid := goid.Get()
	cur, ok := g.slots.Load(gid)
	if !ok || cur != r {
		return false
	}

	g.set(gid, cur, ref.Ref{})
	return true
}

// Current returns the calling goroutine's slot value.
func (g *Guard) Current() ref.Ref {
	if g.armed.Load() == 0 {
		return ref.Ref{}
	}
	cur, _ := g.slots.Load(goid.Get())
	return cur
}

// Armed returns the number of goroutines with a non-empty slot.
func (g *Guard) Armed() int {
	return int(g.armed.Load())
}

// set moves the slot of gid from cur to next, keeping the armed counter in
// step with empty/non-empty transitions.
func (g *Guard) set(gid int64, cur, next ref.Ref) {
	switch {
	case next.Valid():
		g.slots.Store(gid, next)
		if !cur.Valid() {
			g.armed.Add(1)
		}
	case cur.Valid():
		g.slots.Delete(gid)
		g.armed.Add(-1)
	}
}
