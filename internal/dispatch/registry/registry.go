// Package registry implements the instance-to-handler registry.
//
// The registry maps the identity of a live instance (ref.Ref) to the handler
// that intercepts its methods. It is the only state the dispatch path shares
// between goroutines.
//
// Guarantees:
//   - At most one handler per instance; the latest Register wins.
//   - Per-key linearizability: a Lookup on any goroutine that starts after
//     Register returned observes the registration.
//   - No cross-key ordering.
//   - Entries never expire. The owner removes them.
//
// Implementation: xsync.MapOf, which gives lock-free reads and striped
// locking for writes. Lookup takes no lock of this package.
package registry

import (
	"errors"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/kolkov/inlinemock/internal/dispatch/ref"
)

// ErrNoIdentity is returned when registering a value that has no stable
// identity (see ref.Of).
var ErrNoIdentity = errors.New("registry: instance has no identity")

// Entry is a registered handler together with the instance it serves.
//
// Instance keeps the object alive while it is registered, so its address
// cannot be reused for another object while the key exists.
type Entry[H any] struct {
	Instance   any
	Handler    H
	Site       uint64    // stackdepot hash of the registering stack, 0 if not captured
	Registered time.Time // wall-clock time of registration
}

// Registry is a concurrent map from instance identity to handler.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry[H any] struct {
	entries *xsync.MapOf[ref.Ref, *Entry[H]]
}

// New creates an empty registry. presize is a capacity hint; values <= 0
// use the map's default.
func New[H any](presize int) *Registry[H] {
	var opts []func(*xsync.MapConfig)
	if presize > 0 {
		opts = append(opts, xsync.WithPresize(presize))
	}
	return &Registry[H]{entries: xsync.NewMapOf[ref.Ref, *Entry[H]](opts...)}
}

// Register installs h for instance, replacing any previous handler.
//
// Returns:
//   - replaced: true if a handler was already registered for instance
//   - err: ErrNoIdentity if instance has no identity
func (r *Registry[H]) Register(instance any, h H, site uint64) (replaced bool, err error) {
	key := ref.Of(instance)
	if !key.Valid() {
		return false, ErrNoIdentity
	}

	e := &Entry[H]{
		Instance:   instance,
		Handler:    h,
		Site:       site,
		Registered: time.Now(),
	}
	_, replaced = r.entries.LoadAndStore(key, e)
	return replaced, nil
}

// Lookup returns the handler registered for instance.
//
// Performance: one ref.Of plus one lock-free map load.
func (r *Registry[H]) Lookup(instance any) (H, bool) {
	return r.LookupRef(ref.Of(instance))
}

// LookupRef is Lookup for a precomputed identity.
func (r *Registry[H]) LookupRef(key ref.Ref) (H, bool) {
	if key.Valid() {
		if e, ok := r.entries.Load(key); ok {
			return e.Handler, true
		}
	}
	var zero H
	return zero, false
}

// Entry returns the full entry registered for instance, or nil.
func (r *Registry[H]) Entry(instance any) *Entry[H] {
	key := ref.Of(instance)
	if !key.Valid() {
		return nil
	}
	e, _ := r.entries.Load(key)
	return e
}

// Remove drops the registration for instance and reports whether one
// existed.
func (r *Registry[H]) Remove(instance any) bool {
	key := ref.Of(instance)
	if !key.Valid() {
		return false
	}
	_, ok := r.entries.LoadAndDelete(key)
	return ok
}

// Range calls f for every entry until f returns false. Entries registered
// or removed concurrently may or may not be visited.
func (r *Registry[H]) Range(f func(key ref.Ref, e *Entry[H]) bool) {
	r.entries.Range(f)
}

// Size returns the number of registered instances.
func (r *Registry[H]) Size() int {
	return r.entries.Size()
}

// Clear removes every registration.
func (r *Registry[H]) Clear() {
	r.entries.Clear()
}
