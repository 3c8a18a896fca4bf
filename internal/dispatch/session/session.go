// Package session implements the dispatch core of inline call interception.
//
// An instrumented method starts with a hook prelude that calls Enter with
// its receiver, a method descriptor and its arguments. Enter decides in
// constant time whether the call is intercepted:
//
//	c := s.Enter(self, desc, a, b)
//	if c.Replaces() {
//	    out, err := s.Exit(c) // handler or identity policy answers
//	    return ...
//	}
//	// native body
//
// A handler may run the real implementation through the Original it
// receives. Original arms the goroutine's reentrancy guard for the instance
// and calls the method again; Enter sees the armed guard, clears it and lets
// the native body run exactly once.
//
// A Session owns its registry, guard and registration-site depot. There is
// no process-wide state in this package; see package mock for the injection
// point used by generated hooks.
package session

import (
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"

	"github.com/kolkov/inlinemock/internal/dispatch/guard"
	"github.com/kolkov/inlinemock/internal/dispatch/ref"
	"github.com/kolkov/inlinemock/internal/dispatch/registry"
	"github.com/kolkov/inlinemock/internal/dispatch/stackdepot"
)

var log = commonlog.GetLogger("inlinemock.session")

// Session is one interception session: a registry of handlers and the
// reentrancy guard used by their delegations.
//
// Thread Safety: all methods are safe for concurrent use. Enter and Exit
// take no lock of their own.
type Session struct {
	cfg      config
	registry *registry.Registry[Handler]
	guard    *guard.Guard
	depot    *stackdepot.Depot // nil unless WithSiteCapture
	stats    *counters         // nil unless WithStats
	closed   atomic.Bool
}

// NewSession creates an empty session.
func NewSession(opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		cfg:      cfg,
		registry: registry.New[Handler](cfg.presize),
		guard:    guard.New(),
	}
	if cfg.siteCapture {
		s.depot = stackdepot.New()
	}
	if cfg.stats {
		s.stats = &counters{}
	}
	return s
}

// Enter is the dispatch entry point, called before the native body of an
// instrumented method runs.
//
// Order of checks:
//  1. infrastructure receivers and lifecycle methods are skipped
//  2. receivers without identity are skipped
//  3. a guard armed for the receiver on this goroutine is cleared and the
//     call skipped (delegated original)
//  4. without a handler, Equal/Hash methods get an Identity call and
//     everything else is skipped
//  5. otherwise the call is intercepted
//
// The guard is checked before the registry: during delegation the instance
// still has a handler, and only the guard tells the delegated call apart.
//
// m must not be nil.
func (s *Session) Enter(self any, m *Method, args ...any) Call {
	c := s.enter(self, m, args)
	if s.stats != nil {
		s.stats.record(c)
	}
	return c
}

func (s *Session) enter(self any, m *Method, args []any) Call {
	if s.isInfrastructure(self) {
		return Skip(ReasonInfrastructure)
	}
	if s.isLifecycle(m) {
		return Skip(ReasonLifecycle)
	}

	key := ref.Of(self)
	if !key.Valid() {
		return Skip(ReasonNoIdentity)
	}

	if s.guard.Consume(key) {
		return Skip(ReasonGuard)
	}

	h, ok := s.registry.LookupRef(key)
	if !ok {
		if k := m.kind(); s.cfg.identityPolicy && (k == KindEquals || k == KindHash) {
			return Call{kind: CallIdentity, s: s, self: self, key: key, m: m, args: args}
		}
		return Skip(ReasonNoHandler)
	}

	return Call{kind: CallInvoke, s: s, handler: h, self: self, key: key, m: m, args: args}
}

// Exit is the dispatch exit point. It carries out c and returns the values
// that replace the native results.
//
//   - Skip: returns nil, nil.
//   - Invoke: returns exactly what the handler returns. Errors are not
//     wrapped; panics propagate.
//   - Identity: returns []any{bool} for Equal and []any{uint64} for Hash.
func (s *Session) Exit(c Call) ([]any, error) {
	return Exit(c)
}

// Exit carries out c on the session that produced it.
func Exit(c Call) ([]any, error) {
	switch c.kind {
	case CallInvoke:
		original := &OriginalCall{s: c.s, self: c.self, key: c.key, m: c.m, args: c.args}
		return c.handler.Invoke(c.self, c.m, original, c.args)
	case CallIdentity:
		return identityResult(c), nil
	default:
		return nil, nil
	}
}

func (s *Session) isInfrastructure(self any) bool {
	switch self.(type) {
	case *Session, *registry.Registry[Handler], *guard.Guard, *stackdepot.Depot:
		return true
	}
	return false
}

func (s *Session) isLifecycle(m *Method) bool {
	if m.kind() == KindFinalizer {
		return true
	}
	return m.NumIn == 0 && slices.Contains(s.cfg.lifecycle, m.Name)
}

// Register installs h as the handler of instance, replacing any previous
// handler. Subsequent calls on instance, from any goroutine, are routed to
// h until it is replaced or unregistered.
//
// The session holds instance until it is unregistered.
func (s *Session) Register(instance any, h Handler) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if h == nil {
		return ErrNilHandler
	}

	var site uint64
	if s.depot != nil {
		site = s.depot.Capture(1)
	}

	replaced, err := s.registry.Register(instance, h, site)
	if err != nil {
		return fmt.Errorf("register %T: %w", instance, err)
	}

	if replaced {
		log.Debugf("replaced handler of %s", ref.Of(instance))
	} else {
		log.Debugf("registered handler of %s", ref.Of(instance))
	}
	return nil
}

// Unregister removes the handler of instance and reports whether one was
// registered.
func (s *Session) Unregister(instance any) bool {
	if !s.registry.Remove(instance) {
		return false
	}
	log.Debugf("unregistered handler of %s", ref.Of(instance))
	return true
}

// Lookup returns the handler registered for instance.
func (s *Session) Lookup(instance any) (Handler, bool) {
	return s.registry.Lookup(instance)
}

// Registered reports whether instance has a handler.
func (s *Session) Registered(instance any) bool {
	_, ok := s.registry.Lookup(instance)
	return ok
}

// EntryInfo describes one registration.
type EntryInfo struct {
	Type       reflect.Type
	Addr       uintptr
	Registered time.Time
	Site       []runtime.Frame // empty unless WithSiteCapture
}

// String formats the entry as "type@0xaddr".
func (e EntryInfo) String() string {
	return fmt.Sprintf("%s@%#x", e.Type, e.Addr)
}

// Entries lists the current registrations, oldest first.
func (s *Session) Entries() []EntryInfo {
	var out []EntryInfo
	s.registry.Range(func(key ref.Ref, e *registry.Entry[Handler]) bool {
		info := EntryInfo{
			Type:       key.Type(),
			Addr:       key.Addr(),
			Registered: e.Registered,
		}
		if s.depot != nil {
			info.Site = s.depot.Get(e.Site).Frames()
		}
		out = append(out, info)
		return true
	})

	slices.SortFunc(out, func(a, b EntryInfo) int {
		if c := a.Registered.Compare(b.Registered); c != 0 {
			return c
		}
		switch {
		case a.Addr < b.Addr:
			return -1
		case a.Addr > b.Addr:
			return 1
		}
		return 0
	})
	return out
}

// Stats returns a snapshot of the dispatch counters.
func (s *Session) Stats() Stats {
	var st Stats
	if s.stats != nil {
		st = s.stats.snapshot()
	}
	st.Registered = s.registry.Size()
	return st
}

// Reset drops every registration and zeroes the counters. The session
// stays usable.
func (s *Session) Reset() {
	n := s.registry.Size()
	s.registry.Clear()
	if s.stats != nil {
		s.stats.reset()
	}
	if s.depot != nil {
		s.depot.Reset()
	}
	log.Debugf("reset session, dropped %d handlers", n)
}

// Close resets the session and rejects further registrations. Calls on
// previously registered instances pass through to their native bodies.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.Reset()
	return nil
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}
