// Package mock provides the public API of the inline call-interception
// runtime.
//
// See doc.go for detailed documentation and examples.
package mock

import (
	"errors"
	"sync/atomic"

	"github.com/kolkov/inlinemock/internal/dispatch/session"
)

// Core types, re-exported from the dispatch core.
type (
	Session      = session.Session
	Handler      = session.Handler
	HandlerFunc  = session.HandlerFunc
	Original     = session.Original
	OriginalCall = session.OriginalCall
	Method       = session.Method
	MethodKind   = session.MethodKind
	BodyFunc     = session.BodyFunc
	Call         = session.Call
	CallKind     = session.CallKind
	SkipReason   = session.SkipReason
	Stats        = session.Stats
	EntryInfo    = session.EntryInfo
	Option       = session.Option
)

// Method kinds.
const (
	KindAuto      = session.KindAuto
	KindRegular   = session.KindRegular
	KindFinalizer = session.KindFinalizer
	KindEquals    = session.KindEquals
	KindHash      = session.KindHash
)

// Call kinds and skip reasons.
const (
	CallSkip     = session.CallSkip
	CallInvoke   = session.CallInvoke
	CallIdentity = session.CallIdentity

	ReasonInfrastructure = session.ReasonInfrastructure
	ReasonLifecycle      = session.ReasonLifecycle
	ReasonGuard          = session.ReasonGuard
	ReasonNoIdentity     = session.ReasonNoIdentity
	ReasonNoHandler      = session.ReasonNoHandler
	ReasonNoSession      = session.ReasonNoSession
)

// Errors.
var (
	ErrNoIdentity = session.ErrNoIdentity
	ErrNilHandler = session.ErrNilHandler
	ErrNoOriginal = session.ErrNoOriginal
	ErrClosed     = session.ErrClosed

	// ErrNoSession is returned by Register when no session is installed.
	ErrNoSession = errors.New("mock: no session installed")
)

// Constructors and options.
var (
	NewSession           = session.NewSession
	NewMethod            = session.NewMethod
	WithLifecycleMethods = session.WithLifecycleMethods
	WithStats            = session.WithStats
	WithSiteCapture      = session.WithSiteCapture
	WithIdentityPolicy   = session.WithIdentityPolicy
	WithPresize          = session.WithPresize
	IdentityHash         = session.IdentityHash
	IdentityEquals       = session.IdentityEquals
)

// current is the session generated hooks dispatch to.
var current atomic.Pointer[Session]

// Install makes s the session that instrumented code dispatches to and
// returns the previously installed session. Install(nil) disables
// interception.
//
// The caller keeps ownership of s. A typical test installs a session and
// restores the previous one when done:
//
//	s := mock.NewSession()
//	prev := mock.Install(s)
//	defer mock.Install(prev)
//
// Thread Safety: safe for concurrent use. Calls already inside Enter keep
// the session they loaded.
func Install(s *Session) (prev *Session) {
	return current.Swap(s)
}

// Current returns the installed session, or nil.
func Current() *Session {
	return current.Load()
}

// Enter is the dispatch entry point called by the hook prelude of every
// instrumented method.
//
// This function is inserted by the mockinject tool. Manual calls are only
// needed for hand-written hooks:
//
//	func (a *Account) Balance() int {
//		if c := mock.Enter(a, balanceMethod); c.Replaces() {
//			return mock.Out[int](mock.MustExit(c), 0)
//		}
//		return a.balance
//	}
//
// With no installed session every call is skipped.
func Enter(self any, m *Method, args ...any) Call {
	s := current.Load()
	if s == nil {
		return session.Skip(ReasonNoSession)
	}
	return s.Enter(self, m, args...)
}

// Exit carries out a Call returned by Enter. It returns exactly what the
// handler returns; see Session.Exit.
func Exit(c Call) ([]any, error) {
	// A Call remembers its session, so Exit is independent of Install.
	return session.Exit(c)
}

// MustExit is Exit for methods without an error result. A handler error
// is raised as a panic with the error value.
func MustExit(c Call) []any {
	out, err := Exit(c)
	if err != nil {
		panic(err)
	}
	return out
}

// Register installs h for instance in the current session.
func Register(instance any, h Handler) error {
	s := current.Load()
	if s == nil {
		return ErrNoSession
	}
	return s.Register(instance, h)
}

// Unregister removes the handler of instance from the current session.
func Unregister(instance any) bool {
	s := current.Load()
	if s == nil {
		return false
	}
	return s.Unregister(instance)
}
