package session

import (
	"fmt"

	"github.com/kolkov/inlinemock/internal/dispatch/ref"
)

// CallKind tags a Call.
type CallKind uint8

const (
	// CallSkip means the call is not intercepted: the native body runs and
	// Exit is a no-op.
	CallSkip CallKind = iota

	// CallInvoke means a handler fulfils the call.
	CallInvoke

	// CallIdentity means the identity policy answers an Equal or Hash
	// method of an instance without a handler.
	CallIdentity
)

// String returns the kind name.
func (k CallKind) String() string {
	switch k {
	case CallSkip:
		return "skip"
	case CallInvoke:
		return "invoke"
	case CallIdentity:
		return "identity"
	default:
		return fmt.Sprintf("CallKind(%d)", uint8(k))
	}
}

// SkipReason records why Enter did not intercept a call.
type SkipReason uint8

const (
	ReasonNone           SkipReason = iota
	ReasonInfrastructure            // receiver is dispatch infrastructure
	ReasonLifecycle                 // finalizer-style lifecycle method
	ReasonGuard                     // delegated original call
	ReasonNoIdentity                // receiver has no stable identity
	ReasonNoHandler                 // nothing registered for the receiver
	ReasonNoSession                 // no session installed
)

var reasonNames = [...]string{
	ReasonNone:           "none",
	ReasonInfrastructure: "infrastructure",
	ReasonLifecycle:      "lifecycle",
	ReasonGuard:          "guard",
	ReasonNoIdentity:     "no-identity",
	ReasonNoHandler:      "no-handler",
	ReasonNoSession:      "no-session",
}

// String returns the reason name.
func (r SkipReason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("SkipReason(%d)", uint8(r))
}

// Call is the decision Enter makes for one call and Exit carries out.
//
// A Call is a small value. It is produced once per call attempt and
// consumed at most once. The zero Call is a Skip.
type Call struct {
	kind    CallKind
	reason  SkipReason
	s       *Session
	handler Handler
	self    any
	key     ref.Ref
	m       *Method
	args    []any
}

// Skip returns a Call that leaves the native body in charge.
func Skip(reason SkipReason) Call {
	return Call{kind: CallSkip, reason: reason}
}

// Kind returns the call kind.
func (c Call) Kind() CallKind { return c.kind }

// Reason returns why the call was skipped, or ReasonNone.
func (c Call) Reason() SkipReason { return c.reason }

// Replaces reports whether the native body must be suppressed and the
// results of Exit returned instead.
func (c Call) Replaces() bool {
	return c.kind != CallSkip
}

// Handler returns the handler of an Invoke call, or nil.
func (c Call) Handler() Handler { return c.handler }

// Method returns the descriptor of the call, or nil for Skip.
func (c Call) Method() *Method { return c.m }

// String describes the call for logs and test failures.
func (c Call) String() string {
	switch c.kind {
	case CallSkip:
		return "skip(" + c.reason.String() + ")"
	default:
		return fmt.Sprintf("%s(%s)", c.kind, c.m)
	}
}
