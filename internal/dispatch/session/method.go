package session

import "fmt"

// MethodKind classifies a method for the dispatch rules that depend on what
// the method is rather than on which instance receives it.
type MethodKind uint8

const (
	// KindAuto leaves the kind to the session, which classifies the
	// method by name and arity like NewMethod. It is the zero value, so
	// descriptors written as struct literals get the same rules as those
	// built with NewMethod.
	KindAuto MethodKind = iota

	// KindRegular is any method without special dispatch rules.
	KindRegular

	// KindFinalizer is a zero-argument lifecycle method. It is never
	// intercepted.
	KindFinalizer

	// KindEquals is a one-argument equality method. Without a handler it
	// answers with reference identity.
	KindEquals

	// KindHash is a zero-argument hash method. Without a handler it answers
	// with the identity hash.
	KindHash
)

// String returns the kind name.
func (k MethodKind) String() string {
	switch k {
	case KindAuto:
		return "auto"
	case KindRegular:
		return "regular"
	case KindFinalizer:
		return "finalizer"
	case KindEquals:
		return "equals"
	case KindHash:
		return "hash"
	default:
		return fmt.Sprintf("MethodKind(%d)", uint8(k))
	}
}

// BodyFunc runs the original implementation of a method on self.
//
// Generated descriptors implement it by calling the method again; the hook
// prelude then finds the reentrancy guard armed for self and lets the native
// body run.
type BodyFunc func(self any, args []any) []any

// Method describes an intercepted method.
//
// Descriptors are created once per method, usually as package-level
// variables emitted by the hook injector, and shared by every call.
type Method struct {
	Type  string // receiver type name, e.g. "Account"
	Name  string // method name
	NumIn int    // number of parameters, receiver excluded
	Kind  MethodKind // KindAuto when unset

	// Body runs the original implementation. When nil, the original is
	// resolved on the instance by name via reflection, which only reaches
	// exported methods.
	Body BodyFunc
}

// NewMethod creates a descriptor and classifies it by name and arity:
//
//	Finalize()          KindFinalizer
//	Equal(x), Equals(x) KindEquals
//	Hash(), HashCode()  KindHash
func NewMethod(typ, name string, numIn int, body BodyFunc) *Method {
	return &Method{
		Type:  typ,
		Name:  name,
		NumIn: numIn,
		Kind:  classify(name, numIn),
		Body:  body,
	}
}

// kind returns the effective kind of m.
func (m *Method) kind() MethodKind {
	if m.Kind == KindAuto {
		return classify(m.Name, m.NumIn)
	}
	return m.Kind
}

func classify(name string, numIn int) MethodKind {
	switch {
	case name == "Finalize" && numIn == 0:
		return KindFinalizer
	case (name == "Equal" || name == "Equals") && numIn == 1:
		return KindEquals
	case (name == "Hash" || name == "HashCode") && numIn == 0:
		return KindHash
	}
	return KindRegular
}

// String returns "Type.Name".
func (m *Method) String() string {
	if m.Type == "" {
		return m.Name
	}
	return m.Type + "." + m.Name
}
