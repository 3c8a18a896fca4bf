// Package ref implements identity-based instance references used as
// registry and guard keys.
//
// A Ref captures the identity of a live value: its address and its dynamic
// type. Two Refs are equal only if they were taken from the same object,
// regardless of any Equal method the object's type defines. This matters
// because Equal itself may be an intercepted method.
//
// Only values with a stable identity produce a valid Ref:
//   - non-nil pointers to types with a non-zero size
//   - maps and channels
//   - unsafe.Pointer values
//
// Everything else (structs, strings, numbers, slices, funcs, nil) yields the
// zero Ref, which reports Valid() == false. Pointers to zero-sized types are
// rejected because the runtime may hand out the same address for distinct
// zero-sized allocations.
//
// A Ref is non-owning: the address is stored as a uintptr and does not keep
// the object alive. Callers that keep a Ref past the lifetime of its object
// must hold the object themselves (the registry does so in its entries).
package ref

import (
	"fmt"
	"reflect"
)

// Ref is a comparable identity key for a live value.
//
// Layout:
//   - addr: address of the referenced object
//   - typ:  dynamic type of the value the Ref was taken from
//
// The type is part of the key because a pointer to a struct and a pointer
// to its first field share an address.
type Ref struct {
	addr uintptr
	typ  reflect.Type
}

// Of returns the identity reference of x.
//
// Performance: no allocation. reflect.ValueOf on an interface value does
// not escape the value.
//
// Example:
//
//	a, b := &T{ID: 1}, &T{ID: 1}
//	ref.Of(a) == ref.Of(a) // true
//	ref.Of(a) == ref.Of(b) // false, even if a.Equal(b)
func Of(x any) Ref {
	if x == nil {
		return Ref{}
	}

	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() || v.Type().Elem().Size() == 0 {
			return Ref{}
		}
	case reflect.Map, reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			return Ref{}
		}
	default:
		return Ref{}
	}

	return Ref{addr: v.Pointer(), typ: v.Type()}
}

// Valid reports whether r identifies a live value.
func (r Ref) Valid() bool {
	return r.addr != 0
}

// Addr returns the referenced address, or 0 for the zero Ref.
func (r Ref) Addr() uintptr {
	return r.addr
}

// Type returns the dynamic type the Ref was taken from, or nil.
func (r Ref) Type() reflect.Type {
	return r.typ
}

// Is reports whether x has the identity r.
func (r Ref) Is(x any) bool {
	return r.Valid() && Of(x) == r
}

// String formats the Ref as "type@0xaddr".
func (r Ref) String() string {
	if !r.Valid() {
		return "<invalid>"
	}
	return fmt.Sprintf("%s@%#x", r.typ, r.addr)
}
