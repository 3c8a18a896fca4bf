package session

import (
	"fmt"
	"reflect"

	"github.com/kolkov/inlinemock/internal/dispatch/ref"
)

// Handler decides how an intercepted call is fulfilled.
//
// Invoke receives the instance, the method descriptor, a capability to run
// the original implementation and the call arguments. It returns one value
// per result of the intercepted method. A returned error is passed to the
// caller of the intercepted method unchanged.
//
// Invoke may call original.Invoke() any number of times, including zero.
type Handler interface {
	Invoke(self any, m *Method, original Original, args []any) ([]any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(self any, m *Method, original Original, args []any) ([]any, error)

// Invoke calls f.
func (f HandlerFunc) Invoke(self any, m *Method, original Original, args []any) ([]any, error) {
	return f(self, m, original, args)
}

// Original runs the real implementation of an intercepted call without
// intercepting it again.
type Original interface {
	Invoke() ([]any, error)
}

// OriginalCall is the Original handed to handlers by Exit.
//
// It captures the instance, method and arguments of one intercepted call.
type OriginalCall struct {
	s    *Session
	self any
	key  ref.Ref
	m    *Method
	args []any
}

// Invoke arms the reentrancy guard for the instance, runs the original
// implementation and restores the guard's previous value on every exit path.
//
// The results are the method's own results, including any error value it
// returns in its result list. The error return is reserved for a method that
// cannot be run at all (ErrNoOriginal). Panics raised by the original
// propagate after the guard is restored.
func (o *OriginalCall) Invoke() ([]any, error) {
	body := o.m.Body
	if body == nil {
		var err error
		if body, err = reflectBody(o.self, o.m); err != nil {
			return nil, err
		}
	}

	if o.s.stats != nil {
		o.s.stats.delegations.Add(1)
	}

	prev := o.s.guard.Arm(o.key)
	defer o.s.guard.Restore(prev)

	return body(o.self, o.args), nil
}

// reflectBody resolves the original implementation of m on self by name.
func reflectBody(self any, m *Method) (BodyFunc, error) {
	fn := reflect.ValueOf(self).MethodByName(m.Name)
	if !fn.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrNoOriginal, m)
	}

	ft := fn.Type()
	if ft.NumIn() != m.NumIn {
		return nil, fmt.Errorf("%w: %s takes %d arguments, descriptor says %d",
			ErrNoOriginal, m, ft.NumIn(), m.NumIn)
	}

	return func(_ any, args []any) []any {
		// A variadic tail passed as one slice is applied with CallSlice.
		asSlice := ft.IsVariadic() && len(args) == ft.NumIn()

		in := make([]reflect.Value, len(args))
		for i, a := range args {
			pt := paramType(ft, i, asSlice)
			if a == nil {
				in[i] = reflect.Zero(pt)
			} else {
				in[i] = reflect.ValueOf(a)
			}
		}

		var out []reflect.Value
		if asSlice {
			out = fn.CallSlice(in)
		} else {
			out = fn.Call(in)
		}

		results := make([]any, len(out))
		for i, v := range out {
			results[i] = v.Interface()
		}
		return results
	}, nil
}

// paramType returns the type of argument i. Arguments past the last fixed
// parameter of a variadic function have the element type unless the tail is
// passed as a slice.
func paramType(ft reflect.Type, i int, asSlice bool) reflect.Type {
	if ft.IsVariadic() && i >= ft.NumIn()-1 {
		last := ft.In(ft.NumIn() - 1)
		if asSlice {
			return last
		}
		return last.Elem()
	}
	return ft.In(i)
}
