package mock

import (
	"fmt"
	"reflect"

	"golang.org/x/exp/constraints"
)

// The helpers below convert between the untyped argument and result slices
// of the dispatch core and the typed parameters and results of an
// instrumented method. Generated code calls them; they are exported so that
// hand-written hooks and handlers can use them too.

// Arg returns args[i] as a T. A missing or nil argument yields the zero T.
//
// Generated method descriptors use it to call the original method:
//
//	Body: func(self any, args []any) []any {
//		return []any{self.(*Account).Deposit(mock.Arg[int](args, 0))}
//	}
func Arg[T any](args []any, i int) T {
	return value[T](args, i, "argument")
}

// Out returns out[i] as a T, for building the results of an intercepted
// method from what its handler returned. A missing or nil result yields the
// zero T, so a handler may return fewer values than the method has.
//
// Values of a different but convertible type (an int for an int64 result)
// are converted. Anything else panics with a message naming the position.
func Out[T any](out []any, i int) T {
	return value[T](out, i, "result")
}

// Err returns the error result of an intercepted method: err itself when
// the handler failed, otherwise out[i]. A missing or nil result is a nil
// error; a value that is not an error panics like Out.
func Err(out []any, i int, err error) error {
	if err != nil {
		return err
	}
	if i < 0 || i >= len(out) || out[i] == nil {
		return nil
	}
	e, ok := out[i].(error)
	if !ok {
		panic(fmt.Sprintf("mock: result %d is %T, want error", i, out[i]))
	}
	return e
}

// HashOut is Out for integer hash results. The identity policy answers Hash
// methods with a uint64; HashOut narrows it to the method's result type.
func HashOut[T constraints.Integer](out []any, i int) T {
	if i < len(out) {
		if h, ok := out[i].(uint64); ok {
			return T(h)
		}
	}
	return Out[T](out, i)
}

func value[T any](vals []any, i int, what string) T {
	var zero T
	if i < 0 || i >= len(vals) || vals[i] == nil {
		return zero
	}
	if v, ok := vals[i].(T); ok {
		return v
	}

	want := reflect.TypeOf((*T)(nil)).Elem()
	rv := reflect.ValueOf(vals[i])
	if rv.Type().ConvertibleTo(want) && rv.Kind() != reflect.String && want.Kind() != reflect.String {
		return rv.Convert(want).Interface().(T)
	}
	panic(fmt.Sprintf("mock: %s %d is %T, want %s", what, i, vals[i], want))
}
