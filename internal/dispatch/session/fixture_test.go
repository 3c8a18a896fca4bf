package session

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
)

// The methods below carry the same prelude the hook injector emits, pointed
// at the session installed by the running test.

var hooked atomic.Pointer[Session]

func install(t testing.TB, s *Session) {
	t.Helper()
	hooked.Store(s)
	t.Cleanup(func() { hooked.Store(nil) })
}

func hook() *Session { return hooked.Load() }

var errDivByZero = errors.New("division by zero")

type calculator struct {
	base   int
	native atomic.Int64 // native body executions
}

var (
	descAdd      *Method
	descDiv      *Method
	descDescribe *Method
	descEqual    *Method
	descHash     *Method
	descFinalize *Method
	descExplode  *Method
	descAddVia   *Method
)

// Descriptors call back into their methods, so they are assigned in init
// to stay out of package initialization order.
func init() {
	descAdd = NewMethod("calculator", "Add", 2, func(self any, args []any) []any {
		return []any{self.(*calculator).Add(args[0].(int), args[1].(int))}
	})
	descDiv = NewMethod("calculator", "Div", 2, func(self any, args []any) []any {
		q, err := self.(*calculator).Div(args[0].(int), args[1].(int))
		return []any{q, err}
	})
	descDescribe = NewMethod("calculator", "Describe", 2, func(self any, args []any) []any {
		return []any{self.(*calculator).Describe(args[0].(int), args[1].(int))}
	})
	descEqual = NewMethod("calculator", "Equal", 1, func(self any, args []any) []any {
		other, _ := args[0].(*calculator)
		return []any{self.(*calculator).Equal(other)}
	})
	descHash = NewMethod("calculator", "Hash", 0, func(self any, _ []any) []any {
		return []any{self.(*calculator).Hash()}
	})
	descFinalize = NewMethod("calculator", "Finalize", 0, func(self any, _ []any) []any {
		self.(*calculator).Finalize()
		return nil
	})
	descExplode = NewMethod("calculator", "Explode", 0, func(self any, _ []any) []any {
		self.(*calculator).Explode()
		return nil
	})
	descAddVia = NewMethod("calculator", "AddVia", 1, func(self any, args []any) []any {
		return []any{self.(*calculator).AddVia(args[0].(*calculator))}
	})
}

func (c *calculator) Add(a, b int) int {
	if call := hook().Enter(c, descAdd, a, b); call.Replaces() {
		out, err := hook().Exit(call)
		if err != nil {
			panic(err)
		}
		return out[0].(int)
	}
	c.native.Add(1)
	return c.base + a + b
}

func (c *calculator) Div(a, b int) (int, error) {
	if call := hook().Enter(c, descDiv, a, b); call.Replaces() {
		out, err := hook().Exit(call)
		if err != nil {
			return 0, err
		}
		q, _ := out[0].(int)
		e, _ := out[1].(error)
		return q, e
	}
	c.native.Add(1)
	if b == 0 {
		return 0, errDivByZero
	}
	return a / b, nil
}

func (c *calculator) Describe(x, y int) string {
	if call := hook().Enter(c, descDescribe, x, y); call.Replaces() {
		out, err := hook().Exit(call)
		if err != nil {
			panic(err)
		}
		return out[0].(string)
	}
	c.native.Add(1)
	return fmt.Sprintf("%d+%d+%d=%d", c.base, x, y, c.base+x+y)
}

// Equal compares fields.
func (c *calculator) Equal(other *calculator) bool {
	if call := hook().Enter(c, descEqual, other); call.Replaces() {
		out, err := hook().Exit(call)
		if err != nil {
			panic(err)
		}
		return out[0].(bool)
	}
	c.native.Add(1)
	return other != nil && c.base == other.base
}

// Hash is derived from fields.
func (c *calculator) Hash() uint64 {
	if call := hook().Enter(c, descHash); call.Replaces() {
		out, err := hook().Exit(call)
		if err != nil {
			panic(err)
		}
		return out[0].(uint64)
	}
	c.native.Add(1)
	return uint64(c.base) * 31
}

func (c *calculator) Finalize() {
	if call := hook().Enter(c, descFinalize); call.Replaces() {
		if _, err := hook().Exit(call); err != nil {
			panic(err)
		}
		return
	}
	c.native.Add(1)
}

func (c *calculator) Explode() {
	if call := hook().Enter(c, descExplode); call.Replaces() {
		if _, err := hook().Exit(call); err != nil {
			panic(err)
		}
		return
	}
	c.native.Add(1)
	panic("explode")
}

// AddVia delegates the addition to another calculator.
func (c *calculator) AddVia(o *calculator) int {
	if call := hook().Enter(c, descAddVia, o); call.Replaces() {
		out, err := hook().Exit(call)
		if err != nil {
			panic(err)
		}
		return out[0].(int)
	}
	c.native.Add(1)
	return o.Add(c.base, 0)
}

// countingHandler counts invocations and answers with fn.
type countingHandler struct {
	calls atomic.Int64
	fn    func(self any, m *Method, original Original, args []any) ([]any, error)
}

func (h *countingHandler) Invoke(self any, m *Method, original Original, args []any) ([]any, error) {
	h.calls.Add(1)
	return h.fn(self, m, original, args)
}

func delegating() *countingHandler {
	return &countingHandler{fn: func(_ any, _ *Method, original Original, _ []any) ([]any, error) {
		return original.Invoke()
	}}
}

func returning(values ...any) *countingHandler {
	return &countingHandler{fn: func(any, *Method, Original, []any) ([]any, error) {
		return values, nil
	}}
}
