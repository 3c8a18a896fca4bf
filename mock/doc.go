// Package mock provides the runtime API for inline call interception.
//
// Instrumented methods start with a short prelude that asks the runtime
// whether the call on this particular receiver is intercepted. If a handler
// is registered for the receiver, the handler answers the call; otherwise
// the method runs as written. Interception is keyed by object identity, so
// mocking one instance never affects another instance of the same type.
//
// # Quick Start
//
// The prelude is inserted by the mockinject tool:
//
//	$ mockinject test ./...
//
// A test then installs a session and registers handlers on instances:
//
//	func TestTransfer(t *testing.T) {
//		s := mock.NewSession()
//		prev := mock.Install(s)
//		defer mock.Install(prev)
//
//		acct := bank.NewAccount(100)
//		mock.Register(acct, mock.HandlerFunc(
//			func(self any, m *mock.Method, orig mock.Original, args []any) ([]any, error) {
//				if m.Name == "Balance" {
//					return []any{0}, nil
//				}
//				return orig.Invoke() // everything else runs for real
//			}))
//		...
//	}
//
// # API Overview
//
// The package provides functions for:
//   - Session management: [NewSession], [Install], [Current]
//   - Registration: [Register], [Unregister], [Session.Register]
//   - Dispatch (called by generated code): [Enter], [Exit], [MustExit]
//   - Typed conversion (called by generated code): [Arg], [Out], [Err], [HashOut]
//   - Identity semantics: [IdentityHash], [IdentityEquals]
//   - Version information: [GetInfo], [Version], [Compatible]
//
// # How It Works
//
// The mockinject tool rewrites every pointer-receiver method of the selected
// types:
//
//	// Original code:
//	func (a *Account) Deposit(n int) (int, error) {
//		a.balance += n
//		return a.balance, nil
//	}
//
//	// Instrumented code:
//	func (a *Account) Deposit(n int) (int, error) {
//		if __mockCall := mock.Enter(a, __mockMethod_Account_Deposit, n); __mockCall.Replaces() {
//			__mockOut, __mockErr := mock.Exit(__mockCall)
//			return mock.Out[int](__mockOut, 0), mock.Err(__mockOut, 1, __mockErr)
//		}
//		a.balance += n
//		return a.balance, nil
//	}
//
// and adds one descriptor per method, whose body calls the method again.
// When a handler calls [Original.Invoke], the runtime marks the receiver on
// the current goroutine and runs the descriptor body; the prelude sees the
// mark, clears it and lets the real body run. The handler is therefore
// invoked once per external call, and a later call is intercepted again.
//
// # Identity Methods
//
// Equal(x) and Hash() methods of instances without a handler answer by
// identity: an instance equals only itself and hashes to [IdentityHash].
// A registered handler overrides both. [WithIdentityPolicy] turns the
// fallback off.
//
// # Concurrency
//
// Registration and dispatch are safe from any goroutine. The registry is a
// concurrent map read without locks; the delegation mark is per goroutine,
// so two goroutines may delegate on the same instance at the same time.
//
// # Examples
//
// See package-level examples in the documentation:
//   - [Example] - Stubbing one instance
//   - [Example_delegation] - Calling the original implementation
//   - [Example_identity] - Equality of unregistered instances
package mock
