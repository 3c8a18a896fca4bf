package mock_test

import (
	"fmt"

	"github.com/kolkov/inlinemock/mock"
)

// Account carries the prelude the mockinject tool would insert.
type Account struct {
	Owner   string
	balance int
}

var accountBalance, accountDeposit, accountEqual *mock.Method

func init() {
	accountBalance = mock.NewMethod("Account", "Balance", 0, func(self any, _ []any) []any {
		return []any{self.(*Account).Balance()}
	})
	accountDeposit = mock.NewMethod("Account", "Deposit", 1, func(self any, args []any) []any {
		n, err := self.(*Account).Deposit(mock.Arg[int](args, 0))
		return []any{n, err}
	})
	accountEqual = mock.NewMethod("Account", "Equal", 1, func(self any, args []any) []any {
		return []any{self.(*Account).Equal(mock.Arg[*Account](args, 0))}
	})
}

func (a *Account) Balance() int {
	if c := mock.Enter(a, accountBalance); c.Replaces() {
		return mock.Out[int](mock.MustExit(c), 0)
	}
	return a.balance
}

func (a *Account) Deposit(n int) (int, error) {
	if c := mock.Enter(a, accountDeposit, n); c.Replaces() {
		out, err := mock.Exit(c)
		return mock.Out[int](out, 0), mock.Err(out, 1, err)
	}
	if n <= 0 {
		return a.balance, fmt.Errorf("invalid deposit %d", n)
	}
	a.balance += n
	return a.balance, nil
}

// Equal compares owners.
func (a *Account) Equal(other *Account) bool {
	if c := mock.Enter(a, accountEqual, other); c.Replaces() {
		return mock.Out[bool](mock.MustExit(c), 0)
	}
	return other != nil && a.Owner == other.Owner
}

// Example stubs one instance and leaves another untouched.
func Example() {
	s := mock.NewSession()
	prev := mock.Install(s)
	defer mock.Install(prev)

	stubbed := &Account{Owner: "ann", balance: 10}
	plain := &Account{Owner: "ann", balance: 10}

	_ = mock.Register(stubbed, mock.HandlerFunc(
		func(any, *mock.Method, mock.Original, []any) ([]any, error) {
			return []any{1000}, nil
		}))

	fmt.Println(stubbed.Balance())
	fmt.Println(plain.Balance())

	// Output:
	// 1000
	// 10
}

// Example_delegation shows a handler that records calls and runs the
// original implementation.
func Example_delegation() {
	s := mock.NewSession()
	prev := mock.Install(s)
	defer mock.Install(prev)

	acct := &Account{Owner: "bob"}
	_ = mock.Register(acct, mock.HandlerFunc(
		func(_ any, m *mock.Method, orig mock.Original, args []any) ([]any, error) {
			fmt.Printf("%s%v\n", m.Name, args)
			return orig.Invoke()
		}))

	n, err := acct.Deposit(5)
	fmt.Println(n, err)

	_, err = acct.Deposit(-1)
	fmt.Println(err)

	// Output:
	// Deposit[5]
	// 5 <nil>
	// Deposit[-1]
	// invalid deposit -1
}

// Example_identity shows Equal on instances without a handler.
func Example_identity() {
	s := mock.NewSession()
	prev := mock.Install(s)
	defer mock.Install(prev)

	a := &Account{Owner: "carol"}
	b := &Account{Owner: "carol"}

	fmt.Println(a.Equal(b))
	fmt.Println(a.Equal(a))

	// Without a session the method runs as written.
	mock.Install(nil)
	fmt.Println(a.Equal(b))

	// Output:
	// false
	// true
	// true
}
