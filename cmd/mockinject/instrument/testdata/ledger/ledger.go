package ledger

import "fmt"

// Ledger sums posted amounts.
type Ledger struct {
	Name    string
	entries []int
}

func (l *Ledger) Post(amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%s: invalid amount %d", l.Name, amount)
	}
	l.entries = append(l.entries, amount)
	return nil
}

func (l *Ledger) PostAll(amounts ...int) (int, error) {
	for i, a := range amounts {
		if err := l.Post(a); err != nil {
			return i, err
		}
	}
	return len(amounts), nil
}

func (l *Ledger) Total() int {
	sum := 0
	for _, e := range l.entries {
		sum += e
	}
	return sum
}

func (l *Ledger) Equal(other *Ledger) bool {
	return other != nil && l.Name == other.Name
}

func (l *Ledger) Hash() uint32 {
	return uint32(len(l.Name))
}

// A and A_B produce the same descriptor base name for B_C and C.
type A struct{ n int }

func (a *A) B_C() string { return "A.B_C" }

type A_B struct{ n int }

func (a *A_B) C() string { return "A_B.C" }
