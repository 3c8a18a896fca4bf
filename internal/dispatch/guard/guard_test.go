package guard

import (
	"sync"
	"testing"

	"github.com/kolkov/inlinemock/internal/dispatch/ref"
)

type instance struct {
	id int
}

// TestGuard_Empty verifies a fresh guard has nothing armed.
func TestGuard_Empty(t *testing.T) {
	g := New()
	r := ref.Of(&instance{})

	if g.Consume(r) {
		t.Error("Consume on empty guard = true, want false")
	}
	if g.Current().Valid() {
		t.Error("Current() on empty guard is valid")
	}
	if g.Armed() != 0 {
		t.Errorf("Armed() = %d, want 0", g.Armed())
	}
}

// TestGuard_ArmConsumeOnce verifies the single-shot protocol.
func TestGuard_ArmConsumeOnce(t *testing.T) {
	g := New()
	r := ref.Of(&instance{id: 1})

	prev := g.Arm(r)
	if prev.Valid() {
		t.Fatalf("Arm returned prev = %v, want zero Ref", prev)
	}
	if g.Current() != r {
		t.Fatalf("Current() = %v, want %v", g.Current(), r)
	}

	if !g.Consume(r) {
		t.Fatal("first Consume = false, want true")
	}
	if g.Consume(r) {
		t.Error("second Consume = true, slot should have been cleared")
	}

	g.Restore(prev)
	if g.Armed() != 0 {
		t.Errorf("Armed() = %d after Restore, want 0", g.Armed())
	}
}

// TestGuard_ConsumeOtherInstance verifies the slot matches by identity only.
func TestGuard_ConsumeOtherInstance(t *testing.T) {
	g := New()
	a := ref.Of(&instance{id: 1})
	b := ref.Of(&instance{id: 1})

	prev := g.Arm(a)
	defer g.Restore(prev)

	if g.Consume(b) {
		t.Error("Consume(b) = true while a is armed")
	}
	if g.Current() != a {
		t.Error("Consume(b) must leave a armed")
	}
	if g.Consume(ref.Ref{}) {
		t.Error("Consume(zero Ref) = true")
	}
}

// TestGuard_NestedRestore verifies that Restore brings back the outer value.
func TestGuard_NestedRestore(t *testing.T) {
	g := New()
	a := ref.Of(&instance{id: 1})
	b := ref.Of(&instance{id: 2})

	prevA := g.Arm(a)
	prevB := g.Arm(b)
	if prevB != a {
		t.Fatalf("inner Arm prev = %v, want %v", prevB, a)
	}
	if g.Armed() != 1 {
		t.Errorf("Armed() = %d with nested arms on one goroutine, want 1", g.Armed())
	}

	g.Restore(prevB)
	if g.Current() != a {
		t.Errorf("Current() after inner Restore = %v, want %v", g.Current(), a)
	}

	g.Restore(prevA)
	if g.Current().Valid() || g.Armed() != 0 {
		t.Error("guard still armed after outer Restore")
	}
}

// TestGuard_RestoreAfterConsume verifies Restore works when the slot was
// already consumed.
func TestGuard_RestoreAfterConsume(t *testing.T) {
	g := New()
	r := ref.Of(&instance{})

	prev := g.Arm(r)
	g.Consume(r)
	g.Restore(prev)

	if g.Armed() != 0 {
		t.Errorf("Armed() = %d, want 0", g.Armed())
	}
}

// TestGuard_RestoreOnPanic verifies the deferred restore protocol.
func TestGuard_RestoreOnPanic(t *testing.T) {
	g := New()
	r := ref.Of(&instance{})

	func() {
		defer func() { _ = recover() }()
		prev := g.Arm(r)
		defer g.Restore(prev)
		panic("original failed")
	}()

	if g.Current().Valid() {
		t.Error("guard left armed after panic")
	}
}

// TestGuard_GoroutineIsolation verifies that one goroutine's slot is
// invisible to others.
func TestGuard_GoroutineIsolation(t *testing.T) {
	g := New()
	r := ref.Of(&instance{})

	prev := g.Arm(r)
	defer g.Restore(prev)

	done := make(chan bool)
	go func() {
		done <- g.Consume(r)
	}()

	if <-done {
		t.Error("another goroutine consumed this goroutine's slot")
	}
	if g.Current() != r {
		t.Error("slot changed by another goroutine")
	}
}

// TestGuard_ConcurrentSameInstance arms the same instance on many
// goroutines at once.
func TestGuard_ConcurrentSameInstance(t *testing.T) {
	g := New()
	r := ref.Of(&instance{})

	const numGoroutines = 64
	var wg sync.WaitGroup
	errs := make(chan string, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				prev := g.Arm(r)
				if !g.Consume(r) {
					errs <- "Consume after own Arm = false"
				}
				g.Restore(prev)
			}
		}()
	}

	wg.Wait()
	close(errs)

	for e := range errs {
		t.Fatal(e)
	}
	if g.Armed() != 0 {
		t.Errorf("Armed() = %d after all goroutines finished, want 0", g.Armed())
	}
}

func BenchmarkGuard_ConsumeIdle(b *testing.B) {
	g := New()
	r := ref.Of(&instance{})

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		g.Consume(r)
	}
}

func BenchmarkGuard_ArmConsumeRestore(b *testing.B) {
	g := New()
	r := ref.Of(&instance{})

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		prev := g.Arm(r)
		g.Consume(r)
		g.Restore(prev)
	}
}
