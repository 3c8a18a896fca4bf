// Package stackdepot stores deduplicated stack traces of handler
// registrations.
//
// Each registration can record where it happened so that leaked or
// unexpected mocks can be traced back to the code that installed them.
// Identical stacks are stored once and referenced by a 64-bit hash.
//
// Design:
//   - Fixed-size stack traces (MaxFrames frames)
//   - Hash-based deduplication (xxh3 over the program counters)
//   - Concurrent map storage, one Depot per session
//
// Usage:
//
//	d := stackdepot.New()
//	hash := d.Capture(1)
//	if st := d.Get(hash); st != nil {
//	    fmt.Print(st.Format())
//	}
package stackdepot

import (
	"fmt"
	"runtime"
	"strings"
	"unsafe"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/zeebo/xxh3"
)

// MaxFrames is the maximum number of stack frames captured per trace.
const MaxFrames = 8

// StackTrace is a captured stack trace with fixed size.
type StackTrace struct {
	PC [MaxFrames]uintptr
}

// Depot is a deduplicating store of stack traces.
//
// Thread Safety: all methods are safe for concurrent use.
type Depot struct {
	stacks *xsync.MapOf[uint64, *StackTrace]
}

// New creates an empty Depot.
func New() *Depot {
	return &Depot{stacks: xsync.NewMapOf[uint64, *StackTrace]()}
}

// Capture records the current goroutine's stack and returns its hash.
//
// skip is the number of additional caller frames to omit; 0 starts the
// trace at the caller of Capture.
//
// Returns 0 if no frames are available.
//
// Performance: ~500ns (runtime.Callers + hashing). Stacks already in the
// depot cost only the hash.
func (d *Depot) Capture(skip int) uint64 {
	var pcs [MaxFrames]uintptr
	// +2 skips runtime.Callers and Capture itself.
	n := runtime.Callers(skip+2, pcs[:])
	if n == 0 {
		return 0
	}

	hash := hashStack(pcs[:n])
	if hash == 0 {
		// 0 is reserved for "no stack".
		hash = 1
	}

	d.stacks.LoadOrStore(hash, &StackTrace{PC: pcs})
	return hash
}

// Get returns the stack stored under hash, or nil.
func (d *Depot) Get(hash uint64) *StackTrace {
	if hash == 0 {
		return nil
	}
	st, _ := d.stacks.Load(hash)
	return st
}

// Len returns the number of unique stacks stored.
func (d *Depot) Len() int {
	return d.stacks.Size()
}

// Reset drops all stored stacks.
func (d *Depot) Reset() {
	d.stacks.Clear()
}

// hashStack computes the xxh3 hash of program counters.
func hashStack(pcs []uintptr) uint64 {
	//nolint:gosec // G103: reading the PC slice as bytes for hashing
	b := unsafe.Slice((*byte)(unsafe.Pointer(&pcs[0])), len(pcs)*int(unsafe.Sizeof(pcs[0])))
	return xxh3.Hash(b)
}

// Frames returns the symbolized frames of the trace, skipping runtime
// internals.
func (st *StackTrace) Frames() []runtime.Frame {
	if st == nil {
		return nil
	}

	var out []runtime.Frame
	frames := runtime.CallersFrames(trimZero(st.PC[:]))
	for {
		frame, more := frames.Next()
		if frame.PC != 0 && !strings.HasPrefix(frame.Function, "runtime.") {
			out = append(out, frame)
		}
		if !more {
			break
		}
	}
	return out
}

// Format renders the trace in the layout of Go's panic traces:
//
//	pkg.TestSomething()
//	    /path/to/file_test.go:45
func (st *StackTrace) Format() string {
	frames := st.Frames()
	if len(frames) == 0 {
		return "  <unknown>\n"
	}

	var buf strings.Builder
	for _, frame := range frames {
		fmt.Fprintf(&buf, "  %s()\n", frame.Function)
		fmt.Fprintf(&buf, "      %s:%d\n", frame.File, frame.Line)
	}
	return buf.String()
}

func trimZero(pcs []uintptr) []uintptr {
	for i, pc := range pcs {
		if pc == 0 {
			return pcs[:i]
		}
	}
	return pcs
}
