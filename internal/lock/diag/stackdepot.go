package diag

import (
	"fmt"
	"hash/fnv"
	"runtime"
	"strings"
	"sync"
	"unsafe"
)

// MaxFrames is the number of frames kept per acquisition stack. The
// interesting frames (the caller's Lock site and its callers) are near the
// top, so a short trace is enough to point at a recursive lock.
const MaxFrames = 8

// StackTrace is a fixed-size captured call stack.
type StackTrace struct {
	PC [MaxFrames]uintptr
}

// depot deduplicates stacks by FNV-1a hash of their program counters.
// Key: uint64 hash, Value: *StackTrace.
var depot sync.Map

// CaptureStack records the caller's stack and returns its depot hash.
//
// skip counts frames above CaptureStack's caller to omit, so a lock method
// passes 1 to start the trace at the code that called Lock.
//
// Returns 0 if no frames were available.
//
// Thread Safety: Safe for concurrent calls.
func CaptureStack(skip int) uint64 {
	var pcs [MaxFrames]uintptr
	// +2: runtime.Callers and CaptureStack itself.
	n := runtime.Callers(skip+2, pcs[:])
	if n == 0 {
		return 0
	}

	hash := hashStack(pcs[:n])
	if _, ok := depot.Load(hash); !ok {
		depot.Store(hash, &StackTrace{PC: pcs})
	}
	return hash
}

// GetStack returns the stack stored under hash, or nil.
func GetStack(hash uint64) *StackTrace {
	if hash == 0 {
		return nil
	}
	v, ok := depot.Load(hash)
	if !ok {
		return nil
	}
	return v.(*StackTrace)
}

// ResetDepot clears all stored stacks. Tests only; not safe for concurrent
// use with CaptureStack.
func ResetDepot() {
	depot = sync.Map{}
}

// DepotSize returns the number of unique stacks stored. O(n).
func DepotSize() int {
	n := 0
	depot.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func hashStack(pcs []uintptr) uint64 {
	h := fnv.New64a()
	for _, pc := range pcs {
		//nolint:gosec // G103: reading the PC value as bytes for hashing
		b := (*[8]byte)(unsafe.Pointer(&pc))[:]
		_, _ = h.Write(b)
	}
	return h.Sum64()
}

// Format renders the stack in the familiar Go traceback shape:
//
//	main.worker()
//	    /path/to/file.go:45
//
// Runtime frames and the lock methods themselves are dropped.
func (st *StackTrace) Format() string {
	if st == nil {
		return "  <unknown>\n"
	}

	frames := runtime.CallersFrames(st.PC[:])
	var buf strings.Builder
	for {
		frame, more := frames.Next()
		if frame.PC == 0 {
			break
		}
		if !isInternalFrame(frame.Function) {
			fmt.Fprintf(&buf, "  %s()\n", frame.Function)
			fmt.Fprintf(&buf, "      %s:%d\n", frame.File, frame.Line)
		}
		if !more {
			break
		}
	}

	if buf.Len() == 0 {
		return "  <runtime internal>\n"
	}
	return buf.String()
}

func isInternalFrame(fn string) bool {
	return strings.HasPrefix(fn, "runtime.") ||
		strings.Contains(fn, "/internal/lock/mutex.(*Mutex)") ||
		strings.Contains(fn, "/internal/lock/condvar.(*Cond)")
}
