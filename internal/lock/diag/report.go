// Package diag produces diagnostics for lock misuse.
//
// Misuse of a Mutex or Cond (unlocking a mutex the caller does not own,
// re-locking a mutex the caller already owns, waiting without holding the
// paired mutex) is a programming error, not a runtime condition. The lock
// packages panic with a *MisuseError describing what happened, and, when
// owner tracking is enabled, where the mutex was originally acquired.
//
// Example output of Report:
//
//	==================
//	LOCK MISUSE: recursive lock
//	  mutex 0xc000012345 locked again by its owner ctx#18
//
//	Previous acquisition:
//	  main.worker()
//	      /path/to/main.go:31
//	==================
package diag

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kolkov/parklock/internal/lock/ident"
)

// MisuseKind classifies a lock programming error.
type MisuseKind int

const (
	// UnlockNotOwner is Unlock called by a context that does not hold the mutex.
	UnlockNotOwner MisuseKind = iota
	// RecursiveLock is Lock called by the context that already holds the mutex.
	RecursiveLock
	// WaitNotOwner is Cond.Wait called without holding the paired mutex.
	WaitNotOwner
)

// String returns the string representation of a MisuseKind.
func (k MisuseKind) String() string {
	switch k {
	case UnlockNotOwner:
		return "unlock of mutex not held by caller"
	case RecursiveLock:
		return "recursive lock"
	case WaitNotOwner:
		return "wait without holding mutex"
	default:
		return "unknown misuse"
	}
}

// MisuseError describes a lock programming error.
//
// Thread Safety: Immutable after creation.
type MisuseError struct {
	Kind MisuseKind

	// Object is the address of the mutex involved.
	Object uintptr

	// Caller is the context that made the bad call.
	Caller ident.ID

	// Owner is the recorded owner at the time, or ident.None.
	Owner ident.ID

	// AcquireStack is the depot hash of the owner's acquisition stack, or 0
	// when owner tracking is off.
	AcquireStack uint64
}

// Error implements the error interface.
//
// Format: "parklock: <kind>: mutex 0x<addr> caller=<id> owner=<id>"
func (e *MisuseError) Error() string {
	return fmt.Sprintf("parklock: %s: mutex 0x%x caller=%s owner=%s",
		e.Kind, e.Object, e.Caller, e.Owner)
}

// Report writes a framed, human-readable report of e to w.
func Report(w io.Writer, e *MisuseError) {
	var buf strings.Builder
	buf.WriteString("==================\n")
	fmt.Fprintf(&buf, "LOCK MISUSE: %s\n", e.Kind)

	switch e.Kind {
	case RecursiveLock:
		fmt.Fprintf(&buf, "  mutex 0x%x locked again by its owner %s\n", e.Object, e.Caller)
	case UnlockNotOwner:
		if e.Owner == ident.None {
			fmt.Fprintf(&buf, "  mutex 0x%x unlocked by %s while not locked\n", e.Object, e.Caller)
		} else {
			fmt.Fprintf(&buf, "  mutex 0x%x unlocked by %s but owned by %s\n", e.Object, e.Caller, e.Owner)
		}
	case WaitNotOwner:
		fmt.Fprintf(&buf, "  %s waited on a condition without holding mutex 0x%x (owner %s)\n",
			e.Caller, e.Object, e.Owner)
	}

	if st := GetStack(e.AcquireStack); st != nil {
		buf.WriteString("\nPrevious acquisition:\n")
		buf.WriteString(st.Format())
	}
	buf.WriteString("==================\n")

	_, _ = io.WriteString(w, buf.String())
}

// Output is where Fail writes reports before panicking.
var Output io.Writer = os.Stderr

// Fail reports e to Output and panics with it.
func Fail(e *MisuseError) {
	Report(Output, e)
	panic(e)
}
