// Package syncstate implements the packed atomic state word shared by Mutex
// and Cond.
//
// A State packs three boolean flags into the low bits of a uint32:
//   - Bit 0: locked       (mutex is held)
//   - Bit 1: has_waiters  (the wait queue is non-empty)
//   - Bit 2: queue_locked (short-lived spinlock guarding the queue head)
//
// The queue_locked bit is independent of locked: holding the queue lock never
// implies holding the mutex, and the mutex may be released while another
// goroutine holds the queue lock.
//
// All transitions go through compare-and-swap on the whole word so that a
// change to one flag can never silently overwrite a concurrent change to
// another.
package syncstate

import (
	"runtime"
	"strings"
	"sync/atomic"
)

// State is a decoded snapshot of the packed word.
// Layout: [unused:29][queue_locked:1][has_waiters:1][locked:1]
type State uint32

const (
	// Locked is set while the mutex is held.
	Locked State = 1 << iota

	// HasWaiters mirrors (queue head != nil). It is only rewritten when the
	// queue lock is released.
	HasWaiters

	// QueueLocked is the spinlock bit protecting queue mutation.
	QueueLocked
)

// Unlocked is the zero state: no flags set.
const Unlocked State = 0

// DefaultSpinLimit is the number of failed queue-lock CAS attempts before the
// spinning goroutine yields with runtime.Gosched.
const DefaultSpinLimit = 64

// Pack builds a State from its three flags.
//
//go:nosplit
func Pack(locked, hasWaiters, queueLocked bool) State {
	var s State
	if locked {
		s |= Locked
	}
	if hasWaiters {
		s |= HasWaiters
	}
	if queueLocked {
		s |= QueueLocked
	}
	return s
}

// Decode extracts the three flags.
//
//go:nosplit
func (s State) Decode() (locked, hasWaiters, queueLocked bool) {
	return s&Locked != 0, s&HasWaiters != 0, s&QueueLocked != 0
}

// IsLocked reports whether the locked bit is set.
func (s State) IsLocked() bool { return s&Locked != 0 }

// HasWaiters reports whether the has_waiters bit is set.
func (s State) HasWaiters() bool { return s&HasWaiters != 0 }

// IsQueueLocked reports whether the queue spinlock bit is set.
func (s State) IsQueueLocked() bool { return s&QueueLocked != 0 }

// With returns s with the given bits set.
func (s State) With(bits State) State { return s | bits }

// Without returns s with the given bits cleared.
func (s State) Without(bits State) State { return s &^ bits }

// String renders the flags for diagnostics, e.g. "locked|waiters".
func (s State) String() string {
	if s == Unlocked {
		return "unlocked"
	}
	var parts []string
	if s.IsLocked() {
		parts = append(parts, "locked")
	}
	if s.HasWaiters() {
		parts = append(parts, "waiters")
	}
	if s.IsQueueLocked() {
		parts = append(parts, "qlocked")
	}
	return strings.Join(parts, "|")
}

// Word is the atomically accessed state plus the owner identity.
//
// Owner is valid only while the locked bit is set. It is written after the
// acquiring CAS succeeds and cleared before the releasing CAS.
//
// The zero value is an unlocked word with no owner.
type Word struct {
	bits  atomic.Uint32
	owner atomic.Int64

	// SpinLimit overrides DefaultSpinLimit when positive.
	SpinLimit int
}

// Load returns the current state.
func (w *Word) Load() State {
	return State(w.bits.Load())
}

// CompareAndSwap atomically replaces old with new.
func (w *Word) CompareAndSwap(old, new State) bool {
	return w.bits.CompareAndSwap(uint32(old), uint32(new))
}

// TryAcquire sets the locked bit if it is clear, preserving the other flags.
// Returns false as soon as the locked bit is observed set.
//
// Concurrent flips of has_waiters or queue_locked can fail the CAS without the
// lock being taken; those failures are retried because they are not contention
// on the lock itself.
func (w *Word) TryAcquire() bool {
	for {
		old := w.Load()
		if old.IsLocked() {
			return false
		}
		if w.CompareAndSwap(old, old.With(Locked)) {
			return true
		}
	}
}

// Release clears the locked bit and returns the state observed just before
// the successful CAS. The caller inspects HasWaiters on the result to decide
// whether a waiter must be woken.
//
// Returns ok=false if the word was not locked.
func (w *Word) Release() (prev State, ok bool) {
	for {
		old := w.Load()
		if !old.IsLocked() {
			return old, false
		}
		if w.CompareAndSwap(old, old.Without(Locked)) {
			return old, true
		}
	}
}

// LockQueue spins until it sets the queue_locked bit and returns the state
// observed at the moment of acquisition (with QueueLocked set).
func (w *Word) LockQueue() State {
	limit := w.SpinLimit
	if limit <= 0 {
		limit = DefaultSpinLimit
	}
	spins := 0
	for {
		old := w.Load()
		if !old.IsQueueLocked() {
			next := old.With(QueueLocked)
			if w.CompareAndSwap(old, next) {
				return next
			}
		}
		spins++
		if spins >= limit {
			spins = 0
			runtime.Gosched()
		}
	}
}

// UnlockQueue clears queue_locked and rewrites has_waiters to nonEmpty in a
// single CAS, restoring the invariant has_waiters == (head != nil).
//
// Panics if the queue lock is not held; that indicates a bug in this module.
func (w *Word) UnlockQueue(nonEmpty bool) State {
	for {
		old := w.Load()
		if !old.IsQueueLocked() {
			panic("syncstate: UnlockQueue without queue lock")
		}
		next := old.Without(QueueLocked | HasWaiters)
		if nonEmpty {
			next = next.With(HasWaiters)
		}
		if w.CompareAndSwap(old, next) {
			return next
		}
	}
}

// PublishWaiter releases the queue lock after a mutex waiter was enqueued,
// setting has_waiters, but only while the mutex is still locked.
//
// If the locked bit has already been cleared the word is left untouched and
// false is returned: the caller still holds the queue lock, must unlink its
// node, and should retry the fast path instead of parking. Because this check
// and the releasing CAS in Release operate on the same word, an unlock either
// observes has_waiters or the waiter observes the unlock; a wakeup can never
// fall between the two.
func (w *Word) PublishWaiter() bool {
	for {
		old := w.Load()
		if !old.IsQueueLocked() {
			panic("syncstate: PublishWaiter without queue lock")
		}
		if !old.IsLocked() {
			return false
		}
		if w.CompareAndSwap(old, old.Without(QueueLocked).With(HasWaiters)) {
			return true
		}
	}
}

// Owner returns the recorded owner id, or 0 when none is recorded.
func (w *Word) Owner() int64 {
	return w.owner.Load()
}

// SetOwner records the owner after a successful acquire.
func (w *Word) SetOwner(id int64) {
	w.owner.Store(id)
}

// ClearOwner forgets the owner. Must precede Release.
func (w *Word) ClearOwner() {
	w.owner.Store(0)
}
