// Package mutex implements a park-based mutual exclusion lock.
//
// State machine:
//
//	Unlocked --TryAcquire--> LockedUncontended --waiter published--> LockedContended
//	    ^                                                                  |
//	    +--------------------------- Unlock (wake one) --------------------+
//
// The fast path is a single CAS on the packed state word. Under contention a
// caller links a node into the wait queue (under the queue_locked spinlock
// bit), publishes has_waiters, and parks. Unlock clears the locked bit and,
// if has_waiters was set, dequeues and unparks the head waiter.
//
// There is no hand-off: a woken waiter re-races the fast path against any
// newly arriving caller. Wake order is FIFO; acquisition order is not.
package mutex

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/kolkov/parklock/internal/lock/diag"
	"github.com/kolkov/parklock/internal/lock/ident"
	"github.com/kolkov/parklock/internal/lock/park"
	"github.com/kolkov/parklock/internal/lock/stats"
	"github.com/kolkov/parklock/internal/lock/syncstate"
	"github.com/kolkov/parklock/internal/lock/waitq"
)

// Result is the outcome of a blocking Lock.
type Result int

const (
	// Acquired means the caller now holds the mutex.
	Acquired Result = iota
	// TimedOut means the timeout or context expired first. The caller does
	// not hold the mutex and its waiter has been removed from the queue.
	TimedOut
	// Cancelled means the caller's context was torn down while it waited.
	// The caller does not hold the mutex and must not continue normally.
	Cancelled
)

// ErrCancelled is returned by Result.Err for Cancelled.
var ErrCancelled = errors.New("parklock: execution context torn down while waiting")

// String returns the string representation of a Result.
func (r Result) String() string {
	switch r {
	case Acquired:
		return "Acquired"
	case TimedOut:
		return "TimedOut"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Err converts Cancelled into ErrCancelled; other results return nil.
func (r Result) Err() error {
	if r == Cancelled {
		return ErrCancelled
	}
	return nil
}

// Config holds the collaborators and tuning of a Mutex. The zero value uses
// goroutine identity and channel parkers.
type Config struct {
	// Identity names the calling context. Default: ident.Goroutine.
	Identity ident.Provider

	// Parkers creates the blocking capability for each waiter.
	// Default: park.Default.
	Parkers park.Factory

	// SpinLimit is the number of queue-lock CAS failures before yielding.
	// Default: syncstate.DefaultSpinLimit.
	SpinLimit int

	// TrackOwners captures the acquisition stack of every Lock, so that a
	// recursive lock report can show where the mutex was first taken.
	TrackOwners bool
}

// Mutex is a mutual exclusion lock. The zero value is an unlocked mutex
// with the default Config.
//
// A Mutex must not be copied after first use.
type Mutex struct {
	_ noCopy

	word  syncstate.Word
	queue waitq.Queue

	cfg Config

	// acquireStack is the depot hash of the current owner's Lock call.
	acquireStack atomic.Uint64

	stats stats.Counters
}

// New creates an unlocked Mutex with cfg.
func New(cfg Config) *Mutex {
	m := &Mutex{cfg: cfg}
	m.word.SpinLimit = cfg.SpinLimit
	return m
}

func (m *Mutex) identity() ident.Provider {
	if m.cfg.Identity != nil {
		return m.cfg.Identity
	}
	return ident.Goroutine
}

func (m *Mutex) parkers() park.Factory {
	if m.cfg.Parkers != nil {
		return m.cfg.Parkers
	}
	return park.Default
}

// Identity returns the provider used for ownership checks.
func (m *Mutex) Identity() ident.Provider {
	return m.identity()
}

// Parkers returns the parker factory used for waiters.
func (m *Mutex) Parkers() park.Factory {
	return m.parkers()
}

func (m *Mutex) addr() uintptr {
	//nolint:gosec // G103: address used only as an identity in reports
	return uintptr(unsafe.Pointer(m))
}

// TryLock acquires the mutex if it is unlocked. It never blocks.
func (m *Mutex) TryLock() bool {
	if !m.word.TryAcquire() {
		return false
	}
	m.acquired(m.identity().Current())
	m.stats.FastAcquire()
	return true
}

// Lock acquires the mutex, blocking for at most timeout. A timeout <= 0
// waits forever.
//
// Locking a mutex already held by the calling context panics with a
// *diag.MisuseError instead of deadlocking.
func (m *Mutex) Lock(timeout time.Duration) Result {
	if timeout <= 0 {
		return m.lock(func(n *waitq.Node) park.Outcome {
			return n.Park(0)
		})
	}

	deadline := time.Now().Add(timeout)
	return m.lock(func(n *waitq.Node) park.Outcome {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return park.TimedOut
		}
		return n.Park(remaining)
	})
}

// LockContext acquires the mutex or gives up when ctx is done, returning
// TimedOut in that case.
func (m *Mutex) LockContext(ctx context.Context) Result {
	return m.lock(func(n *waitq.Node) park.Outcome {
		if ctx.Err() != nil {
			return park.TimedOut
		}
		return n.ParkContext(ctx)
	})
}

// lock runs the acquisition loop. parkFn suspends on the node and reports
// whether it was woken or timed out.
func (m *Mutex) lock(parkFn func(*waitq.Node) park.Outcome) Result {
	me := m.identity().Current()

	if m.word.TryAcquire() {
		m.acquired(me)
		m.stats.FastAcquire()
		return Acquired
	}

	if ident.ID(m.word.Owner()) == me {
		diag.Fail(&diag.MisuseError{
			Kind:         diag.RecursiveLock,
			Object:       m.addr(),
			Caller:       me,
			Owner:        me,
			AcquireStack: m.acquireStack.Load(),
		})
	}

	var node *waitq.Node
	for {
		if m.word.TryAcquire() {
			m.acquired(me)
			m.stats.SlowAcquire()
			return Acquired
		}

		m.word.LockQueue()
		if !m.word.Load().IsLocked() {
			// Released while we were taking the queue lock.
			m.word.UnlockQueue(!m.queue.Empty())
			continue
		}

		if node == nil {
			node = waitq.NewNode(me, m.parkers().NewParker())
		} else {
			node.Reset()
		}
		m.queue.Enqueue(node)

		if !m.word.PublishWaiter() {
			// Unlock won the race on the state word and saw no waiter;
			// parking now could sleep forever.
			m.queue.Remove(node)
			m.word.UnlockQueue(!m.queue.Empty())
			continue
		}

		m.stats.Park()
		if parkFn(node) == park.TimedOut {
			m.word.LockQueue()
			if node.Claim(waitq.ClaimedForTimeout) {
				m.queue.Remove(node)
				m.word.UnlockQueue(!m.queue.Empty())
				m.stats.Timeout()
				return TimedOut
			}
			m.word.UnlockQueue(!m.queue.Empty())
			// Lost the claim: an unlock or cleanup already unlinked the
			// node and its Unpark is in flight. Consume it so the parker
			// is clean before the node is reused.
			node.Park(0)
		}

		if node.Status() == waitq.ClaimedForCancel {
			return Cancelled
		}
		// ClaimedForWake: re-race the fast path.
	}
}

func (m *Mutex) acquired(me ident.ID) {
	m.word.SetOwner(int64(me))
	if m.cfg.TrackOwners {
		m.acquireStack.Store(diag.CaptureStack(1))
	}
}

// Unlock releases the mutex and wakes the first queued waiter, if any.
//
// Unlocking a mutex that the calling context does not hold panics with a
// *diag.MisuseError.
func (m *Mutex) Unlock() {
	me := m.identity().Current()
	owner := ident.ID(m.word.Owner())
	if !m.word.Load().IsLocked() || owner != me {
		diag.Fail(&diag.MisuseError{
			Kind:   diag.UnlockNotOwner,
			Object: m.addr(),
			Caller: me,
			Owner:  owner,
		})
	}

	m.word.ClearOwner()
	m.acquireStack.Store(0)

	prev, _ := m.word.Release()
	if prev.HasWaiters() {
		m.wakeOne()
	}
}

// wakeOne dequeues the head waiter under the queue lock and unparks it after
// the lock is released.
func (m *Mutex) wakeOne() {
	m.word.LockQueue()
	n := m.queue.Dequeue()
	for n != nil && !n.Claim(waitq.ClaimedForWake) {
		n = m.queue.Dequeue()
	}
	m.word.UnlockQueue(!m.queue.Empty())

	if n != nil {
		n.Unpark()
		m.stats.Wake(1)
	}
}

// IsHeld reports whether some context holds the mutex.
func (m *Mutex) IsHeld() bool {
	return m.word.Load().IsLocked()
}

// IsOwner reports whether the calling context holds the mutex.
func (m *Mutex) IsOwner() bool {
	return m.word.Load().IsLocked() && ident.ID(m.word.Owner()) == m.identity().Current()
}

// Owner returns the current owner, or ident.None when unlocked.
func (m *Mutex) Owner() ident.ID {
	return ident.ID(m.word.Owner())
}

// State returns a snapshot of the packed state word.
func (m *Mutex) State() syncstate.State {
	return m.word.Load()
}

// CancelRequester removes every waiter created by id, wakes each one with
// Cancelled, and returns how many were cancelled.
func (m *Mutex) CancelRequester(id ident.ID) int {
	m.word.LockQueue()
	n := m.queue.DequeueAllMatchingForAsyncCleanup(func(node *waitq.Node) bool {
		return node.Requester == id
	})
	m.word.UnlockQueue(!m.queue.Empty())
	m.stats.Cancel(n)
	return n
}

// Waiters returns the number of queued waiters. O(n); for diagnostics.
func (m *Mutex) Waiters() int {
	m.word.LockQueue()
	n := m.queue.Len()
	m.word.UnlockQueue(n > 0)
	return n
}

// Stats returns a snapshot of the event counters.
func (m *Mutex) Stats() stats.Snapshot {
	return m.stats.Snapshot()
}

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
