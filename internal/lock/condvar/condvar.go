// Package condvar implements a condition variable paired with mutex.Mutex.
//
// A Cond owns its own state word and wait queue; only the queue_locked and
// has_waiters bits of the word are used. Waiters enqueue themselves on the
// cond before releasing the mutex, so a notify issued by the next mutex
// holder always finds them. Notify paths detach nodes under the queue lock
// and unpark them after releasing it.
package condvar

import (
	"context"
	"math"
	"time"
	"unsafe"

	"github.com/kolkov/parklock/internal/lock/diag"
	"github.com/kolkov/parklock/internal/lock/ident"
	"github.com/kolkov/parklock/internal/lock/mutex"
	"github.com/kolkov/parklock/internal/lock/park"
	"github.com/kolkov/parklock/internal/lock/stats"
	"github.com/kolkov/parklock/internal/lock/syncstate"
	"github.com/kolkov/parklock/internal/lock/waitq"
)

// Result is the outcome of Wait.
type Result int

const (
	// Notified means a notify woke the waiter. The mutex is held again.
	Notified Result = iota
	// TimedOut means the timeout or context expired first. The mutex is
	// held again.
	TimedOut
	// Cancelled means the waiter's context was torn down. The mutex is NOT
	// held; the caller must propagate an error instead of continuing.
	Cancelled
)

// String returns the string representation of a Result.
func (r Result) String() string {
	switch r {
	case Notified:
		return "Notified"
	case TimedOut:
		return "TimedOut"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Err converts Cancelled into mutex.ErrCancelled; other results return nil.
func (r Result) Err() error {
	if r == Cancelled {
		return mutex.ErrCancelled
	}
	return nil
}

// Config holds the collaborators of a Cond. Nil fields fall back to the
// collaborators of the mutex passed to Wait.
type Config struct {
	Identity  ident.Provider
	Parkers   park.Factory
	SpinLimit int
}

// Cond is a condition variable. The zero value is ready to use.
//
// A Cond must not be copied after first use.
type Cond struct {
	_ noCopy

	word  syncstate.Word
	queue waitq.Queue

	cfg   Config
	stats stats.Counters
}

// New creates a Cond with cfg.
func New(cfg Config) *Cond {
	c := &Cond{cfg: cfg}
	c.word.SpinLimit = cfg.SpinLimit
	return c
}

func (c *Cond) identity(m *mutex.Mutex) ident.Provider {
	if c.cfg.Identity != nil {
		return c.cfg.Identity
	}
	return m.Identity()
}

func (c *Cond) parkers(m *mutex.Mutex) park.Factory {
	if c.cfg.Parkers != nil {
		return c.cfg.Parkers
	}
	return m.Parkers()
}

// Wait atomically releases m and suspends until notified, until timeout
// elapses, or until the caller's context is cancelled. A timeout <= 0 waits
// forever. Unless the result is Cancelled, m is held again on return.
//
// Waiting without holding m panics with a *diag.MisuseError.
func (c *Cond) Wait(m *mutex.Mutex, timeout time.Duration) Result {
	if timeout <= 0 {
		return c.wait(m, func(n *waitq.Node) park.Outcome {
			return n.Park(0)
		})
	}
	return c.wait(m, func(n *waitq.Node) park.Outcome {
		return n.Park(timeout)
	})
}

// WaitContext is Wait bounded by ctx instead of a timeout. A done context
// yields TimedOut.
func (c *Cond) WaitContext(ctx context.Context, m *mutex.Mutex) Result {
	return c.wait(m, func(n *waitq.Node) park.Outcome {
		if ctx.Err() != nil {
			return park.TimedOut
		}
		return n.ParkContext(ctx)
	})
}

func (c *Cond) wait(m *mutex.Mutex, parkFn func(*waitq.Node) park.Outcome) Result {
	me := c.identity(m).Current()
	if !m.IsOwner() {
		diag.Fail(&diag.MisuseError{
			Kind:   diag.WaitNotOwner,
			Object: uintptr(unsafe.Pointer(m)), //nolint:gosec // G103: report identity only
			Caller: me,
			Owner:  m.Owner(),
		})
	}

	node := waitq.NewNode(me, c.parkers(m).NewParker())

	// Enqueue before unlocking: a notify from the next holder of m must see
	// this waiter.
	c.word.LockQueue()
	c.queue.Enqueue(node)
	c.word.UnlockQueue(true)

	m.Unlock()

	c.stats.Park()
	result := Notified
	if parkFn(node) == park.TimedOut {
		c.word.LockQueue()
		if node.Claim(waitq.ClaimedForTimeout) {
			c.queue.Remove(node)
			c.word.UnlockQueue(!c.queue.Empty())
			c.stats.Timeout()
			result = TimedOut
		} else {
			c.word.UnlockQueue(!c.queue.Empty())
			// A notify or cleanup claimed the node first; its Unpark is
			// in flight.
			node.Park(0)
		}
	}

	if node.Status() == waitq.ClaimedForCancel {
		return Cancelled
	}

	if m.Lock(0) == mutex.Cancelled {
		return Cancelled
	}
	return result
}

// NotifyOne wakes the oldest waiter, if any, and returns how many were
// woken (0 or 1).
func (c *Cond) NotifyOne() int {
	if !c.word.Load().HasWaiters() {
		return 0
	}

	c.word.LockQueue()
	n := c.queue.Dequeue()
	for n != nil && !n.Claim(waitq.ClaimedForWake) {
		n = c.queue.Dequeue()
	}
	c.word.UnlockQueue(!c.queue.Empty())

	if n == nil {
		return 0
	}
	n.Unpark()
	c.stats.Wake(1)
	return 1
}

// Notify wakes up to n of the oldest waiters in FIFO order and returns how
// many were woken.
func (c *Cond) Notify(n uint32) int {
	if n == 0 || !c.word.Load().HasWaiters() {
		return 0
	}
	k := int(min(n, math.MaxInt32))

	c.word.LockQueue()
	detached := c.queue.Split(k)
	woken := detached.ClaimAll(waitq.ClaimedForWake)
	c.word.UnlockQueue(!c.queue.Empty())

	detached.UnparkAll()
	c.stats.Wake(woken)
	return woken
}

// NotifyAll wakes every waiter and returns how many were woken.
func (c *Cond) NotifyAll() int {
	if !c.word.Load().HasWaiters() {
		return 0
	}

	c.word.LockQueue()
	detached := c.queue.TakeAll()
	woken := detached.ClaimAll(waitq.ClaimedForWake)
	c.word.UnlockQueue(false)

	detached.UnparkAll()
	c.stats.Wake(woken)
	return woken
}

// CancelRequester removes every waiter created by id, wakes each with
// Cancelled, and returns how many were cancelled.
func (c *Cond) CancelRequester(id ident.ID) int {
	c.word.LockQueue()
	n := c.queue.DequeueAllMatchingForAsyncCleanup(func(node *waitq.Node) bool {
		return node.Requester == id
	})
	c.word.UnlockQueue(!c.queue.Empty())
	c.stats.Cancel(n)
	return n
}

// Waiters returns the number of queued waiters. O(n); for diagnostics.
func (c *Cond) Waiters() int {
	c.word.LockQueue()
	n := c.queue.Len()
	c.word.UnlockQueue(n > 0)
	return n
}

// State returns a snapshot of the cond's state word.
func (c *Cond) State() syncstate.State {
	return c.word.Load()
}

// Stats returns a snapshot of the event counters.
func (c *Cond) Stats() stats.Snapshot {
	return c.stats.Snapshot()
}

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
