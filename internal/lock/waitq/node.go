package waitq

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kolkov/parklock/internal/lock/ident"
	"github.com/kolkov/parklock/internal/lock/park"
)

// Status is the claim state of a Node.
//
// A node starts Queued and leaves Queued exactly once, through a single CAS
// performed by whichever of notify, timeout or cancellation gets there first.
// The winner is responsible for unlinking the node; the losers observe a
// Claimed* status and take no further action on the queue.
type Status uint32

const (
	// Queued means the node is waiting and unclaimed.
	Queued Status = iota
	// ClaimedForWake means a notify (or unlock) won the node.
	ClaimedForWake
	// ClaimedForCancel means cross-context cleanup won the node.
	ClaimedForCancel
	// ClaimedForTimeout means the waiter's own timeout won the node.
	ClaimedForTimeout
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case Queued:
		return "Queued"
	case ClaimedForWake:
		return "ClaimedForWake"
	case ClaimedForCancel:
		return "ClaimedForCancel"
	case ClaimedForTimeout:
		return "ClaimedForTimeout"
	default:
		return "Unknown"
	}
}

// Node is one blocked call. It is owned by that call, never by a Queue: a
// queue only borrows it while it is linked, and every exit path of the owning
// call must leave it unlinked.
//
// Synchronization:
//   - next, prev and linked are protected by the queue lock of the queue the
//     node is linked into. An unlinked node is exclusively owned by its call.
//   - status is only changed by CAS through Claim.
//   - Requester is immutable while the node is linked.
type Node struct {
	// Requester is the context that created this waiter.
	Requester ident.ID

	next, prev *Node
	linked     bool

	parker park.Parker
	status atomic.Uint32
}

// NewNode returns an unlinked, Queued node for requester.
func NewNode(requester ident.ID, parker park.Parker) *Node {
	n := &Node{Requester: requester, parker: parker}
	n.next, n.prev = n, n
	return n
}

// Status returns the current claim state.
func (n *Node) Status() Status {
	return Status(n.status.Load())
}

// Claim moves the node from Queued to to. Exactly one Claim on a Queued node
// succeeds.
func (n *Node) Claim(to Status) bool {
	return n.status.CompareAndSwap(uint32(Queued), uint32(to))
}

// Reset returns a woken node to Queued so the owning call can enqueue it
// again. Panics if the node is still linked.
func (n *Node) Reset() {
	if n.linked {
		panic("waitq: Reset of linked node")
	}
	n.status.Store(uint32(Queued))
}

// Linked reports whether the node is in a queue. Only meaningful under the
// queue lock or from the owning call.
func (n *Node) Linked() bool {
	return n.linked
}

// Park suspends the owning goroutine.
func (n *Node) Park(timeout time.Duration) park.Outcome {
	return n.parker.Park(timeout)
}

// ParkContext suspends the owning goroutine until woken or ctx is done.
func (n *Node) ParkContext(ctx context.Context) park.Outcome {
	return n.parker.ParkContext(ctx)
}

// Unpark wakes the owning goroutine.
func (n *Node) Unpark() {
	n.parker.Unpark()
}

func (n *Node) unlinkSelf() {
	n.next, n.prev = n, n
	n.linked = false
}
