// Package waitq implements the intrusive FIFO wait queue used by Mutex and
// Cond.
//
// A Queue is a weak reference to the head of a circular doubly linked list of
// Nodes. The queue never owns its nodes: each Node belongs to the blocked call
// that created it, and is only borrowed while linked.
//
// Layout (three waiters, head = A):
//
//	   +---------------------------+
//	   v                           |
//	head -> A <-> B <-> C ---------+   (C.next == A, A.prev == C)
//
// Thread Safety: Queue is NOT safe for concurrent use. Every mutating call
// must be made while holding the queue_locked bit of the embedding object's
// syncstate.Word. Readers that do not hold that bit must not traverse the list.
package waitq

// Queue is the head reference of a circular waiter list. The zero value is an
// empty queue.
type Queue struct {
	head *Node
}

// Empty reports whether the queue has no nodes.
func (q *Queue) Empty() bool {
	return q.head == nil
}

// Head returns the first node without removing it, or nil.
func (q *Queue) Head() *Node {
	return q.head
}

// Enqueue links node at the tail. If the queue is empty, node becomes a
// self-linked head.
//
// Panics if node is already linked; a node in two queues would corrupt both.
func (q *Queue) Enqueue(node *Node) {
	if node.linked {
		panic("waitq: Enqueue of linked node")
	}
	node.linked = true
	if q.head == nil {
		node.next, node.prev = node, node
		q.head = node
		return
	}
	tail := q.head.prev
	node.prev = tail
	node.next = q.head
	tail.next = node
	q.head.prev = node
}

// Dequeue removes and returns the head node, or nil if the queue is empty.
func (q *Queue) Dequeue() *Node {
	n := q.head
	if n == nil {
		return nil
	}
	q.unlink(n)
	return n
}

// DequeueMatching removes and returns the first node (in FIFO order) for
// which match returns true, or nil. The scan visits each node at most once.
func (q *Queue) DequeueMatching(match func(*Node) bool) *Node {
	if q.head == nil {
		return nil
	}
	n := q.head
	for {
		if match(n) {
			q.unlink(n)
			return n
		}
		n = n.next
		if n == q.head {
			return nil
		}
	}
}

// Remove unlinks node if it is linked into q. Returns false if node was not
// linked.
//
// The caller must know that node belongs to q (or to no queue); passing a
// node linked into a different queue corrupts that queue.
func (q *Queue) Remove(node *Node) bool {
	if !node.linked {
		return false
	}
	q.unlink(node)
	return true
}

// DequeueAllMatchingForAsyncCleanup removes every node matching match, claims
// each one for cancellation, and unparks it. Returns the number of nodes
// whose claim succeeded.
//
// A node whose claim fails was already won by a concurrent notify or timeout
// path; it is still unlinked here (it matched and is being torn down) but is
// not unparked, since the winner delivers its wakeup.
//
// Unpark is called while the caller still holds the queue lock. Parker
// implementations never block in Unpark, so this keeps the critical section
// bounded.
func (q *Queue) DequeueAllMatchingForAsyncCleanup(match func(*Node) bool) int {
	cancelled := 0
	for {
		n := q.DequeueMatching(match)
		if n == nil {
			return cancelled
		}
		if n.Claim(ClaimedForCancel) {
			cancelled++
			n.Unpark()
		}
	}
}

// Split detaches the first k nodes, in FIFO order, into an independent
// circular list and returns it. The remaining nodes stay in q. If k >= Len(),
// q becomes empty; if k <= 0, nothing is detached.
//
// Detached nodes are no longer Linked: they belong to the returned list,
// which the caller owns exclusively.
func (q *Queue) Split(k int) Queue {
	if k <= 0 || q.head == nil {
		return Queue{}
	}

	first := q.head
	last := first
	first.linked = false
	for i := 1; i < k; i++ {
		if last.next == first {
			// Fewer than k nodes: take everything.
			return q.TakeAll()
		}
		last = last.next
		last.linked = false
	}
	if last.next == first {
		return q.TakeAll()
	}

	rest := last.next
	tail := first.prev

	last.next = first
	first.prev = last

	rest.prev = tail
	tail.next = rest
	q.head = rest

	return Queue{head: first}
}

// TakeAll detaches the entire list and returns it, leaving q empty.
func (q *Queue) TakeAll() Queue {
	all := Queue{head: q.head}
	q.head = nil
	all.Each(func(n *Node) { n.linked = false })
	return all
}

// Len counts the nodes by traversal. O(n): diagnostics and tests only.
func (q *Queue) Len() int {
	count := 0
	q.Each(func(*Node) { count++ })
	return count
}

// Each calls fn for every node in FIFO order. fn must not mutate the queue.
func (q *Queue) Each(fn func(*Node)) {
	if q.head == nil {
		return
	}
	n := q.head
	for {
		next := n.next
		fn(n)
		if next == q.head {
			return
		}
		n = next
	}
}

// ClaimAll claims every node of q for status to and returns how many claims
// succeeded. Callers claim a detached list while still holding the queue
// lock, so that racing timeout paths (which claim under the same lock) see
// the nodes as already won.
func (q *Queue) ClaimAll(to Status) int {
	claimed := 0
	q.Each(func(n *Node) {
		if n.Claim(to) {
			claimed++
		}
	})
	return claimed
}

// UnparkAll consumes a detached list: every node is self-linked and
// unparked, and q becomes empty. Returns the number of nodes unparked.
//
// Call it after releasing the queue lock. A node's successor is read before
// the node is unparked, because an unparked owner may return and drop its
// node at any moment.
func (q *Queue) UnparkAll() int {
	n := q.head
	if n == nil {
		return 0
	}
	q.head = nil

	// Break the cycle so the walk terminates without revisiting the first
	// node, which may already belong to a returned call.
	n.prev.next = nil

	count := 0
	for n != nil {
		next := n.next
		n.unlinkSelf()
		n.Unpark()
		count++
		n = next
	}
	return count
}

// NotifyAll claims every node of an exclusively owned list for wake and
// unparks them. Returns the number of nodes that were both claimed and
// woken; nodes already claimed elsewhere are unlinked but not unparked.
func (q *Queue) NotifyAll() int {
	n := q.head
	if n == nil {
		return 0
	}
	q.head = nil
	n.prev.next = nil

	woken := 0
	for n != nil {
		next := n.next
		n.unlinkSelf()
		if n.Claim(ClaimedForWake) {
			n.Unpark()
			woken++
		}
		n = next
	}
	return woken
}

func (q *Queue) unlink(n *Node) {
	if n.next == n {
		// Sole node.
		q.head = nil
	} else {
		n.prev.next = n.next
		n.next.prev = n.prev
		if q.head == n {
			q.head = n.next
		}
	}
	n.unlinkSelf()
}
