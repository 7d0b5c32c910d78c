package waitq

import (
	"testing"
	"time"

	"github.com/kolkov/parklock/internal/lock/ident"
	"github.com/kolkov/parklock/internal/lock/park"
)

// newNodes creates n unlinked nodes with requesters 1..n.
func newNodes(n int) []*Node {
	nodes := make([]*Node, n)
	for i := range nodes {
		nodes[i] = NewNode(ident.ID(i+1), park.NewChan())
	}
	return nodes
}

// fill enqueues nodes in order.
func fill(q *Queue, nodes []*Node) {
	for _, n := range nodes {
		q.Enqueue(n)
	}
}

// requesters lists the requester IDs of q in FIFO order.
func requesters(q *Queue) []ident.ID {
	var ids []ident.ID
	q.Each(func(n *Node) { ids = append(ids, n.Requester) })
	return ids
}

// checkCircular verifies next/prev consistency and the linked flag.
func checkCircular(t *testing.T, q *Queue, wantLen int) {
	t.Helper()
	if q.Len() != wantLen {
		t.Fatalf("Len() = %d, want %d", q.Len(), wantLen)
	}
	if wantLen == 0 {
		if !q.Empty() {
			t.Fatal("queue not empty")
		}
		return
	}
	n := q.head
	for i := 0; i < wantLen; i++ {
		if n.next.prev != n {
			t.Fatalf("node %d: next.prev mismatch", n.Requester)
		}
		if n.prev.next != n {
			t.Fatalf("node %d: prev.next mismatch", n.Requester)
		}
		n = n.next
	}
	if n != q.head {
		t.Fatal("traversal did not return to head")
	}
}

func equalIDs(a []ident.ID, b ...ident.ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestEnqueueDequeue_FIFO tests FIFO order.
func TestEnqueueDequeue_FIFO(t *testing.T) {
	var q Queue
	nodes := newNodes(4)
	fill(&q, nodes)
	checkCircular(t, &q, 4)

	for i, want := range nodes {
		got := q.Dequeue()
		if got != want {
			t.Fatalf("Dequeue #%d = %v, want %v", i, got.Requester, want.Requester)
		}
		if got.Linked() {
			t.Errorf("dequeued node %d still linked", got.Requester)
		}
		if got.next != got || got.prev != got {
			t.Errorf("dequeued node %d not self-linked", got.Requester)
		}
		checkCircular(t, &q, 3-i)
	}
	if q.Dequeue() != nil {
		t.Error("Dequeue on empty queue returned a node")
	}
}

// TestEnqueue_SingleSelfLinked tests the one-node queue shape.
func TestEnqueue_SingleSelfLinked(t *testing.T) {
	var q Queue
	n := newNodes(1)[0]
	q.Enqueue(n)
	if q.Head() != n || n.next != n || n.prev != n {
		t.Fatal("single node is not a self-linked head")
	}
	if !n.Linked() {
		t.Error("enqueued node not marked linked")
	}
}

// TestEnqueue_LinkedPanics tests that double-linking is rejected.
func TestEnqueue_LinkedPanics(t *testing.T) {
	var q1, q2 Queue
	n := newNodes(1)[0]
	q1.Enqueue(n)
	defer func() {
		if recover() == nil {
			t.Error("Enqueue of linked node did not panic")
		}
	}()
	q2.Enqueue(n)
}

// TestDequeueMatching tests removal at head, middle, tail and no match.
func TestDequeueMatching(t *testing.T) {
	tests := []struct {
		name   string
		target ident.ID
		found  bool
		rest   []ident.ID
	}{
		{"head", 1, true, []ident.ID{2, 3, 4}},
		{"middle", 3, true, []ident.ID{1, 2, 4}},
		{"tail", 4, true, []ident.ID{1, 2, 3}},
		{"none", 9, false, []ident.ID{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Queue
			fill(&q, newNodes(4))
			got := q.DequeueMatching(func(n *Node) bool { return n.Requester == tt.target })
			if (got != nil) != tt.found {
				t.Fatalf("DequeueMatching found=%v, want %v", got != nil, tt.found)
			}
			if got != nil && got.Requester != tt.target {
				t.Errorf("DequeueMatching returned %d, want %d", got.Requester, tt.target)
			}
			if !equalIDs(requesters(&q), tt.rest...) {
				t.Errorf("remaining = %v, want %v", requesters(&q), tt.rest)
			}
			checkCircular(t, &q, len(tt.rest))
		})
	}
}

// TestDequeueMatching_Empty tests the empty queue.
func TestDequeueMatching_Empty(t *testing.T) {
	var q Queue
	if q.DequeueMatching(func(*Node) bool { return true }) != nil {
		t.Error("DequeueMatching on empty queue returned a node")
	}
}

// TestRemove tests unlinking a specific node.
func TestRemove(t *testing.T) {
	var q Queue
	nodes := newNodes(3)
	fill(&q, nodes)

	if !q.Remove(nodes[1]) {
		t.Fatal("Remove of linked node returned false")
	}
	if q.Remove(nodes[1]) {
		t.Error("second Remove returned true")
	}
	if !equalIDs(requesters(&q), 1, 3) {
		t.Errorf("remaining = %v, want [1 3]", requesters(&q))
	}
	checkCircular(t, &q, 2)

	q.Remove(nodes[0])
	q.Remove(nodes[2])
	checkCircular(t, &q, 0)
}

// TestSplit tests detaching the first k nodes.
func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		k        int
		detached []ident.ID
		rest     []ident.ID
	}{
		{"k less than len", 5, 2, []ident.ID{1, 2}, []ident.ID{3, 4, 5}},
		{"k one", 3, 1, []ident.ID{1}, []ident.ID{2, 3}},
		{"k equals len", 3, 3, []ident.ID{1, 2, 3}, nil},
		{"k greater than len", 3, 10, []ident.ID{1, 2, 3}, nil},
		{"k zero", 3, 0, nil, []ident.ID{1, 2, 3}},
		{"negative k", 3, -1, nil, []ident.ID{1, 2, 3}},
		{"empty queue", 0, 2, nil, nil},
		{"len minus one", 4, 3, []ident.ID{1, 2, 3}, []ident.ID{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Queue
			fill(&q, newNodes(tt.size))

			d := q.Split(tt.k)

			if !equalIDs(requesters(&d), tt.detached...) {
				t.Errorf("detached = %v, want %v", requesters(&d), tt.detached)
			}
			if !equalIDs(requesters(&q), tt.rest...) {
				t.Errorf("rest = %v, want %v", requesters(&q), tt.rest)
			}
			checkCircular(t, &d, len(tt.detached))
			checkCircular(t, &q, len(tt.rest))

			d.Each(func(n *Node) {
				if n.Linked() {
					t.Errorf("detached node %d still marked linked", n.Requester)
				}
			})
			q.Each(func(n *Node) {
				if !n.Linked() {
					t.Errorf("remaining node %d not marked linked", n.Requester)
				}
			})
		})
	}
}

// TestCleanup_MatchesOnlyRequester tests async cleanup by requester.
func TestCleanup_MatchesOnlyRequester(t *testing.T) {
	var q Queue
	const doomed = ident.ID(100)
	var mine []*Node
	for i := 0; i < 6; i++ {
		req := ident.ID(i + 1)
		if i%2 == 0 {
			req = doomed
		}
		n := NewNode(req, park.NewChan())
		if req == doomed {
			mine = append(mine, n)
		}
		q.Enqueue(n)
	}

	got := q.DequeueAllMatchingForAsyncCleanup(func(n *Node) bool { return n.Requester == doomed })
	if got != 3 {
		t.Fatalf("cancelled = %d, want 3", got)
	}
	for _, n := range mine {
		if n.Status() != ClaimedForCancel {
			t.Errorf("node status = %v, want ClaimedForCancel", n.Status())
		}
		if n.Park(time.Second) != park.WokeNormally {
			t.Error("cancelled node was not unparked")
		}
	}
	if !equalIDs(requesters(&q), 2, 4, 6) {
		t.Errorf("remaining = %v, want [2 4 6]", requesters(&q))
	}
	q.Each(func(n *Node) {
		if n.Status() != Queued {
			t.Errorf("unrelated node %d status = %v", n.Requester, n.Status())
		}
	})
}

// TestCleanup_SkipsAlreadyClaimed tests the exactly-once claim.
func TestCleanup_SkipsAlreadyClaimed(t *testing.T) {
	var q Queue
	nodes := newNodes(2)
	fill(&q, nodes)
	nodes[0].Claim(ClaimedForTimeout)

	got := q.DequeueAllMatchingForAsyncCleanup(func(*Node) bool { return true })
	if got != 1 {
		t.Errorf("cancelled = %d, want 1", got)
	}
	if nodes[0].Status() != ClaimedForTimeout {
		t.Errorf("pre-claimed node status changed to %v", nodes[0].Status())
	}
	if nodes[0].Park(10*time.Millisecond) != park.TimedOut {
		t.Error("pre-claimed node was unparked by cleanup")
	}
	if !q.Empty() {
		t.Error("queue not empty after matching everything")
	}
}

// TestClaim_ExactlyOnce tests that only the first claim wins.
func TestClaim_ExactlyOnce(t *testing.T) {
	n := newNodes(1)[0]
	if !n.Claim(ClaimedForWake) {
		t.Fatal("first claim failed")
	}
	for _, s := range []Status{ClaimedForWake, ClaimedForCancel, ClaimedForTimeout} {
		if n.Claim(s) {
			t.Errorf("second claim for %v succeeded", s)
		}
	}
	if n.Status() != ClaimedForWake {
		t.Errorf("status = %v", n.Status())
	}
	n.Reset()
	if n.Status() != Queued {
		t.Errorf("status after Reset = %v", n.Status())
	}
}

// TestReset_LinkedPanics tests that linked nodes cannot be reset.
func TestReset_LinkedPanics(t *testing.T) {
	var q Queue
	n := newNodes(1)[0]
	q.Enqueue(n)
	defer func() {
		if recover() == nil {
			t.Error("Reset of linked node did not panic")
		}
	}()
	n.Reset()
}

// TestClaimAllUnparkAll tests the two-phase batch wake.
func TestClaimAllUnparkAll(t *testing.T) {
	var q Queue
	nodes := newNodes(5)
	fill(&q, nodes)

	d := q.Split(3)
	if got := d.ClaimAll(ClaimedForWake); got != 3 {
		t.Fatalf("ClaimAll = %d, want 3", got)
	}
	if got := d.UnparkAll(); got != 3 {
		t.Fatalf("UnparkAll = %d, want 3", got)
	}
	if !d.Empty() {
		t.Error("detached list not consumed")
	}
	for _, n := range nodes[:3] {
		if n.Park(time.Second) != park.WokeNormally {
			t.Errorf("node %d not woken", n.Requester)
		}
		if n.next != n || n.prev != n {
			t.Errorf("node %d not self-linked after wake", n.Requester)
		}
	}
	checkCircular(t, &q, 2)
}

// TestNotifyAll tests waking an exclusively owned list.
func TestNotifyAll(t *testing.T) {
	var q Queue
	nodes := newNodes(4)
	fill(&q, nodes)
	nodes[2].Claim(ClaimedForCancel)

	all := q.TakeAll()
	if !q.Empty() {
		t.Fatal("TakeAll left nodes behind")
	}
	if got := all.NotifyAll(); got != 3 {
		t.Errorf("NotifyAll = %d, want 3", got)
	}
	if (&Queue{}).NotifyAll() != 0 {
		t.Error("NotifyAll on empty list returned non-zero")
	}
}

// TestStatusString tests Status rendering.
func TestStatusString(t *testing.T) {
	want := map[Status]string{
		Queued:            "Queued",
		ClaimedForWake:    "ClaimedForWake",
		ClaimedForCancel:  "ClaimedForCancel",
		ClaimedForTimeout: "ClaimedForTimeout",
		Status(42):        "Unknown",
	}
	for s, w := range want {
		if s.String() != w {
			t.Errorf("Status(%d).String() = %q, want %q", s, s.String(), w)
		}
	}
}
