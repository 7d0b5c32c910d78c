package park

import (
	"context"
	"sync"
	"time"
)

// Manual is a deterministic fake scheduler. Parkers it creates never time out
// on their own: a test fires timeouts explicitly with Expire or ExpireAll,
// after using WaitParked to know that the blocked goroutines have reached
// Park.
//
// Thread Safety: All methods are safe for concurrent calls.
type Manual struct {
	mu      sync.Mutex
	changed *sync.Cond
	parked  []*ManualParker
}

// NewManual creates an empty fake scheduler.
func NewManual() *Manual {
	m := &Manual{}
	m.changed = sync.NewCond(&m.mu)
	return m
}

// NewParker implements Factory.
func (m *Manual) NewParker() Parker {
	return &ManualParker{
		sched:  m,
		wake:   make(chan struct{}, 1),
		expire: make(chan struct{}, 1),
	}
}

// WaitParked blocks until at least n parkers are inside Park.
func (m *Manual) WaitParked(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.parked) < n {
		m.changed.Wait()
	}
}

// Parked returns the number of parkers currently inside Park.
func (m *Manual) Parked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.parked)
}

// Expire fires the timeout of the i-th currently parked parker (in park
// order) if it was parked with a timeout. Returns false otherwise.
func (m *Manual) Expire(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.parked) {
		return false
	}
	return m.parked[i].fireLocked()
}

// ExpireAll fires the timeout of every parked parker that has one and
// returns how many were fired.
func (m *Manual) ExpireAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.parked {
		if p.fireLocked() {
			n++
		}
	}
	return n
}

func (m *Manual) enter(p *ManualParker) {
	m.mu.Lock()
	m.parked = append(m.parked, p)
	m.changed.Broadcast()
	m.mu.Unlock()
}

func (m *Manual) leave(p *ManualParker) {
	m.mu.Lock()
	for i, q := range m.parked {
		if q == p {
			m.parked = append(m.parked[:i], m.parked[i+1:]...)
			break
		}
	}
	p.timed = false
	select {
	case <-p.expire:
	default:
	}
	m.changed.Broadcast()
	m.mu.Unlock()
}

// ManualParker is the Parker handed out by Manual.
type ManualParker struct {
	sched  *Manual
	wake   chan struct{}
	expire chan struct{}

	// timed is guarded by sched.mu.
	timed bool
}

func (p *ManualParker) fireLocked() bool {
	if !p.timed {
		return false
	}
	p.timed = false
	select {
	case p.expire <- struct{}{}:
	default:
	}
	return true
}

// Park implements Parker. The timeout value only decides whether the parker
// can be expired; its duration is ignored.
func (p *ManualParker) Park(timeout time.Duration) Outcome {
	return p.park(context.Background(), timeout > 0)
}

// ParkContext implements Parker. The parker can be expired by the scheduler
// or by ctx.
func (p *ManualParker) ParkContext(ctx context.Context) Outcome {
	return p.park(ctx, true)
}

func (p *ManualParker) park(ctx context.Context, timed bool) Outcome {
	p.sched.mu.Lock()
	p.timed = timed
	p.sched.mu.Unlock()
	p.sched.enter(p)
	defer p.sched.leave(p)

	select {
	case <-p.wake:
		return WokeNormally
	case <-p.expire:
		return TimedOut
	case <-ctx.Done():
		return TimedOut
	}
}

// Unpark implements Parker.
func (p *ManualParker) Unpark() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
