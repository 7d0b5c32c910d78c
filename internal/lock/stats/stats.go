// Package stats counts lock events for monitoring and tests.
//
// Counters are plain atomic adds, cheap enough to leave on in production.
// They are not part of the lock algorithms: nothing reads them to make a
// decision.
package stats

import (
	"fmt"
	"sync/atomic"
)

// Counters accumulates events for one primitive.
//
// Thread Safety: All methods are safe for concurrent calls.
type Counters struct {
	fastAcquires  atomic.Uint64
	slowAcquires  atomic.Uint64
	parks         atomic.Uint64
	wakes         atomic.Uint64
	timeouts      atomic.Uint64
	cancellations atomic.Uint64
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	// FastAcquires counts acquisitions won by the first CAS.
	FastAcquires uint64

	// SlowAcquires counts acquisitions that had to queue at least once.
	SlowAcquires uint64

	// Parks counts calls that suspended.
	Parks uint64

	// Wakes counts waiters claimed and unparked by unlock or notify.
	Wakes uint64

	// Timeouts counts blocked calls that returned TimedOut.
	Timeouts uint64

	// Cancellations counts waiters removed by cross-context cleanup.
	Cancellations uint64
}

// FastAcquire records a fast-path acquisition.
func (c *Counters) FastAcquire() { c.fastAcquires.Add(1) }

// SlowAcquire records a slow-path acquisition.
func (c *Counters) SlowAcquire() { c.slowAcquires.Add(1) }

// Park records a suspension.
func (c *Counters) Park() { c.parks.Add(1) }

// Wake records n woken waiters.
func (c *Counters) Wake(n int) {
	if n > 0 {
		c.wakes.Add(uint64(n))
	}
}

// Timeout records a timed-out call.
func (c *Counters) Timeout() { c.timeouts.Add(1) }

// Cancel records n cancelled waiters.
func (c *Counters) Cancel(n int) {
	if n > 0 {
		c.cancellations.Add(uint64(n))
	}
}

// Snapshot copies the current values. The fields are read independently, so
// a snapshot taken under concurrent activity may be slightly inconsistent.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		FastAcquires:  c.fastAcquires.Load(),
		SlowAcquires:  c.slowAcquires.Load(),
		Parks:         c.parks.Load(),
		Wakes:         c.wakes.Load(),
		Timeouts:      c.timeouts.Load(),
		Cancellations: c.cancellations.Load(),
	}
}

// Acquires returns the total number of acquisitions.
func (s Snapshot) Acquires() uint64 {
	return s.FastAcquires + s.SlowAcquires
}

// Add returns the element-wise sum of s and o.
func (s Snapshot) Add(o Snapshot) Snapshot {
	return Snapshot{
		FastAcquires:  s.FastAcquires + o.FastAcquires,
		SlowAcquires:  s.SlowAcquires + o.SlowAcquires,
		Parks:         s.Parks + o.Parks,
		Wakes:         s.Wakes + o.Wakes,
		Timeouts:      s.Timeouts + o.Timeouts,
		Cancellations: s.Cancellations + o.Cancellations,
	}
}

// String renders the snapshot on one line.
func (s Snapshot) String() string {
	return fmt.Sprintf("acquires=%d (fast=%d slow=%d) parks=%d wakes=%d timeouts=%d cancellations=%d",
		s.Acquires(), s.FastAcquires, s.SlowAcquires, s.Parks, s.Wakes, s.Timeouts, s.Cancellations)
}
