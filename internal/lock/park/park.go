// Package park provides the blocking capability consumed by wait queue nodes.
//
// A Parker suspends exactly one goroutine (the owner of the node it belongs to)
// until another goroutine calls Unpark, or until a timeout expires. Unpark may
// be called before Park; the wakeup is then remembered and the next Park
// returns immediately. At most one pending wakeup is remembered.
//
// Two implementations are provided:
//   - Chan: a buffered channel plus a timer, used in production.
//   - Manual: a deterministic fake whose timeouts are fired by the test, so
//     lock algorithms can be exercised without depending on wall-clock time.
package park

import (
	"context"
	"time"
)

// Outcome reports why Park returned.
type Outcome int

const (
	// WokeNormally means Unpark was called.
	WokeNormally Outcome = iota
	// TimedOut means the timeout (or context) expired first.
	TimedOut
)

// String returns the string representation of an Outcome.
func (o Outcome) String() string {
	switch o {
	case WokeNormally:
		return "WokeNormally"
	case TimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// Parker suspends and resumes a single goroutine.
type Parker interface {
	// Park blocks until Unpark or until timeout elapses. A timeout <= 0
	// means wait forever.
	Park(timeout time.Duration) Outcome

	// ParkContext blocks until Unpark or until ctx is done.
	ParkContext(ctx context.Context) Outcome

	// Unpark wakes the parked goroutine, or arms the next Park.
	Unpark()
}

// Factory creates one Parker per blocked call.
type Factory interface {
	NewParker() Parker
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func() Parker

// NewParker calls f.
func (f FactoryFunc) NewParker() Parker { return f() }

// Default is the production factory producing channel parkers.
var Default Factory = FactoryFunc(func() Parker { return NewChan() })

// Chan is a channel-based Parker.
//
// The channel has capacity 1, so an Unpark that races ahead of Park is
// buffered rather than lost, and a second Unpark before the first is consumed
// is dropped.
type Chan struct {
	c chan struct{}
}

// NewChan returns a ready Chan parker.
func NewChan() *Chan {
	return &Chan{c: make(chan struct{}, 1)}
}

// Park implements Parker.
func (p *Chan) Park(timeout time.Duration) Outcome {
	if timeout <= 0 {
		<-p.c
		return WokeNormally
	}

	// Fast check avoids allocating a timer when the wakeup is already pending.
	select {
	case <-p.c:
		return WokeNormally
	default:
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.c:
		return WokeNormally
	case <-t.C:
		return TimedOut
	}
}

// ParkContext implements Parker.
func (p *Chan) ParkContext(ctx context.Context) Outcome {
	select {
	case <-p.c:
		return WokeNormally
	case <-ctx.Done():
		return TimedOut
	}
}

// Unpark implements Parker.
func (p *Chan) Unpark() {
	select {
	case p.c <- struct{}{}:
	default:
	}
}
