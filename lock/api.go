package lock

import (
	"github.com/kolkov/parklock/internal/lock/condvar"
	"github.com/kolkov/parklock/internal/lock/diag"
	"github.com/kolkov/parklock/internal/lock/ident"
	"github.com/kolkov/parklock/internal/lock/mutex"
	"github.com/kolkov/parklock/internal/lock/park"
	"github.com/kolkov/parklock/internal/lock/registry"
	"github.com/kolkov/parklock/internal/lock/stats"
)

type (
	// Mutex is a mutual exclusion lock. The zero value is unlocked.
	Mutex = mutex.Mutex

	// Cond is a condition variable used together with a Mutex.
	Cond = condvar.Cond

	// LockResult is the outcome of Mutex.Lock.
	LockResult = mutex.Result

	// WaitResult is the outcome of Cond.Wait.
	WaitResult = condvar.Result

	// ContextID identifies an execution context.
	ContextID = ident.ID

	// IdentityProvider reports the calling execution context.
	IdentityProvider = ident.Provider

	// Binding maps goroutines to chosen context ids.
	Binding = ident.Binding

	// ParkerFactory creates the blocking capability of each waiter.
	ParkerFactory = park.Factory

	// Registry tracks primitives for context teardown.
	Registry = registry.Registry

	// MisuseError is the panic value of lock misuse.
	MisuseError = diag.MisuseError

	// Stats is a snapshot of a primitive's event counters.
	Stats = stats.Snapshot
)

// Lock results.
const (
	Acquired      = mutex.Acquired
	LockTimedOut  = mutex.TimedOut
	LockCancelled = mutex.Cancelled
)

// Wait results.
const (
	Notified      = condvar.Notified
	WaitTimedOut  = condvar.TimedOut
	WaitCancelled = condvar.Cancelled
)

// ErrContextTornDown is returned by LockResult.Err and WaitResult.Err for a
// cancelled call. Code that receives it must unwind instead of continuing,
// because the lock is not held.
var ErrContextTornDown = mutex.ErrCancelled

// Options configures new primitives. The zero value gives goroutine
// identity, channel parkers and no registry.
type Options struct {
	// Identity names the calling execution context.
	// Default: the current goroutine id.
	Identity IdentityProvider

	// Parkers creates the blocking capability of each waiter.
	// Default: buffered-channel parkers.
	Parkers ParkerFactory

	// SpinLimit is the number of failed queue-lock attempts before the
	// caller yields the processor. Default: 64.
	SpinLimit int

	// TrackOwners records the stack of every Lock so that misuse reports can
	// show where the mutex was taken. Costs a stack capture per acquisition.
	TrackOwners bool

	// Registry, if set, receives every primitive created with these options,
	// registered under the creating context.
	Registry *Registry
}

func (o Options) creator() ContextID {
	if o.Identity != nil {
		return o.Identity.Current()
	}
	return ident.Goroutine.Current()
}

// NewMutex creates an unlocked Mutex.
//
// Example:
//
//	reg := lock.NewRegistry()
//	mu := lock.NewMutex(lock.Options{Registry: reg, TrackOwners: true})
func NewMutex(opts Options) *Mutex {
	m := mutex.New(mutex.Config{
		Identity:    opts.Identity,
		Parkers:     opts.Parkers,
		SpinLimit:   opts.SpinLimit,
		TrackOwners: opts.TrackOwners,
	})
	if opts.Registry != nil {
		opts.Registry.Register(opts.creator(), m)
	}
	return m
}

// NewCond creates a condition variable. Identity and Parkers left nil in
// opts are taken from the mutex passed to each Wait.
func NewCond(opts Options) *Cond {
	c := condvar.New(condvar.Config{
		Identity:  opts.Identity,
		Parkers:   opts.Parkers,
		SpinLimit: opts.SpinLimit,
	})
	if opts.Registry != nil {
		opts.Registry.Register(opts.creator(), c)
	}
	return c
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return registry.New()
}

// NewBinding creates an empty goroutine-to-context Binding, usable as
// Options.Identity.
func NewBinding() *Binding {
	return ident.NewBinding()
}

// CurrentGoroutine returns the id of the calling goroutine.
func CurrentGoroutine() ContextID {
	return ident.CurrentGoroutine()
}
