// Package lock provides a park-based mutex and condition variable for
// coordinating goroutines, with timeouts and cross-context cancellation.
//
// # Quick Start
//
//	mu := lock.NewMutex(lock.Options{})
//	cond := lock.NewCond(lock.Options{})
//
//	// Consumer
//	mu.Lock(0)
//	for !ready {
//		if cond.Wait(mu, time.Second) == lock.WaitCancelled {
//			return lock.ErrContextTornDown // mutex is not held
//		}
//	}
//	mu.Unlock()
//
//	// Producer
//	mu.Lock(0)
//	ready = true
//	cond.NotifyOne()
//	mu.Unlock()
//
// # Semantics
//
// The uncontended paths are a single compare-and-swap on a packed state
// word. Contended callers queue on an intrusive wait list and park. Wake
// order is FIFO, but a woken waiter re-races newly arriving callers for the
// lock, so acquisition order is not strictly FIFO.
//
// Each blocked call finishes in exactly one way: woken by unlock or notify,
// timed out, or cancelled because its execution context was torn down (see
// [Registry.Teardown]).
//
// # Misuse
//
// The mutex is not reentrant. Locking it again from the owning context,
// unlocking it from another context, or waiting on a condition without
// holding the mutex panics with a *[MisuseError] after printing a report to
// stderr. With [Options.TrackOwners] the report includes the stack of the
// earlier acquisition.
//
// # Execution contexts
//
// Ownership is tracked per execution context. By default that is the
// goroutine; [Binding] lets several goroutines act as one context, or gives
// them stable ids that a registry can tear down.
package lock
