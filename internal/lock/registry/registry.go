// Package registry tracks live lock primitives so that the waiters of an
// execution context can be cleaned up when that context is torn down.
//
// Every primitive is registered together with the context that created it.
// Teardown(id) walks all live primitives and cancels the queued waiters whose
// requester is id; those blocked calls return Cancelled. Primitives created
// by id are then forgotten, since nothing should reference them anymore.
//
// Thread Safety: All methods are safe for concurrent calls.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/parklock/internal/lock/ident"
)

// Canceller is implemented by primitives whose waiters can be cancelled per
// requester.
type Canceller interface {
	CancelRequester(id ident.ID) int
}

// Registry maps live primitives to the context that created them.
type Registry struct {
	// entries maps Canceller to its creator ident.ID.
	//
	// sync.Map suits the access pattern: registration happens once per
	// primitive, teardown is rare and only iterates.
	entries sync.Map

	size atomic.Int64
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Register records c as created by creator. Registering the same primitive
// twice keeps the first creator.
func (r *Registry) Register(creator ident.ID, c Canceller) {
	if _, loaded := r.entries.LoadOrStore(c, creator); !loaded {
		r.size.Add(1)
	}
}

// Forget drops c from the registry. Its waiters are not touched.
func (r *Registry) Forget(c Canceller) {
	if _, loaded := r.entries.LoadAndDelete(c); loaded {
		r.size.Add(-1)
	}
}

// Teardown cancels every waiter of id on every registered primitive and
// forgets the primitives that id created. Returns the number of waiters
// cancelled.
func (r *Registry) Teardown(id ident.ID) int {
	cancelled := 0
	var owned []Canceller
	r.entries.Range(func(key, value any) bool {
		c := key.(Canceller)
		cancelled += c.CancelRequester(id)
		if value.(ident.ID) == id {
			owned = append(owned, c)
		}
		return true
	})
	for _, c := range owned {
		r.Forget(c)
	}
	return cancelled
}

// Len returns the number of registered primitives.
func (r *Registry) Len() int {
	return int(r.size.Load())
}

// Creator returns the context that registered c.
func (r *Registry) Creator(c Canceller) (ident.ID, bool) {
	v, ok := r.entries.Load(c)
	if !ok {
		return ident.None, false
	}
	return v.(ident.ID), true
}
