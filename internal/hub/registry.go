//
//
package hub

import "sync"

// Registry is the set of live monitor subscribers.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]*Subscriber
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*Subscriber)}
}

// Register runs capture and adds s inside one critical section, so no
// publish can fall between what capture observes and the registration.
// It returns false once the registry is closed.
func (r *Registry) Register(s *Subscriber, capture func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if capture != nil {
		capture()
	}
	r.subs[s.ID] = s
	return true
}

// Remove deletes s. It reports whether s was still registered.
func (r *Registry) Remove(s *Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.subs[s.ID]
	if !ok || cur != s {
		return false
	}
	delete(r.subs, s.ID)
	return true
}

// List returns a copy of the current subscribers.
func (r *Registry) List() []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out
}

// Len returns the number of subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Close empties the registry, refuses further registrations and returns
// the subscribers that were registered.
func (r *Registry) Close() []*Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	out := make([]*Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	r.subs = make(map[string]*Subscriber)
	return out
}
