package cache

import "sync"

// Clearer is implemented by every Cache.
type Clearer interface {
	Name() string
	Clear()
}

// Registry tracks a set of caches so they can be emptied together on logout
// or an explicit refresh.
type Registry struct {
	mu     sync.Mutex
	caches []Clearer
}

// Register adds caches to the registry.
func (r *Registry) Register(caches ...Clearer) {
	r.mu.Lock()
	r.caches = append(r.caches, caches...)
	r.mu.Unlock()
}

// ClearAll clears every registered cache.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	caches := make([]Clearer, len(r.caches))
	copy(caches, r.caches)
	r.mu.Unlock()

	for _, c := range caches {
		c.Clear()
	}
}

// Names returns the registered cache names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.caches))
	for _, c := range r.caches {
		names = append(names, c.Name())
	}
	return names
}
