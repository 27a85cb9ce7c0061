package dedupe

import "sync"

// Registry tracks listing identities already accepted during a run.
// Admit performs the check and the claim under one lock so two workers
// holding the same identity cannot both pass.
type Registry struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewRegistry creates an empty registry for a single run.
func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]struct{})}
}

// Admit claims key and reports whether it was new. Subsequent calls
// with the same key return false. Empty keys are always rejected.
func (r *Registry) Admit(key string) bool {
	if key == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = struct{}{}
	return true
}

// Len reports how many identities have been admitted.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}
