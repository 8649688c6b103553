package trace

import (
	"sync"

	"github.com/snaptrace/snaptrace/internal/errorutil"
)

// Registry tracks in-flight and recently completed traces by id so snapshot
// requests can reach them. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	traces map[string]*Trace
}

func NewRegistry() *Registry {
	return &Registry{traces: make(map[string]*Trace)}
}

func (r *Registry) Register(t *Trace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces[t.ID()] = t
}

func (r *Registry) Get(id string) (*Trace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.traces[id]
	if !ok {
		return nil, errorutil.ErrTraceNotFound
	}
	return t, nil
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.traces, id)
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.traces))
	for id := range r.traces {
		ids = append(ids, id)
	}
	return ids
}
