package store

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/codequery-dev/codequery/internal/errors"
)

// Store bundles the named indices and chunk source for one versioned store.
type Store struct {
	Name    string
	Version int
	Sparse  SparseIndex
	Dense   DenseIndex
	Chunks  ChunkSource
}

// Registry maps store names to stores. Reads are lock-free against a
// copy-on-write snapshot; registration is serialized by a mutex.
type Registry struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[map[string]*Store]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := make(map[string]*Store)
	r.snapshot.Store(&empty)
	return r
}

// Register adds or replaces a store by name.
func (r *Registry) Register(s *Store) error {
	if s == nil || s.Name == "" {
		return errors.Internal("store registration requires a name", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.snapshot.Load()
	next := make(map[string]*Store, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[s.Name] = s
	r.snapshot.Store(&next)
	return nil
}

// Deregister removes a store by name. Unknown names are a no-op.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.snapshot.Load()
	if _, ok := old[name]; !ok {
		return
	}
	next := make(map[string]*Store, len(old))
	for k, v := range old {
		if k != name {
			next[k] = v
		}
	}
	r.snapshot.Store(&next)
}

// Get looks up a store by name.
func (r *Registry) Get(name string) (*Store, bool) {
	s, ok := (*r.snapshot.Load())[name]
	return s, ok
}

// Names returns the registered store names, sorted.
func (r *Registry) Names() []string {
	snap := *r.snapshot.Load()
	names := make([]string, 0, len(snap))
	for k := range snap {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Close closes every registered store's resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, s := range *r.snapshot.Load() {
		for _, c := range []interface{ Close() error }{s.Sparse, s.Dense, s.Chunks} {
			if c == nil {
				continue
			}
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	empty := make(map[string]*Store)
	r.snapshot.Store(&empty)
	return firstErr
}
