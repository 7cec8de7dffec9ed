package registry

import (
	"iter"
	"slices"
	"sync"

	"github.com/marmos91/dittovec/pkg/store"
)

// Registry is the store descriptor table: every configured store keyed by its
// unique name. It is filled once while the orchestrator is constructed and is
// read-only afterwards.
//
// Example usage:
//
//	reg := NewRegistry()
//	reg.Register(store.Descriptor{Name: "v1", Category: store.CategoryVector, Kind: "hnsw", Enabled: true})
//	for desc := range reg.ListEnabled(store.CategoryVector) {
//	    fmt.Println(desc.Name)
//	}
type Registry struct {
	mu    sync.RWMutex
	descs map[string]store.Descriptor
	names []string // sorted
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{descs: make(map[string]store.Descriptor)}
}

// Register adds a descriptor. The name is normalised to lower case.
// Returns a DuplicateStore error if the name is already taken and a
// ConfigError for an empty name, unknown category or missing kind.
func (r *Registry) Register(desc store.Descriptor) error {
	desc.Name = store.NormalizeName(desc.Name)
	if desc.Name == "" {
		return store.NewConfigError("", "cannot register store with empty name", nil)
	}
	if _, err := store.ParseCategory(string(desc.Category)); err != nil {
		return store.NewConfigError(desc.Name, "invalid category", err)
	}
	if desc.Kind == "" {
		return store.NewConfigError(desc.Name, "store kind is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descs[desc.Name]; exists {
		return store.NewDuplicateStoreError(desc.Name)
	}

	desc.Config = cloneConfig(desc.Config)
	r.descs[desc.Name] = desc

	i, _ := slices.BinarySearch(r.names, desc.Name)
	r.names = slices.Insert(r.names, i, desc.Name)
	return nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (store.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.descs[store.NormalizeName(name)]
	return desc, ok
}

// Len returns the number of registered stores.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// All yields every descriptor ordered by name.
func (r *Registry) All() iter.Seq[store.Descriptor] {
	return r.list(func(store.Descriptor) bool { return true })
}

// ListEnabled yields enabled descriptors ordered by name, optionally
// restricted to the given categories. The sequence is lazy and may be
// ranged over any number of times; each pass sees the current table.
func (r *Registry) ListEnabled(categories ...store.Category) iter.Seq[store.Descriptor] {
	return r.list(func(d store.Descriptor) bool {
		return d.Enabled && (len(categories) == 0 || slices.Contains(categories, d.Category))
	})
}

func (r *Registry) list(keep func(store.Descriptor) bool) iter.Seq[store.Descriptor] {
	return func(yield func(store.Descriptor) bool) {
		r.mu.RLock()
		names := slices.Clone(r.names)
		r.mu.RUnlock()

		for _, name := range names {
			desc, ok := r.Get(name)
			if !ok || !keep(desc) {
				continue
			}
			if !yield(desc) {
				return
			}
		}
	}
}

// cloneConfig copies the top level so callers cannot mutate a registered descriptor.
func cloneConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return nil
	}
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	return out
}
