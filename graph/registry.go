package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/stategraph"
)

// Registry holds the graphs executions can be submitted against.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	graphs map[string]*Graph
}

// NewRegistry creates an empty graph registry.
func NewRegistry() *Registry {
	return &Registry{graphs: make(map[string]*Graph)}
}

// Register validates the graph and adds it under its name.
func (r *Registry) Register(g *Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.graphs[g.Name]; exists {
		return fmt.Errorf("%w: %q", stategraph.ErrDuplicateGraph, g.Name)
	}
	r.graphs[g.Name] = g
	return nil
}

// Get returns the named graph or stategraph.ErrUnknownGraph.
func (r *Registry) Get(name string) (*Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.graphs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", stategraph.ErrUnknownGraph, name)
	}
	return g, nil
}

// Names returns all registered graph names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.graphs))
	for name := range r.graphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
