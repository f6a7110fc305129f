// Package index wires the indexed store adapters behind a single factory.
package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-flow/internal/adapters/driven/index/memory"
	"github.com/custodia-labs/sercha-flow/internal/adapters/driven/index/sqlite"
	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.IndexConnectorFactory = (*Factory)(nil)

// Factory creates index connectors by kind.
type Factory struct {
	mu          sync.Mutex
	builders    map[string]driven.IndexConnectorBuilder
	defaultKind string
}

// NewFactory creates a factory with the sqlite and memory adapters
// registered. An empty kind in a spec means defaultKind.
func NewFactory(defaultKind, defaultPath string) *Factory {
	f := &Factory{
		builders:    make(map[string]driven.IndexConnectorBuilder),
		defaultKind: defaultKind,
	}
	f.Register(domain.IndexSQLite, func(spec domain.IndexSpec) (driven.IndexConnector, error) {
		path := spec.Path
		if path == "" {
			path = defaultPath
		}
		return sqlite.NewConnector(path), nil
	})

	// Memory indexes live as long as the factory, keyed by path.
	indexes := make(map[string]*memory.Index)
	f.Register(domain.IndexMemory, func(spec domain.IndexSpec) (driven.IndexConnector, error) {
		idx, ok := indexes[spec.Path]
		if !ok {
			idx = memory.NewIndex()
			indexes[spec.Path] = idx
		}
		return idx, nil
	})
	return f
}

// Register adds a connector builder for the given kind.
func (f *Factory) Register(kind string, builder driven.IndexConnectorBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[kind] = builder
}

// Create returns a connector for spec.
func (f *Factory) Create(spec domain.IndexSpec) (driven.IndexConnector, error) {
	if spec.Kind == "" {
		spec.Kind = f.defaultKind
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	builder, ok := f.builders[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: index kind %q", domain.ErrUnsupportedType, spec.Kind)
	}
	return builder(spec)
}

// SupportedKinds returns all registered kinds, sorted.
func (f *Factory) SupportedKinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]string, 0, len(f.builders))
	for k := range f.builders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
