// Package memory provides an in-memory indexed store.
// It is used by tests and by dry runs of the CLI.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driven"
)

// Ensure Index and client implement the interfaces.
var (
	_ driven.IndexConnector = (*Index)(nil)
	_ driven.IndexClient    = (*client)(nil)
)

// RejectFunc decides whether the store rejects an action.
// A non-nil return is reported to the caller wrapped in domain.ErrRecordRejected.
type RejectFunc func(action domain.WriteAction) error

// Index is an in-memory indexed store shared by all clients connected to it.
type Index struct {
	mu          sync.RWMutex
	collections map[string]*collection
	reject      RejectFunc
	connections atomic.Int64
	open        atomic.Int64
}

type collection struct {
	settings domain.CollectionSettings
	records  map[string]map[string]any
}

// Option configures an Index.
type Option func(*Index)

// WithRejectFunc makes the store reject matching actions.
func WithRejectFunc(fn RejectFunc) Option {
	return func(i *Index) {
		i.reject = fn
	}
}

// NewIndex creates an empty in-memory index.
func NewIndex(opts ...Option) *Index {
	i := &Index{collections: make(map[string]*collection)}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Describe returns the connector description.
func (i *Index) Describe() string { return "memory" }

// Connect opens a new client.
func (i *Index) Connect(_ context.Context) (driven.IndexClient, error) {
	i.connections.Add(1)
	i.open.Add(1)
	return &client{index: i}, nil
}

// Connections returns the number of clients ever opened.
func (i *Index) Connections() int { return int(i.connections.Load()) }

// OpenClients returns the number of clients not yet closed.
func (i *Index) OpenClients() int { return int(i.open.Load()) }

// Settings returns the creation settings of a collection.
func (i *Index) Settings(name string) (domain.CollectionSettings, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	c, ok := i.collections[name]
	if !ok {
		return nil, false
	}
	return c.settings, true
}

// IDs returns the sorted record ids of a collection.
func (i *Index) IDs(name string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	c, ok := i.collections[name]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(c.records))
	for id := range c.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// client is one connection to an Index.
type client struct {
	index  *Index
	closed atomic.Bool
}

func (c *client) check() error {
	if c.closed.Load() {
		return domain.ErrClientClosed
	}
	return nil
}

// CollectionExists reports whether the collection exists.
func (c *client) CollectionExists(_ context.Context, name string) (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	_, ok := c.index.collections[name]
	return ok, nil
}

// CreateCollection creates a collection.
func (c *client) CreateCollection(_ context.Context, name string, settings domain.CollectionSettings) error {
	if err := c.check(); err != nil {
		return err
	}
	c.index.mu.Lock()
	defer c.index.mu.Unlock()
	if _, ok := c.index.collections[name]; ok {
		return fmt.Errorf("collection %q: %w", name, domain.ErrAlreadyExists)
	}
	c.index.collections[name] = &collection{
		settings: settings,
		records:  make(map[string]map[string]any),
	}
	return nil
}

// Upsert inserts or replaces a record.
func (c *client) Upsert(_ context.Context, action domain.WriteAction) error {
	if err := c.check(); err != nil {
		return err
	}
	if c.index.reject != nil {
		if err := c.index.reject(action); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrRecordRejected, err)
		}
	}
	c.index.mu.Lock()
	defer c.index.mu.Unlock()
	coll, ok := c.index.collections[action.Collection]
	if !ok {
		return fmt.Errorf("%w: collection %q does not exist", domain.ErrRecordRejected, action.Collection)
	}
	coll.records[action.ID] = action.Payload
	return nil
}

// Get returns the payload stored under id.
func (c *client) Get(_ context.Context, name, id string) (map[string]any, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	coll, ok := c.index.collections[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	payload, ok := coll.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return payload, nil
}

// Count returns the number of records in a collection.
func (c *client) Count(_ context.Context, name string) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	coll, ok := c.index.collections[name]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return len(coll.records), nil
}

// Close releases the client.
func (c *client) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.index.open.Add(-1)
	}
	return nil
}
