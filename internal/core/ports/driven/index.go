package driven

import (
	"context"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
)

// IndexConnector describes how to reach an external indexed store.
// It is shared by every partition task; each task opens its own client.
type IndexConnector interface {
	// Describe returns a printable description without credentials.
	Describe() string

	// Connect opens a new client. Clients are never shared between tasks.
	Connect(ctx context.Context) (IndexClient, error)
}

// IndexClient is a single connection to an indexed store.
type IndexClient interface {
	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// CreateCollection creates a collection with optional settings.
	// Returns domain.ErrAlreadyExists if it already exists.
	CreateCollection(ctx context.Context, collection string, settings domain.CollectionSettings) error

	// Upsert inserts or replaces the record with the action id.
	// A record rejected by the store returns an error wrapping
	// domain.ErrRecordRejected.
	Upsert(ctx context.Context, action domain.WriteAction) error

	// Get returns the payload stored under id.
	// Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, collection, id string) (map[string]any, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// Close releases the connection.
	Close() error
}

// IndexConnectorBuilder creates a connector from an index location.
type IndexConnectorBuilder func(spec domain.IndexSpec) (IndexConnector, error)

// IndexConnectorFactory creates connectors from pipeline configuration.
type IndexConnectorFactory interface {
	// Create returns a connector for spec.
	// Returns ErrUnsupportedType if the index kind is unknown.
	Create(spec domain.IndexSpec) (IndexConnector, error)

	// Register adds a builder for the given kind.
	Register(kind string, builder IndexConnectorBuilder)

	// SupportedKinds returns all registered kinds, sorted.
	SupportedKinds() []string
}
