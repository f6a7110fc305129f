// Package sinks provides terminal plan operators that write datasets to
// external stores.
package sinks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-flow/internal/dataset"
	"github.com/custodia-labs/sercha-flow/internal/logger"
	"github.com/custodia-labs/sercha-flow/internal/plan"
)

// DefaultDispatchWorkers bounds concurrent upserts within one partition.
const DefaultDispatchWorkers = 4

// IDStrategy decides the identifier of each write action.
type IDStrategy string

const (
	// IDPositional uses the position of the document within its partition.
	// Ids repeat across partitions.
	IDPositional IDStrategy = "positional"

	// IDDeclared uses the document's doc_id, falling back to its position.
	IDDeclared IDStrategy = "declared"
)

// Ensure BulkWriter implements the interfaces.
var (
	_ plan.Operator           = (*BulkWriter)(nil)
	_ plan.Describer          = (*BulkWriter)(nil)
	_ dataset.PartitionWriter = (*BulkWriter)(nil)
)

// errAbort stops dispatch once the failure budget is spent.
var errAbort = errors.New("failure budget exceeded")

// Stats counts sink outcomes across partitions.
type Stats struct {
	Partitions       atomic.Int64
	PartitionsFailed atomic.Int64
	Written          atomic.Int64
	Failed           atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Partitions       int64
	PartitionsFailed int64
	Written          int64
	Failed           int64
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Partitions:       s.Partitions.Load(),
		PartitionsFailed: s.PartitionsFailed.Load(),
		Written:          s.Written.Load(),
		Failed:           s.Failed.Load(),
	}
}

// BulkWriter upserts every document of a dataset into a collection.
//
// Each partition opens its own client, creates the collection if absent and
// dispatches one action per document with bounded parallelism. Rejected
// records are counted. When a partition's count exceeds the allowed number
// of failures, dispatch stops, the failing records are appended to the
// failure log and a *domain.PartitionWriteError is returned.
type BulkWriter struct {
	collection string
	connector  driven.IndexConnector
	settings   domain.CollectionSettings
	allowed    int
	failureLog string
	policy     domain.FailureLogPolicy
	workers    int
	rps        float64
	ids        IDStrategy
	stats      *Stats
}

// Option configures a BulkWriter.
type Option func(*BulkWriter)

// WithSettings sets the collection creation settings.
func WithSettings(settings domain.CollectionSettings) Option {
	return func(w *BulkWriter) {
		w.settings = settings
	}
}

// WithAllowedFailures sets the failures tolerated per partition.
func WithAllowedFailures(n int) Option {
	return func(w *BulkWriter) {
		w.allowed = n
	}
}

// WithFailureLog sets the file failing records are appended to.
func WithFailureLog(path string) Option {
	return func(w *BulkWriter) {
		w.failureLog = path
	}
}

// WithFailureLogPolicy sets when failing records are persisted.
func WithFailureLogPolicy(p domain.FailureLogPolicy) Option {
	return func(w *BulkWriter) {
		w.policy = p
	}
}

// WithDispatchWorkers sets the concurrent upserts per partition.
func WithDispatchWorkers(n int) Option {
	return func(w *BulkWriter) {
		w.workers = n
	}
}

// WithRequestsPerSecond throttles upserts of each partition. Zero disables it.
func WithRequestsPerSecond(rps float64) Option {
	return func(w *BulkWriter) {
		w.rps = rps
	}
}

// WithIDStrategy sets how action ids are chosen.
func WithIDStrategy(s IDStrategy) Option {
	return func(w *BulkWriter) {
		w.ids = s
	}
}

// NewBulkWriter validates the configuration and creates the writer.
func NewBulkWriter(collection string, connector driven.IndexConnector, opts ...Option) (*BulkWriter, error) {
	w := &BulkWriter{
		collection: collection,
		connector:  connector,
		allowed:    domain.DefaultAllowedFailures,
		failureLog: domain.DefaultFailureLog,
		policy:     domain.LogOnAbort,
		workers:    DefaultDispatchWorkers,
		ids:        IDPositional,
		stats:      &Stats{},
	}
	for _, opt := range opts {
		opt(w)
	}

	switch {
	case w.collection == "":
		return nil, domain.ConfigError("bulk writer needs a collection name")
	case w.connector == nil:
		return nil, domain.ConfigError("bulk writer for %q needs a connector", w.collection)
	case w.allowed < 0:
		return nil, domain.ConfigError("allowed failures must not be negative, got %d", w.allowed)
	case w.workers < 0:
		return nil, domain.ConfigError("dispatch workers must not be negative, got %d", w.workers)
	case w.rps < 0:
		return nil, domain.ConfigError("requests per second must not be negative, got %v", w.rps)
	case !w.policy.IsValid():
		return nil, domain.ConfigError("unknown failure log policy %q", w.policy)
	case w.ids != IDPositional && w.ids != IDDeclared:
		return nil, domain.ConfigError("unknown id strategy %q", w.ids)
	}
	if err := w.settings.Validate(); err != nil {
		return nil, err
	}
	if w.workers == 0 {
		w.workers = DefaultDispatchWorkers
	}
	if w.failureLog == "" {
		w.failureLog = domain.DefaultFailureLog
	}
	return w, nil
}

// Collection returns the target collection.
func (w *BulkWriter) Collection() string { return w.collection }

// Stats returns the live counters.
func (w *BulkWriter) Stats() *Stats { return w.stats }

// Describe returns the explain label.
func (w *BulkWriter) Describe() string {
	return fmt.Sprintf("write %s via %s (allowed failures %d)", w.collection, w.connector.Describe(), w.allowed)
}

// Execute writes its single input and returns an empty dataset.
func (w *BulkWriter) Execute(ctx context.Context, runner dataset.Runner, inputs []dataset.Dataset) (dataset.Dataset, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("bulk writer expects one input, got %d", len(inputs))
	}
	if err := inputs[0].WritePartitioned(ctx, w); err != nil {
		return nil, err
	}
	return dataset.New(runner), nil
}

// failure is one rejected action.
type failure struct {
	action domain.WriteAction
	err    error
}

// partitionState is owned by a single WritePartition call.
type partitionState struct {
	mu       sync.Mutex
	failures []failure
	written  int
	aborted  bool
}

// WritePartition writes one partition with its own client.
func (w *BulkWriter) WritePartition(ctx context.Context, p dataset.Partition) error {
	w.stats.Partitions.Add(1)

	client, err := w.connector.Connect(ctx)
	if err != nil {
		w.stats.PartitionsFailed.Add(1)
		return fmt.Errorf("connect to %s: %w", w.connector.Describe(), err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("partition %d: closing index client: %v", p.Index, cerr)
		}
	}()

	if err := w.ensureCollection(ctx, client); err != nil {
		w.stats.PartitionsFailed.Add(1)
		return err
	}

	state := &partitionState{}
	err = w.dispatch(ctx, client, p, state)
	w.stats.Written.Add(int64(state.written))
	w.stats.Failed.Add(int64(len(state.failures)))

	if state.aborted {
		w.stats.PartitionsFailed.Add(1)
		pwe := &domain.PartitionWriteError{
			Collection: w.collection,
			Partition:  p.Index,
			Failures:   len(state.failures),
			Allowed:    w.allowed,
			FailureLog: w.failureLog,
		}
		if lerr := appendFailures(w.failureLog, w.collection, p.Index, state.failures); lerr != nil {
			pwe.FailureLog = ""
			return errors.Join(pwe, fmt.Errorf("write failure log: %w", lerr))
		}
		return pwe
	}
	if err != nil {
		w.stats.PartitionsFailed.Add(1)
		return fmt.Errorf("write documents: %w", err)
	}

	if len(state.failures) > 0 {
		logger.Warn("partition %d: %d documents failed to index into %s", p.Index, len(state.failures), w.collection)
		if w.policy == domain.LogAlways {
			if lerr := appendFailures(w.failureLog, w.collection, p.Index, state.failures); lerr != nil {
				return fmt.Errorf("write failure log: %w", lerr)
			}
		}
	}
	logger.Logger().Debug("partition written",
		"collection", w.collection,
		"partition", p.Index,
		"written", state.written,
		"failed", len(state.failures))
	return nil
}

// ensureCollection creates the collection if it does not exist yet.
// Another partition may create it concurrently.
func (w *BulkWriter) ensureCollection(ctx context.Context, client driven.IndexClient) error {
	exists, err := client.CollectionExists(ctx, w.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", w.collection, err)
	}
	if exists {
		return nil
	}
	err = client.CreateCollection(ctx, w.collection, w.settings)
	if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return fmt.Errorf("create collection %s: %w", w.collection, err)
	}
	if err == nil {
		logger.Info("created collection %s", w.collection)
	}
	return nil
}

// dispatch streams the partition's actions to a bounded set of workers.
func (w *BulkWriter) dispatch(ctx context.Context, client driven.IndexClient, p dataset.Partition, state *partitionState) error {
	eg, gctx := errgroup.WithContext(ctx)
	actions := make(chan domain.WriteAction)

	var limiter *rate.Limiter
	if w.rps > 0 {
		burst := int(w.rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(w.rps), burst)
	}

	eg.Go(func() error {
		defer close(actions)
		position := 0
		return p.Each(gctx, func(r domain.Record) error {
			doc, ok := r.(*domain.Document)
			if !ok {
				return nil
			}
			action := domain.WriteAction{
				Collection: w.collection,
				ID:         w.actionID(doc, position),
				Payload:    doc.ToMap(),
			}
			position++
			select {
			case actions <- action:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	for i := 0; i < w.workers; i++ {
		eg.Go(func() error {
			for action := range actions {
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				}
				err := client.Upsert(gctx, action)
				if err == nil {
					state.mu.Lock()
					state.written++
					state.mu.Unlock()
					continue
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if exceeded := w.recordFailure(state, action, err); exceeded {
					return errAbort
				}
			}
			return nil
		})
	}

	err := eg.Wait()
	if state.aborted {
		return nil
	}
	return err
}

// recordFailure counts a rejected action and reports whether the budget is
// now exceeded for the first time.
func (w *BulkWriter) recordFailure(state *partitionState, action domain.WriteAction, err error) bool {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.failures = append(state.failures, failure{action: action, err: err})
	logger.Debug("record %s rejected: %v", action.ID, err)
	if !state.aborted && len(state.failures) > w.allowed {
		state.aborted = true
		return true
	}
	return false
}

func (w *BulkWriter) actionID(doc *domain.Document, position int) string {
	if w.ids == IDDeclared && doc.DocID != nil && *doc.DocID != "" {
		return *doc.DocID
	}
	return strconv.Itoa(position)
}
