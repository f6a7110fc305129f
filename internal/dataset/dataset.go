// Package dataset provides the partitioned, lazily evaluated record sequence
// handed between plan nodes.
//
// A Dataset is a list of partitions. Each partition is a re-invocable Source,
// so a dataset can be iterated any number of times by downstream consumers
// without being held in memory. Record order is preserved within a partition;
// no order is defined across partitions.
//
// Record-wise operations only see *domain.Document values. MetadataDocument
// records are passed through unchanged.
package dataset

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
)

// Source yields the records of one partition, in order, to emit.
// It must be safe to invoke more than once.
type Source func(ctx context.Context, emit func(domain.Record) error) error

// MapFunc transforms one document.
type MapFunc func(doc *domain.Document) (*domain.Document, error)

// FilterFunc reports whether a document is kept.
type FilterFunc func(doc *domain.Document) (bool, error)

// FlatMapFunc turns one document into zero or more documents.
type FlatMapFunc func(doc *domain.Document) ([]*domain.Document, error)

// BatchFunc transforms all documents of one partition at once.
type BatchFunc func(ctx context.Context, docs []*domain.Document) ([]*domain.Document, error)

// RecordFunc rewrites or drops (by returning nil) any record, metadata included.
type RecordFunc func(rec domain.Record) (domain.Record, error)

// Partition is a handle on the records of one partition.
type Partition struct {
	// Index is the position of the partition within its dataset.
	Index int

	src Source
}

// Each streams the records of the partition to fn.
func (p Partition) Each(ctx context.Context, fn func(domain.Record) error) error {
	return p.src(ctx, fn)
}

// Records loads the whole partition.
func (p Partition) Records(ctx context.Context) ([]domain.Record, error) {
	var out []domain.Record
	err := p.src(ctx, func(r domain.Record) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

// PartitionFunc processes one partition.
type PartitionFunc func(ctx context.Context, p Partition) error

// PartitionWriter persists partitions to an external system.
type PartitionWriter interface {
	// WritePartition writes one partition. It must not share state with
	// concurrent calls for other partitions.
	WritePartition(ctx context.Context, p Partition) error
}

// Dataset is an opaque, partitioned sequence of records.
type Dataset interface {
	// NumPartitions returns the number of partitions.
	NumPartitions() int

	// Runner returns the runner used to process partitions.
	Runner() Runner

	// WithRunner returns the same partitions scheduled by r.
	WithRunner(r Runner) Dataset

	// Map applies fn to every document.
	Map(fn MapFunc) Dataset

	// FilterOrSkip keeps documents for which pred is true.
	FilterOrSkip(pred FilterFunc) Dataset

	// FlatMap expands every document into zero or more documents.
	FlatMap(fn FlatMapFunc) Dataset

	// MapBatch transforms the documents of each partition as one batch.
	MapBatch(fn BatchFunc) Dataset

	// MapRecords applies fn to every record, metadata included.
	MapRecords(fn RecordFunc) Dataset

	// ForEachPartition runs fn once per partition through the runner.
	ForEachPartition(ctx context.Context, fn PartitionFunc) error

	// WritePartitioned hands every partition to w through the runner.
	WritePartitioned(ctx context.Context, w PartitionWriter) error

	// Materialize evaluates every partition once and returns an in-memory
	// dataset with the same partitioning.
	Materialize(ctx context.Context) (Dataset, error)

	// Collect returns all records, partition by partition.
	Collect(ctx context.Context) ([]domain.Record, error)

	// Count returns the number of documents, metadata excluded.
	Count(ctx context.Context) (int, error)
}

// Ensure lazy implements the interface.
var _ Dataset = (*lazy)(nil)

// lazy is the Dataset implementation shared by every runner.
type lazy struct {
	runner Runner
	parts  []Source
}

// New creates a dataset from partition sources.
func New(runner Runner, parts ...Source) Dataset {
	if runner == nil {
		runner = SequentialRunner{}
	}
	return &lazy{runner: runner, parts: parts}
}

// FromPartitions creates an in-memory dataset with the given partitioning.
func FromPartitions(runner Runner, partitions [][]domain.Record) Dataset {
	parts := make([]Source, len(partitions))
	for i, records := range partitions {
		parts[i] = sliceSource(records)
	}
	return New(runner, parts...)
}

// FromRecords splits records into n contiguous partitions.
// n <= 0 means one partition per record.
func FromRecords(runner Runner, n int, records []domain.Record) Dataset {
	if n <= 0 || n > len(records) {
		n = len(records)
	}
	if n == 0 {
		return New(runner)
	}
	partitions := make([][]domain.Record, n)
	size := len(records) / n
	extra := len(records) % n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		partitions[i] = records[start:end]
		start = end
	}
	return FromPartitions(runner, partitions)
}

// FromDocuments is FromRecords for documents.
func FromDocuments(runner Runner, n int, docs ...*domain.Document) Dataset {
	records := make([]domain.Record, len(docs))
	for i, d := range docs {
		records[i] = d
	}
	return FromRecords(runner, n, records)
}

// Union concatenates the partitions of several datasets.
func Union(runner Runner, sets ...Dataset) (Dataset, error) {
	var parts []Source
	for _, ds := range sets {
		l, ok := ds.(*lazy)
		if !ok {
			return nil, fmt.Errorf("%w: cannot union %T", domain.ErrUnsupportedType, ds)
		}
		parts = append(parts, l.parts...)
	}
	return New(runner, parts...), nil
}

func sliceSource(records []domain.Record) Source {
	return func(ctx context.Context, emit func(domain.Record) error) error {
		for _, r := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := emit(r); err != nil {
				return err
			}
		}
		return nil
	}
}

func (d *lazy) NumPartitions() int { return len(d.parts) }

func (d *lazy) Runner() Runner { return d.runner }

func (d *lazy) WithRunner(r Runner) Dataset {
	return &lazy{runner: r, parts: d.parts}
}

// derive wraps every partition source.
func (d *lazy) derive(wrap func(Source) Source) Dataset {
	parts := make([]Source, len(d.parts))
	for i, src := range d.parts {
		parts[i] = wrap(src)
	}
	return &lazy{runner: d.runner, parts: parts}
}

func (d *lazy) Map(fn MapFunc) Dataset {
	return d.derive(func(src Source) Source {
		return func(ctx context.Context, emit func(domain.Record) error) error {
			return src(ctx, func(r domain.Record) error {
				doc, ok := r.(*domain.Document)
				if !ok {
					return emit(r)
				}
				out, err := fn(doc)
				if err != nil {
					return err
				}
				return emit(out)
			})
		}
	})
}

func (d *lazy) FilterOrSkip(pred FilterFunc) Dataset {
	return d.derive(func(src Source) Source {
		return func(ctx context.Context, emit func(domain.Record) error) error {
			return src(ctx, func(r domain.Record) error {
				doc, ok := r.(*domain.Document)
				if !ok {
					return emit(r)
				}
				keep, err := pred(doc)
				if err != nil {
					return err
				}
				if !keep {
					return nil
				}
				return emit(doc)
			})
		}
	})
}

func (d *lazy) FlatMap(fn FlatMapFunc) Dataset {
	return d.derive(func(src Source) Source {
		return func(ctx context.Context, emit func(domain.Record) error) error {
			return src(ctx, func(r domain.Record) error {
				doc, ok := r.(*domain.Document)
				if !ok {
					return emit(r)
				}
				outs, err := fn(doc)
				if err != nil {
					return err
				}
				for _, out := range outs {
					if err := emit(out); err != nil {
						return err
					}
				}
				return nil
			})
		}
	})
}

func (d *lazy) MapBatch(fn BatchFunc) Dataset {
	return d.derive(func(src Source) Source {
		return func(ctx context.Context, emit func(domain.Record) error) error {
			var (
				records []domain.Record
				docs    []*domain.Document
			)
			err := src(ctx, func(r domain.Record) error {
				records = append(records, r)
				if doc, ok := r.(*domain.Document); ok {
					docs = append(docs, doc)
				}
				return nil
			})
			if err != nil {
				return err
			}
			outs, err := fn(ctx, docs)
			if err != nil {
				return err
			}
			return emitBatch(records, docs, outs, emit)
		}
	})
}

// emitBatch re-interleaves metadata records with the batch output when the
// batch preserved the document count, and emits them first otherwise.
func emitBatch(records []domain.Record, docs, outs []*domain.Document, emit func(domain.Record) error) error {
	if len(outs) == len(docs) {
		next := 0
		for _, r := range records {
			if r.IsMetadata() {
				if err := emit(r); err != nil {
					return err
				}
				continue
			}
			if err := emit(outs[next]); err != nil {
				return err
			}
			next++
		}
		return nil
	}
	for _, r := range records {
		if r.IsMetadata() {
			if err := emit(r); err != nil {
				return err
			}
		}
	}
	for _, out := range outs {
		if err := emit(out); err != nil {
			return err
		}
	}
	return nil
}

func (d *lazy) MapRecords(fn RecordFunc) Dataset {
	return d.derive(func(src Source) Source {
		return func(ctx context.Context, emit func(domain.Record) error) error {
			return src(ctx, func(r domain.Record) error {
				out, err := fn(r)
				if err != nil {
					return err
				}
				if out == nil {
					return nil
				}
				return emit(out)
			})
		}
	})
}

func (d *lazy) ForEachPartition(ctx context.Context, fn PartitionFunc) error {
	return d.runner.Run(ctx, len(d.parts), func(ctx context.Context, i int) error {
		return fn(ctx, Partition{Index: i, src: d.parts[i]})
	})
}

func (d *lazy) WritePartitioned(ctx context.Context, w PartitionWriter) error {
	return d.ForEachPartition(ctx, w.WritePartition)
}

func (d *lazy) Materialize(ctx context.Context) (Dataset, error) {
	partitions := make([][]domain.Record, len(d.parts))
	err := d.ForEachPartition(ctx, func(ctx context.Context, p Partition) error {
		records, err := p.Records(ctx)
		if err != nil {
			return err
		}
		partitions[p.Index] = records
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromPartitions(d.runner, partitions), nil
}

func (d *lazy) Collect(ctx context.Context) ([]domain.Record, error) {
	m, err := d.Materialize(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Record
	for _, src := range m.(*lazy).parts {
		if err := src(ctx, func(r domain.Record) error {
			out = append(out, r)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *lazy) Count(ctx context.Context) (int, error) {
	counts := make([]int, len(d.parts))
	err := d.ForEachPartition(ctx, func(ctx context.Context, p Partition) error {
		return p.Each(ctx, func(r domain.Record) error {
			if !r.IsMetadata() {
				counts[p.Index]++
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	return total, nil
}

// Documents returns only the documents among records.
func Documents(records []domain.Record) []*domain.Document {
	var docs []*domain.Document
	for _, r := range records {
		if doc, ok := r.(*domain.Document); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}
