// Package docset is the fluent entry point for building and running plans.
//
// A DocSet is an immutable handle on one node of a plan. Every builder method
// adds a node and returns a new handle; nothing runs until Execute, TakeAll,
// Count or a write is called. Build errors are carried by the handle and
// reported by the first terminal call.
package docset

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-flow/internal/dataset"
	"github.com/custodia-labs/sercha-flow/internal/logger"
	"github.com/custodia-labs/sercha-flow/internal/plan"
	"github.com/custodia-labs/sercha-flow/internal/scans"
	"github.com/custodia-labs/sercha-flow/internal/session"
	"github.com/custodia-labs/sercha-flow/internal/transforms"
)

// builder is shared by every DocSet derived from one Reader.
type builder struct {
	ctx       *session.Context
	plan      *plan.Plan
	rewritten map[plan.NodeID]bool
}

// Reader creates the scan nodes of a new plan.
type Reader struct {
	b *builder
}

// Read starts a plan bound to ctx. A nil ctx uses a fresh session.
func Read(ctx *session.Context) *Reader {
	if ctx == nil {
		ctx = session.Init()
	}
	return &Reader{b: &builder{ctx: ctx, plan: plan.New(), rewritten: make(map[plan.NodeID]bool)}}
}

// StepOption configures one plan node.
type StepOption func(*step)

type step struct {
	resources *domain.Resources
}

// WithResources gives the node an explicit resource directive. Explicit
// directives are validated when the node is added and never fused.
func WithResources(r domain.Resources) StepOption {
	return func(s *step) {
		s.resources = &r
	}
}

func applySteps(opts []StepOption) step {
	var s step
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// JSON scans wire-form documents from JSON and JSON Lines files.
func (r *Reader) JSON(paths []string, scanOpts []scans.Option, opts ...StepOption) *DocSet {
	op, err := scans.NewJSONScan(paths, scanOpts...)
	if err != nil {
		return &DocSet{b: r.b, err: err}
	}
	return r.scan("json_scan", op, opts)
}

// Binary scans files of format into documents holding their raw bytes.
func (r *Reader) Binary(paths []string, format string, scanOpts []scans.Option, opts ...StepOption) *DocSet {
	op, err := scans.NewBinaryScan(paths, format, scanOpts...)
	if err != nil {
		return &DocSet{b: r.b, err: err}
	}
	return r.scan("binary_scan", op, opts)
}

// Materialized serves in-memory records split into partitions.
func (r *Reader) Materialized(records []domain.Record, partitions int, opts ...StepOption) *DocSet {
	return r.scan("materialized_scan", scans.NewMaterializedScan(records, partitions), opts)
}

// Documents serves in-memory documents split into partitions.
func (r *Reader) Documents(partitions int, docs ...*domain.Document) *DocSet {
	records := make([]domain.Record, len(docs))
	for i, d := range docs {
		records[i] = d
	}
	return r.Materialized(records, partitions)
}

// Scan adds a custom scan operator.
func (r *Reader) Scan(name string, op plan.Operator, opts ...StepOption) *DocSet {
	return r.scan(name, op, opts)
}

func (r *Reader) scan(name string, op plan.Operator, opts []StepOption) *DocSet {
	s := applySteps(opts)
	id, err := r.b.plan.Add(domain.KindScan, name, op, s.resources)
	return &DocSet{b: r.b, node: id, err: err}
}

// DocSet is a lazy handle on one plan node.
type DocSet struct {
	b    *builder
	node plan.NodeID
	err  error
}

// Context returns the session the plan is bound to.
func (d *DocSet) Context() *session.Context { return d.b.ctx }

// Err returns the first build error, if any.
func (d *DocSet) Err() error { return d.err }

// Node returns the plan node the handle points at.
func (d *DocSet) Node() plan.NodeID { return d.node }

// Plan returns the underlying plan.
func (d *DocSet) Plan() *plan.Plan { return d.b.plan }

// Transform adds a custom transform over d.
func (d *DocSet) Transform(name string, op plan.Operator, opts ...StepOption) *DocSet {
	return d.add(domain.KindTransform, name, op, opts)
}

func (d *DocSet) add(kind domain.OperatorKind, name string, op plan.Operator, opts []StepOption, others ...*DocSet) *DocSet {
	if d.err != nil {
		return d
	}
	children := []plan.NodeID{d.node}
	for _, o := range others {
		if o.err != nil {
			return &DocSet{b: d.b, err: o.err}
		}
		if o.b != d.b {
			return &DocSet{b: d.b, err: domain.ConfigError("cannot combine docsets read from different plans")}
		}
		children = append(children, o.node)
	}
	s := applySteps(opts)
	id, err := d.b.plan.Add(kind, name, op, s.resources, children...)
	return &DocSet{b: d.b, node: id, err: err}
}

// Map applies fn to every document.
func (d *DocSet) Map(name string, fn dataset.MapFunc, opts ...StepOption) *DocSet {
	return d.add(domain.KindTransform, "map", transforms.NewMap(name, fn), opts)
}

// Filter keeps documents matching pred.
func (d *DocSet) Filter(name string, pred dataset.FilterFunc, opts ...StepOption) *DocSet {
	return d.add(domain.KindTransform, "filter", transforms.NewFilter(name, pred), opts)
}

// FlatMap expands every document into zero or more documents.
func (d *DocSet) FlatMap(name string, fn dataset.FlatMapFunc, opts ...StepOption) *DocSet {
	return d.add(domain.KindTransform, "flat_map", transforms.NewFlatMap(name, fn), opts)
}

// DropMetadata discards metadata records.
func (d *DocSet) DropMetadata(opts ...StepOption) *DocSet {
	return d.add(domain.KindTransform, "drop_metadata", transforms.DropMetadata{}, opts)
}

// Chunk splits document text into overlapping chunk elements.
func (d *DocSet) Chunk(chunkOpts []transforms.ChunkOption, opts ...StepOption) *DocSet {
	if d.err != nil {
		return d
	}
	op, err := transforms.NewChunk(d.b.ctx, chunkOpts...)
	if err != nil {
		return &DocSet{b: d.b, err: err}
	}
	return d.add(domain.KindTransform, "chunk", op, opts)
}

// ScoreSimilarity scores every document against a query with scorer.
func (d *DocSet) ScoreSimilarity(scorer driven.SimilarityScorer, simOpts []transforms.SimilarityOption, opts ...StepOption) *DocSet {
	if d.err != nil {
		return d
	}
	op, err := transforms.NewScoreSimilarity(d.b.ctx, scorer, simOpts...)
	if err != nil {
		return &DocSet{b: d.b, err: err}
	}
	return d.add(domain.KindTransform, "score_similarity", op, opts)
}

// RankByScore sorts each partition by the target score, highest first.
func (d *DocSet) RankByScore(target string, opts ...StepOption) *DocSet {
	return d.add(domain.KindTransform, "rank_by_score", transforms.NewRankByScore(target), opts)
}

// Union concatenates d with others. All must come from the same Reader.
func (d *DocSet) Union(others ...*DocSet) *DocSet {
	return d.add(domain.KindTransform, "union", transforms.Union{}, nil, others...)
}

// rewrite applies the session's rewrite rules once per root.
func (d *DocSet) rewrite() error {
	if d.err != nil {
		return d.err
	}
	if d.b.rewritten[d.node] {
		return nil
	}
	if err := d.b.plan.Rewrite(d.node, d.b.ctx.RewriteRules()...); err != nil {
		return fmt.Errorf("rewrite plan: %w", err)
	}
	d.b.rewritten[d.node] = true
	return nil
}

// Execute rewrites the plan and returns the lazy dataset of this node.
func (d *DocSet) Execute(ctx context.Context) (dataset.Dataset, error) {
	if err := d.rewrite(); err != nil {
		return nil, err
	}
	return d.b.ctx.Executor().Execute(ctx, d.b.plan, d.node)
}

// TakeAll runs the plan and returns every document.
func (d *DocSet) TakeAll(ctx context.Context) ([]*domain.Document, error) {
	ds, err := d.Execute(ctx)
	if err != nil {
		return nil, err
	}
	records, err := ds.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return dataset.Documents(records), nil
}

// Count runs the plan and returns the number of documents.
func (d *DocSet) Count(ctx context.Context) (int, error) {
	ds, err := d.Execute(ctx)
	if err != nil {
		return 0, err
	}
	return ds.Count(ctx)
}

// Explain rewrites the plan, like Execute, and renders it from this node.
func (d *DocSet) Explain() (string, error) {
	if err := d.rewrite(); err != nil {
		return "", err
	}
	out, err := d.b.plan.Describe(d.node)
	if err != nil {
		return "", err
	}
	logger.Debug("explained plan rooted at #%d", d.node)
	return out, nil
}
