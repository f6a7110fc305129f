package docset

import (
	"context"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-flow/internal/sinks"
)

// Writer adds sink nodes over a DocSet.
type Writer struct {
	d    *DocSet
	opts []StepOption
}

// Write starts a write of d. Step options apply to the sink node.
func (d *DocSet) Write(opts ...StepOption) *Writer {
	return &Writer{d: d, opts: opts}
}

// IndexPlan adds a bulk index sink without running it.
func (w *Writer) IndexPlan(collection string, connector driven.IndexConnector, opts ...sinks.Option) (*DocSet, *sinks.BulkWriter) {
	if w.d.err != nil {
		return w.d, nil
	}
	sink, err := sinks.NewBulkWriter(collection, connector, opts...)
	if err != nil {
		return &DocSet{b: w.d.b, err: err}, nil
	}
	return w.d.add(domain.KindSink, "index_write", sink, w.opts), sink
}

// Index writes every document into collection and blocks until all
// partitions have finished. The returned stats cover this run.
func (w *Writer) Index(ctx context.Context, collection string, connector driven.IndexConnector, opts ...sinks.Option) (sinks.StatsSnapshot, error) {
	d, sink := w.IndexPlan(collection, connector, opts...)
	if err := d.rewrite(); err != nil {
		return sinks.StatsSnapshot{}, err
	}
	err := d.b.ctx.Executor().Run(ctx, d.b.plan, d.node)
	return sink.Stats().Snapshot(), err
}
