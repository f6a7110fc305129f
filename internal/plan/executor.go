package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/dataset"
	"github.com/custodia-labs/sercha-flow/internal/logger"
)

// Executor evaluates a plan in post-order.
type Executor struct {
	runner dataset.Runner
	caps   domain.ClusterCaps
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRunner sets the runner that schedules partitions.
func WithRunner(r dataset.Runner) ExecutorOption {
	return func(e *Executor) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithClusterCaps bounds every node's request at run time, including nodes
// no rewrite rule has visited.
func WithClusterCaps(caps domain.ClusterCaps) ExecutorOption {
	return func(e *Executor) {
		e.caps = caps
	}
}

// NewExecutor creates an executor. The default runner is sequential.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{runner: dataset.SequentialRunner{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Runner returns the configured runner.
func (e *Executor) Runner() dataset.Runner { return e.runner }

// Execute evaluates every node reachable from root and returns the root's
// dataset. Each node is evaluated exactly once per call. The output of a
// node with several parents is materialized so its upstream work runs once.
func (e *Executor) Execute(ctx context.Context, p *Plan, root NodeID) (dataset.Dataset, error) {
	order, err := p.PostOrder(root)
	if err != nil {
		return nil, err
	}
	parents := p.parentCounts(order)
	results := make(map[NodeID]dataset.Dataset, len(order))

	for _, n := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := e.evaluate(ctx, n, results)
		if err != nil {
			return nil, err
		}
		if parents[n.ID] > 1 {
			logger.Debug("materializing shared node #%d %s for %d parents", n.ID, n.Name, parents[n.ID])
			out, err = out.Materialize(ctx)
			if err != nil {
				return nil, fmt.Errorf("materialize node #%d %s: %w", n.ID, n.Name, err)
			}
		}
		results[n.ID] = out
	}
	return results[root], nil
}

func (e *Executor) evaluate(ctx context.Context, n *Node, results map[NodeID]dataset.Dataset) (dataset.Dataset, error) {
	req := e.request(n)
	runner := e.runner
	if req.Concurrency > 0 {
		runner = runner.Limit(req.Concurrency)
	}

	inputs := make([]dataset.Dataset, len(n.Children))
	for i, c := range n.Children {
		in, ok := results[c]
		if !ok {
			return nil, fmt.Errorf("%w: child #%d of #%d not evaluated", domain.ErrUnknownNode, c, n.ID)
		}
		inputs[i] = in.WithRunner(runner)
	}

	logger.Debug("evaluating node #%d %s (%s) with %d inputs", n.ID, n.Name, n.Kind, len(inputs))
	out, err := n.Op.Execute(ctx, runner, inputs)
	if err != nil {
		return nil, fmt.Errorf("execute node #%d %s: %w", n.ID, n.Name, err)
	}
	if out == nil {
		out = dataset.New(runner)
	}
	return out, nil
}

// request returns the node's resource request bounded by the cluster caps.
// The node itself is not modified.
func (e *Executor) request(n *Node) *domain.Resources {
	req := n.Resources.Clone()
	if req == nil {
		req = &domain.Resources{}
	}
	if !e.caps.Within(req) {
		e.caps.Clamp(req)
		logger.Debug("node #%d %s bounded to cluster caps: %s", n.ID, n.Name, req)
	}
	return req
}

// Run evaluates the plan and blocks until every stage has completed.
// A root that is not a sink is drained so its lazy work is performed.
func (e *Executor) Run(ctx context.Context, p *Plan, root NodeID) error {
	start := time.Now()
	logger.Section("Run")

	n, err := p.Node(root)
	if err != nil {
		return err
	}
	out, err := e.Execute(ctx, p, root)
	if err != nil {
		return err
	}
	if n.Kind != domain.KindSink {
		count, err := out.Count(ctx)
		if err != nil {
			return fmt.Errorf("drain node #%d %s: %w", n.ID, n.Name, err)
		}
		logger.Info("drained %d documents from #%d %s", count, n.ID, n.Name)
	}
	logger.Info("run completed in %v with runner %s", time.Since(start), e.runner.Name())
	return nil
}
