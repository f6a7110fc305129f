package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-flow/internal/dataset"
	"github.com/custodia-labs/sercha-flow/internal/docset"
	"github.com/custodia-labs/sercha-flow/internal/logger"
	"github.com/custodia-labs/sercha-flow/internal/scans"
	"github.com/custodia-labs/sercha-flow/internal/session"
	"github.com/custodia-labs/sercha-flow/internal/sinks"
	"github.com/custodia-labs/sercha-flow/internal/transforms"
)

// Ensure PipelineService implements the interface.
var _ driving.PipelineRunner = (*PipelineService)(nil)

// PipelineService composes scan, transforms and sink from a PipelineSpec.
type PipelineService struct {
	session      *session.Context
	registry     *transforms.Registry
	indexes      driven.IndexConnectorFactory
	sinkDefaults []sinks.Option
}

// NewPipelineService creates a pipeline service. Every run derives its
// session from base with the pipeline's parameter sets merged on top.
// sinkDefaults apply before the options of a pipeline's sink section.
func NewPipelineService(
	base *session.Context,
	registry *transforms.Registry,
	indexes driven.IndexConnectorFactory,
	sinkDefaults ...sinks.Option,
) *PipelineService {
	return &PipelineService{
		session:      base,
		registry:     registry,
		indexes:      indexes,
		sinkDefaults: sinkDefaults,
	}
}

// Transforms returns the registered transform names.
func (s *PipelineService) Transforms() []string {
	return s.registry.Names()
}

// Run executes the pipeline.
func (s *PipelineService) Run(ctx context.Context, spec *domain.PipelineSpec) (*driving.PipelineResult, error) {
	start := time.Now()
	ds, sink, err := s.build(spec)
	if err != nil {
		return nil, err
	}

	result := &driving.PipelineResult{Name: spec.Name}
	if sink == nil {
		n, err := ds.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("run pipeline %s: %w", spec.Name, err)
		}
		result.Documents = n
	} else {
		_, err = ds.Execute(ctx)
		stats := sink.Stats().Snapshot()
		result.Written = stats.Written
		result.Failed = stats.Failed
		result.PartitionsFailed = stats.PartitionsFailed
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("run pipeline %s: %w", spec.Name, err)
		}
	}
	result.Duration = time.Since(start)
	logger.Info("pipeline %s finished in %v: %d written, %d failed", spec.Name, result.Duration, result.Written, result.Failed)
	return result, nil
}

// Explain renders the rewritten plan.
func (s *PipelineService) Explain(spec *domain.PipelineSpec) (string, error) {
	ds, _, err := s.build(spec)
	if err != nil {
		return "", err
	}
	return ds.Explain()
}

// build translates spec into a plan. The sink is nil when spec has none.
func (s *PipelineService) build(spec *domain.PipelineSpec) (*docset.DocSet, *sinks.BulkWriter, error) {
	if spec == nil {
		return nil, nil, domain.ConfigError("pipeline is nil")
	}
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}

	opts := []session.Option{session.WithParams(s.session.Params().Merge(spec.Params))}
	if spec.Runner != nil {
		opts = append(opts, session.WithRunner(runnerFor(*spec.Runner)))
	}
	ctx := s.session.With(opts...)
	reader := docset.Read(ctx)

	var scanOpts []scans.Option
	if spec.Scan.Parallelism != 0 {
		scanOpts = append(scanOpts, scans.WithParallelism(spec.Scan.Parallelism))
	}
	if len(spec.Scan.Extensions) > 0 {
		scanOpts = append(scanOpts, scans.WithExtensions(spec.Scan.Extensions...))
	}

	var ds *docset.DocSet
	switch spec.Scan.Kind {
	case domain.ScanBinary:
		ds = reader.Binary(spec.Scan.Paths, spec.Scan.Format, scanOpts, steps(spec.Scan.Resources)...)
	default:
		ds = reader.JSON(spec.Scan.Paths, scanOpts, steps(spec.Scan.Resources)...)
	}

	for _, t := range spec.Transforms {
		op, err := s.registry.Build(ctx, t.Name, t.Config)
		if err != nil {
			return nil, nil, err
		}
		ds = ds.Transform(t.Name, op, steps(t.Resources)...)
	}
	if err := ds.Err(); err != nil {
		return nil, nil, err
	}
	if spec.Sink == nil {
		return ds, nil, nil
	}

	connector, err := s.indexes.Create(spec.Sink.Index)
	if err != nil {
		return nil, nil, fmt.Errorf("create index connector: %w", err)
	}
	out, sink := ds.Write(steps(spec.Sink.Resources)...).IndexPlan(spec.Sink.Collection, connector, s.sinkOptions(spec.Sink)...)
	if err := out.Err(); err != nil {
		return nil, nil, err
	}
	return out, sink, nil
}

func (s *PipelineService) sinkOptions(spec *domain.SinkSpec) []sinks.Option {
	opts := append([]sinks.Option(nil), s.sinkDefaults...)
	if spec.Settings != nil {
		opts = append(opts, sinks.WithSettings(spec.Settings))
	}
	if spec.AllowedFailures != nil {
		opts = append(opts, sinks.WithAllowedFailures(*spec.AllowedFailures))
	}
	if spec.FailureLog != "" {
		opts = append(opts, sinks.WithFailureLog(spec.FailureLog))
	}
	if spec.FailureLogPolicy != "" {
		opts = append(opts, sinks.WithFailureLogPolicy(domain.FailureLogPolicy(spec.FailureLogPolicy)))
	}
	if spec.DispatchWorkers != 0 {
		opts = append(opts, sinks.WithDispatchWorkers(spec.DispatchWorkers))
	}
	if spec.RequestsPerSecond != 0 {
		opts = append(opts, sinks.WithRequestsPerSecond(spec.RequestsPerSecond))
	}
	if spec.IDStrategy != "" {
		opts = append(opts, sinks.WithIDStrategy(sinks.IDStrategy(spec.IDStrategy)))
	}
	return opts
}

// runnerFor maps a runner section to a runner. An empty kind with workers
// selects the pool runner. It returns nil to keep the session runner.
func runnerFor(spec domain.RunnerSpec) dataset.Runner {
	switch {
	case spec.Kind == domain.RunnerPool, spec.Kind == "" && spec.Workers > 0:
		return dataset.NewPoolRunner(spec.Workers, spec.FailFast)
	case spec.Kind == domain.RunnerSequential, spec.FailFast:
		return dataset.SequentialRunner{FailFast: spec.FailFast}
	default:
		return nil
	}
}

func steps(r *domain.Resources) []docset.StepOption {
	if r == nil {
		return nil
	}
	return []docset.StepOption{docset.WithResources(*r)}
}
