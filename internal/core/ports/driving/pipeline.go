package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
)

// PipelineRunner builds and runs declarative pipelines.
type PipelineRunner interface {
	// Run executes the pipeline and blocks until every partition finished.
	Run(ctx context.Context, spec *domain.PipelineSpec) (*PipelineResult, error)

	// Explain returns the rewritten plan of the pipeline without running it.
	Explain(spec *domain.PipelineSpec) (string, error)

	// Transforms returns the names of the available transforms.
	Transforms() []string
}

// PipelineResult summarises one pipeline run.
type PipelineResult struct {
	// Name is the pipeline name.
	Name string `json:"name"`

	// Documents is the number of documents drained when there is no sink.
	Documents int `json:"documents"`

	// Written is the number of records upserted by the sink.
	Written int64 `json:"written"`

	// Failed is the number of records rejected by the store.
	Failed int64 `json:"failed"`

	// PartitionsFailed is the number of partitions that aborted.
	PartitionsFailed int64 `json:"partitions_failed"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`
}
