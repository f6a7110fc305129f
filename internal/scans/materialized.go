package scans

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/dataset"
	"github.com/custodia-labs/sercha-flow/internal/plan"
)

// Ensure MaterializedScan implements the interfaces.
var (
	_ plan.Operator  = (*MaterializedScan)(nil)
	_ plan.Describer = (*MaterializedScan)(nil)
)

// MaterializedScan serves records already held in memory.
type MaterializedScan struct {
	records    []domain.Record
	partitions int
}

// NewMaterializedScan creates a scan over records split into partitions
// contiguous partitions. A non-positive count gives one record per partition.
func NewMaterializedScan(records []domain.Record, partitions int) *MaterializedScan {
	return &MaterializedScan{records: append([]domain.Record(nil), records...), partitions: partitions}
}

// Execute returns the records as a dataset.
func (s *MaterializedScan) Execute(_ context.Context, runner dataset.Runner, inputs []dataset.Dataset) (dataset.Dataset, error) {
	if len(inputs) != 0 {
		return nil, fmt.Errorf("materialized scan expects no inputs, got %d", len(inputs))
	}
	return dataset.FromRecords(runner, s.partitions, s.records), nil
}

// Describe returns the explain label.
func (s *MaterializedScan) Describe() string {
	return fmt.Sprintf("materialized_scan %d records", len(s.records))
}
