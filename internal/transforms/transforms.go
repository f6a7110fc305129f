// Package transforms provides the record-wise plan operators.
//
// Every operator is lazy: Execute only wraps its input dataset, the work runs
// when a sink or a drain consumes the partitions. Metadata records pass
// through every operator except DropMetadata.
package transforms

import (
	"context"
	"fmt"
	"reflect"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/dataset"
	"github.com/custodia-labs/sercha-flow/internal/plan"
)

// Ensure operators implement the interfaces.
var (
	_ plan.Operator = (*Map)(nil)
	_ plan.OneToOne = (*Map)(nil)
	_ plan.Operator = (*Filter)(nil)
	_ plan.Operator = (*FlatMap)(nil)
	_ plan.Operator = DropMetadata{}
	_ plan.Operator = Union{}
)

// single returns the only input of a unary operator.
func single(name string, inputs []dataset.Dataset) (dataset.Dataset, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%s expects one input, got %d", name, len(inputs))
	}
	return inputs[0], nil
}

// Map applies a function to every document.
type Map struct {
	name string
	fn   dataset.MapFunc
}

// NewMap creates a Map operator.
func NewMap(name string, fn dataset.MapFunc) *Map {
	return &Map{name: name, fn: fn}
}

// Execute wraps the input.
func (m *Map) Execute(_ context.Context, _ dataset.Runner, inputs []dataset.Dataset) (dataset.Dataset, error) {
	in, err := single("map", inputs)
	if err != nil {
		return nil, err
	}
	return in.Map(m.fn), nil
}

// OneToOne marks Map as fusable.
func (m *Map) OneToOne() bool { return true }

// Describe returns the explain label.
func (m *Map) Describe() string { return "map " + m.name }

// Filter keeps documents matching a predicate.
type Filter struct {
	name string
	pred dataset.FilterFunc
}

// NewFilter creates a Filter operator.
func NewFilter(name string, pred dataset.FilterFunc) *Filter {
	return &Filter{name: name, pred: pred}
}

// Execute wraps the input.
func (f *Filter) Execute(_ context.Context, _ dataset.Runner, inputs []dataset.Dataset) (dataset.Dataset, error) {
	in, err := single("filter", inputs)
	if err != nil {
		return nil, err
	}
	return in.FilterOrSkip(f.pred), nil
}

// Describe returns the explain label.
func (f *Filter) Describe() string { return "filter " + f.name }

// PropertyEquals returns a predicate matching documents whose property equals value.
func PropertyEquals(key string, value any) dataset.FilterFunc {
	return func(doc *domain.Document) (bool, error) {
		v, ok := doc.Property(key)
		return ok && reflect.DeepEqual(v, value), nil
	}
}

// FlatMap expands every document into zero or more documents.
type FlatMap struct {
	name string
	fn   dataset.FlatMapFunc
}

// NewFlatMap creates a FlatMap operator.
func NewFlatMap(name string, fn dataset.FlatMapFunc) *FlatMap {
	return &FlatMap{name: name, fn: fn}
}

// Execute wraps the input.
func (f *FlatMap) Execute(_ context.Context, _ dataset.Runner, inputs []dataset.Dataset) (dataset.Dataset, error) {
	in, err := single("flat map", inputs)
	if err != nil {
		return nil, err
	}
	return in.FlatMap(f.fn), nil
}

// Describe returns the explain label.
func (f *FlatMap) Describe() string { return "flat_map " + f.name }

// DropMetadata discards metadata records.
type DropMetadata struct{}

// Execute wraps the input.
func (DropMetadata) Execute(_ context.Context, _ dataset.Runner, inputs []dataset.Dataset) (dataset.Dataset, error) {
	in, err := single("drop metadata", inputs)
	if err != nil {
		return nil, err
	}
	return in.MapRecords(func(r domain.Record) (domain.Record, error) {
		if r.IsMetadata() {
			return nil, nil
		}
		return r, nil
	}), nil
}

// Describe returns the explain label.
func (DropMetadata) Describe() string { return "drop_metadata" }

// SetProperty returns a map function setting one property on a copy of each document.
func SetProperty(key string, value any) dataset.MapFunc {
	return func(doc *domain.Document) (*domain.Document, error) {
		out := doc.Clone()
		out.SetProperty(key, value)
		return out, nil
	}
}

// Union concatenates the partitions of its inputs.
type Union struct{}

// Execute concatenates the inputs.
func (Union) Execute(_ context.Context, runner dataset.Runner, inputs []dataset.Dataset) (dataset.Dataset, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("union expects at least one input")
	}
	return dataset.Union(runner, inputs...)
}

// Describe returns the explain label.
func (Union) Describe() string { return "union" }
