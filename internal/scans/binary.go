package scans

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/dataset"
	"github.com/custodia-labs/sercha-flow/internal/plan"
)

// Ensure BinaryScan implements the interfaces.
var (
	_ plan.Operator  = (*BinaryScan)(nil)
	_ plan.Describer = (*BinaryScan)(nil)
)

// BinaryScan reads every file into one document:
// {doc_id: uuid, type: format, binary_representation: bytes, properties: {path}}.
// Only files with the format as extension are read unless WithExtensions
// overrides the filter.
type BinaryScan struct {
	fileScan
	format string
}

// NewBinaryScan creates a binary scan over paths, which may be files,
// directories or glob patterns.
func NewBinaryScan(paths []string, format string, opts ...Option) (*BinaryScan, error) {
	if format == "" {
		return nil, domain.ConfigError("binary scan requires a format")
	}
	fs, err := newFileScan(paths, []string{format}, opts)
	if err != nil {
		return nil, err
	}
	return &BinaryScan{fileScan: fs, format: format}, nil
}

// Format returns the binary format name.
func (s *BinaryScan) Format() string { return s.format }

// Execute lists the files and returns one lazy partition per file group.
func (s *BinaryScan) Execute(_ context.Context, runner dataset.Runner, inputs []dataset.Dataset) (dataset.Dataset, error) {
	if len(inputs) != 0 {
		return nil, fmt.Errorf("binary scan expects no inputs, got %d", len(inputs))
	}
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	groups := s.split(files)
	sources := make([]dataset.Source, len(groups))
	for i, group := range groups {
		sources[i] = s.source(group)
	}
	return dataset.New(runner, sources...), nil
}

func (s *BinaryScan) source(files []string) dataset.Source {
	return func(ctx context.Context, emit func(domain.Record) error) error {
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := s.read(path)
			if err != nil {
				return err
			}
			if err := emit(doc); err != nil {
				return err
			}
		}
		return nil
	}
}

func (s *BinaryScan) read(path string) (*domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	id, err := uuid.NewUUID()
	if err != nil {
		return nil, fmt.Errorf("generate doc id: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	doc := domain.NewDocument()
	doc.DocID = domain.StringPtr(id.String())
	doc.Type = domain.StringPtr(s.format)
	doc.BinaryRepresentation = data
	doc.SetProperty("path", abs)
	return doc, nil
}

// Describe returns the explain label.
func (s *BinaryScan) Describe() string {
	return s.describe("binary_scan " + s.format)
}
