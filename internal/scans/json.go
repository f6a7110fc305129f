package scans

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/dataset"
	"github.com/custodia-labs/sercha-flow/internal/plan"
)

// Ensure JSONScan implements the interfaces.
var (
	_ plan.Operator  = (*JSONScan)(nil)
	_ plan.Describer = (*JSONScan)(nil)
)

// JSONScan reads documents in wire form from JSON files. A file holds either
// one JSON array of document mappings or one mapping per line. Documents
// without a doc_id get a generated one.
type JSONScan struct {
	fileScan
}

// NewJSONScan creates a JSON scan over paths. By default only .json and
// .jsonl files are read.
func NewJSONScan(paths []string, opts ...Option) (*JSONScan, error) {
	fs, err := newFileScan(paths, []string{"json", "jsonl"}, opts)
	if err != nil {
		return nil, err
	}
	return &JSONScan{fileScan: fs}, nil
}

// Execute lists the files and returns one lazy partition per file group.
func (s *JSONScan) Execute(_ context.Context, runner dataset.Runner, inputs []dataset.Dataset) (dataset.Dataset, error) {
	if len(inputs) != 0 {
		return nil, fmt.Errorf("json scan expects no inputs, got %d", len(inputs))
	}
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	groups := s.split(files)
	sources := make([]dataset.Source, len(groups))
	for i, group := range groups {
		files := group
		sources[i] = func(ctx context.Context, emit func(domain.Record) error) error {
			for _, path := range files {
				if err := readJSONFile(ctx, path, emit); err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
			}
			return nil
		}
	}
	return dataset.New(runner, sources...), nil
}

// Describe returns the explain label.
func (s *JSONScan) Describe() string { return s.describe("json_scan") }

func readJSONFile(ctx context.Context, path string, emit func(domain.Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	first, err := firstByte(r)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return err
		}
		for dec.More() {
			if err := decodeOne(ctx, dec, emit); err != nil {
				return err
			}
		}
		_, err := dec.Token()
		return err
	}
	for {
		err := decodeOne(ctx, dec, emit)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// firstByte peeks the first non-space byte without consuming it.
func firstByte(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.Peek(1)
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsAny(b, " \t\r\n") {
			return b[0], nil
		}
		if _, err := r.ReadByte(); err != nil {
			return 0, err
		}
	}
}

func decodeOne(ctx context.Context, dec *json.Decoder, emit func(domain.Record) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	doc, err := DocumentFromJSON(m)
	if err != nil {
		return err
	}
	return emit(doc)
}

// DocumentFromJSON builds a document from a decoded JSON mapping. Numbers
// decoded as json.Number become int when integral and float64 otherwise.
func DocumentFromJSON(m map[string]any) (*domain.Document, error) {
	normalised, _ := normaliseNumbers(m).(map[string]any)
	doc, err := domain.DocumentFromMap(normalised)
	if err != nil {
		return nil, err
	}
	if doc.DocID == nil {
		id, err := uuid.NewUUID()
		if err != nil {
			return nil, fmt.Errorf("generate doc id: %w", err)
		}
		doc.DocID = domain.StringPtr(id.String())
	}
	return doc, nil
}

func normaliseNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = normaliseNumbers(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normaliseNumbers(x)
		}
		return out
	default:
		return v
	}
}
