package transforms

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/dataset"
	"github.com/custodia-labs/sercha-flow/internal/plan"
	"github.com/custodia-labs/sercha-flow/internal/session"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// ChunkParamSet is the parameter set consulted for chunk arguments.
const ChunkParamSet = "chunk"

// ElementTypeChunk is the element type of produced chunks.
const ElementTypeChunk = "chunk"

// Ensure Chunk implements the interfaces.
var (
	_ plan.Operator      = (*Chunk)(nil)
	_ plan.OneToOne      = (*Chunk)(nil)
	_ session.HasContext = (*Chunk)(nil)
)

// Chunk splits document text into fixed-size overlapping elements.
// Existing elements are replaced; documents without text are unchanged.
type Chunk struct {
	ctx       *session.Context
	chunkSize session.Arg[int]
	overlap   session.Arg[int]
}

// ChunkOption configures a Chunk operator.
type ChunkOption func(*Chunk)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) ChunkOption {
	return func(c *Chunk) {
		c.chunkSize = session.Set(size)
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) ChunkOption {
	return func(c *Chunk) {
		c.overlap = session.Set(overlap)
	}
}

// NewChunk creates a chunk operator. Unset options are resolved from ctx
// under the "chunk" parameter set. Sizes are checked here so a bad value
// fails when the plan is built.
func NewChunk(ctx *session.Context, opts ...ChunkOption) (*Chunk, error) {
	c := &Chunk{ctx: ctx}
	for _, opt := range opts {
		opt(c)
	}
	if _, _, err := c.sizes(); err != nil {
		return nil, err
	}
	return c, nil
}

// Context implements session.HasContext.
func (c *Chunk) Context() *session.Context { return c.ctx }

// sizes resolves chunk size and overlap. The default overlap shrinks to a
// quarter of small chunk sizes; a resolved overlap must stay below the size.
func (c *Chunk) sizes() (int, int, error) {
	r := session.NewResolver(nil, c, ChunkParamSet)
	size := r.Int("chunk_size", c.chunkSize, DefaultChunkSize)
	if size <= 0 {
		return 0, 0, domain.ConfigError("chunk size must be positive, got %d", size)
	}
	def := DefaultChunkOverlap
	if def >= size {
		def = size / 4
	}
	overlap := r.Int("overlap", c.overlap, def)
	if overlap < 0 {
		return 0, 0, domain.ConfigError("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return 0, 0, domain.ConfigError("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return size, overlap, nil
}

// Execute wraps the input.
func (c *Chunk) Execute(_ context.Context, _ dataset.Runner, inputs []dataset.Dataset) (dataset.Dataset, error) {
	in, err := single("chunk", inputs)
	if err != nil {
		return nil, err
	}
	size, overlap, err := c.sizes()
	if err != nil {
		return nil, err
	}
	return in.Map(func(doc *domain.Document) (*domain.Document, error) {
		return chunkDocument(doc, size, overlap), nil
	}), nil
}

// OneToOne marks Chunk as fusable.
func (c *Chunk) OneToOne() bool { return true }

// Describe returns the explain label.
func (c *Chunk) Describe() string {
	size, overlap, err := c.sizes()
	if err != nil {
		return "chunk (invalid)"
	}
	return fmt.Sprintf("chunk size=%d overlap=%d", size, overlap)
}

// chunkDocument returns a copy of doc whose elements are its text chunks.
func chunkDocument(doc *domain.Document, size, overlap int) *domain.Document {
	text, ok := doc.Text()
	if !ok || text == "" {
		return doc
	}
	content := []rune(text)
	out := doc.Clone()
	out.ClearElements()

	position := 0
	for start := 0; start < len(content); start += size - overlap {
		end := start + size
		if end > len(content) {
			end = len(content)
		}
		el := domain.NewElement()
		el.ID = uuid.New().String()
		el.Type = domain.StringPtr(ElementTypeChunk)
		el.TextRepresentation = domain.StringPtr(string(content[start:end]))
		el.Properties["position"] = position
		if doc.DocID != nil {
			el.Properties["parent_doc_id"] = *doc.DocID
		}
		out.Elements = append(out.Elements, *el)
		position++
		if end == len(content) {
			break
		}
	}
	return out
}
