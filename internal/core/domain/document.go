package domain

// Record is a single entry flowing through a dataset.
// It is either a *Document carrying content or a *MetadataDocument
// carrying pipeline metadata.
type Record interface {
	// IsMetadata reports whether the record carries pipeline metadata
	// rather than content. Consumers skip metadata records.
	IsMetadata() bool
}

// BoundingBox is the spatial location of a document or element on a page.
type BoundingBox struct {
	X0 float64
	Y0 float64
	X1 float64
	Y1 float64
}

// NewBoundingBox creates a bounding box from its corner coordinates.
func NewBoundingBox(x0, y0, x1, y1 float64) *BoundingBox {
	return &BoundingBox{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// Tuple returns the box as the fixed 4-tuple (x0, y0, x1, y1).
func (b BoundingBox) Tuple() [4]float64 {
	return [4]float64{b.X0, b.Y0, b.X1, b.Y1}
}

// Tuple is an ordered, fixed-length property value.
// It is kept distinct from a list ([]any) through serialisation.
type Tuple []any

// Element is a sub-part of a document such as a table, figure or paragraph.
type Element struct {
	// ID optionally identifies the element so aggregate results can
	// reference it (for example, the element that scored highest).
	ID any

	// Type is a free-form tag such as "table" or "figure".
	Type *string

	// TextRepresentation is the text content of the element.
	TextRepresentation *string

	// BinaryRepresentation is opaque binary content.
	BinaryRepresentation []byte

	// BBox is the element location on the page.
	BBox *BoundingBox

	// Embedding holds one or more vector representations.
	Embedding [][]float64

	// Properties contains arbitrary JSON-compatible values.
	Properties map[string]any
}

// NewElement creates an element with empty properties.
func NewElement() *Element {
	return &Element{Properties: make(map[string]any)}
}

// GetProperties returns the element properties, never nil.
func (e *Element) GetProperties() map[string]any {
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	return e.Properties
}

// ClearProperties resets the properties to an empty mapping.
func (e *Element) ClearProperties() {
	e.Properties = make(map[string]any)
}

// Text returns the text representation and whether one is present.
func (e *Element) Text() (string, bool) {
	if e.TextRepresentation == nil {
		return "", false
	}
	return *e.TextRepresentation, true
}

// Clone returns a deep copy of the element.
func (e *Element) Clone() Element {
	return Element{
		ID:                   e.ID,
		Type:                 cloneString(e.Type),
		TextRepresentation:   cloneString(e.TextRepresentation),
		BinaryRepresentation: cloneBytes(e.BinaryRepresentation),
		BBox:                 cloneBBox(e.BBox),
		Embedding:            cloneEmbedding(e.Embedding),
		Properties:           cloneProperties(e.Properties),
	}
}

// Document is the unit of data flowing through every operator.
type Document struct {
	// DocID is the document identity, assigned by a scan if absent.
	DocID *string

	// Type is a string tag, usually the source format name.
	Type *string

	// TextRepresentation is the extracted text content.
	TextRepresentation *string

	// BinaryRepresentation is the raw content as read by a scan.
	BinaryRepresentation []byte

	// BBox is the document location when it was cut from a larger page.
	BBox *BoundingBox

	// Embedding holds one or more vector representations.
	Embedding [][]float64

	// Properties contains arbitrary JSON-compatible values.
	Properties map[string]any

	// Elements is the ordered list of sub-parts.
	Elements []Element

	// ParentID references the originating document by lookup key.
	ParentID *string
}

// IsMetadata implements Record.
func (d *Document) IsMetadata() bool { return false }

// NewDocument creates a document with empty properties and elements.
func NewDocument() *Document {
	return &Document{
		Properties: make(map[string]any),
		Elements:   []Element{},
	}
}

// GetProperties returns the document properties, never nil.
func (d *Document) GetProperties() map[string]any {
	if d.Properties == nil {
		d.Properties = make(map[string]any)
	}
	return d.Properties
}

// ClearProperties resets the properties to an empty mapping.
func (d *Document) ClearProperties() {
	d.Properties = make(map[string]any)
}

// SetProperty stores a single property value.
func (d *Document) SetProperty(key string, value any) {
	d.GetProperties()[key] = value
}

// Property returns a single property value.
func (d *Document) Property(key string) (any, bool) {
	v, ok := d.Properties[key]
	return v, ok
}

// GetElements returns the document elements, never nil.
func (d *Document) GetElements() []Element {
	if d.Elements == nil {
		d.Elements = []Element{}
	}
	return d.Elements
}

// ClearElements resets the elements to an empty sequence.
func (d *Document) ClearElements() {
	d.Elements = []Element{}
}

// ID returns the document id or the empty string when unassigned.
func (d *Document) ID() string {
	if d.DocID == nil {
		return ""
	}
	return *d.DocID
}

// Text returns the text representation and whether one is present.
func (d *Document) Text() (string, bool) {
	if d.TextRepresentation == nil {
		return "", false
	}
	return *d.TextRepresentation, true
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		DocID:                cloneString(d.DocID),
		Type:                 cloneString(d.Type),
		TextRepresentation:   cloneString(d.TextRepresentation),
		BinaryRepresentation: cloneBytes(d.BinaryRepresentation),
		BBox:                 cloneBBox(d.BBox),
		Embedding:            cloneEmbedding(d.Embedding),
		Properties:           cloneProperties(d.Properties),
		Elements:             make([]Element, len(d.Elements)),
		ParentID:             cloneString(d.ParentID),
	}
	for i := range d.Elements {
		out.Elements[i] = d.Elements[i].Clone()
	}
	return out
}

// MetadataDocument carries pipeline metadata instead of content.
// It may be interleaved with documents in any dataset.
type MetadataDocument struct {
	Metadata map[string]any
}

// IsMetadata implements Record.
func (m *MetadataDocument) IsMetadata() bool { return true }

// NewMetadataDocument creates a metadata record.
func NewMetadataDocument(metadata map[string]any) *MetadataDocument {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return &MetadataDocument{Metadata: metadata}
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}

func cloneBBox(b *BoundingBox) *BoundingBox {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func cloneEmbedding(e [][]float64) [][]float64 {
	if e == nil {
		return nil
	}
	out := make([][]float64, len(e))
	for i, v := range e {
		out[i] = append([]float64(nil), v...)
	}
	return out
}

func cloneProperties(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneProperties(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case Tuple:
		out := make(Tuple, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
