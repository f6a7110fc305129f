package domain

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
)

// Wire-form keys of a document mapping.
const (
	KeyDocID                = "doc_id"
	KeyType                 = "type"
	KeyTextRepresentation   = "text_representation"
	KeyBinaryRepresentation = "binary_representation"
	KeyBBox                 = "bbox"
	KeyElements             = "elements"
	KeyProperties           = "properties"
	KeyEmbedding            = "embedding"
	KeyParentID             = "parent_id"
	KeyElementID            = "id"
)

func init() {
	// Concrete types that may sit behind an interface in a wire mapping.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(Tuple{})
	gob.Register([4]float64{})
	gob.Register([][]float64{})
	gob.Register(map[string]string{})
	gob.Register([]map[string]any{})
}

// wireRecord is the envelope written by Serialize.
type wireRecord struct {
	Metadata bool
	Fields   map[string]any
}

// ToMap returns the fixed-key wire mapping of the document.
// Properties and elements are always present; absent optionals are omitted.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		KeyProperties: cloneProperties(d.Properties),
	}
	elements := make([]any, len(d.Elements))
	for i := range d.Elements {
		elements[i] = d.Elements[i].ToMap()
	}
	m[KeyElements] = elements

	if d.DocID != nil {
		m[KeyDocID] = *d.DocID
	}
	if d.ParentID != nil {
		m[KeyParentID] = *d.ParentID
	}
	putCommon(m, d.Type, d.TextRepresentation, d.BinaryRepresentation, d.BBox, d.Embedding)
	return m
}

// ToMap returns the wire mapping of the element.
func (e *Element) ToMap() map[string]any {
	m := map[string]any{
		KeyProperties: cloneProperties(e.Properties),
	}
	if e.ID != nil {
		m[KeyElementID] = e.ID
	}
	putCommon(m, e.Type, e.TextRepresentation, e.BinaryRepresentation, e.BBox, e.Embedding)
	return m
}

func putCommon(m map[string]any, typ, text *string, binary []byte, bbox *BoundingBox, embedding [][]float64) {
	if typ != nil {
		m[KeyType] = *typ
	}
	if text != nil {
		m[KeyTextRepresentation] = *text
	}
	if binary != nil {
		m[KeyBinaryRepresentation] = cloneBytes(binary)
	}
	if bbox != nil {
		m[KeyBBox] = bbox.Tuple()
	}
	if embedding != nil {
		m[KeyEmbedding] = cloneEmbedding(embedding)
	}
}

// DocumentFromMap builds a document from its wire mapping.
// Unknown keys are ignored. Malformed fields return ErrInvalidInput.
func DocumentFromMap(m map[string]any) (*Document, error) {
	d := NewDocument()
	var err error

	if d.DocID, err = optionalString(m, KeyDocID); err != nil {
		return nil, err
	}
	if d.ParentID, err = optionalString(m, KeyParentID); err != nil {
		return nil, err
	}
	if err := readCommon(m, &d.Type, &d.TextRepresentation, &d.BinaryRepresentation, &d.BBox, &d.Embedding); err != nil {
		return nil, err
	}
	if props, ok := m[KeyProperties]; ok && props != nil {
		pm, ok := props.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: properties must be a mapping, got %T", ErrInvalidInput, props)
		}
		d.Properties = cloneProperties(pm)
	}
	if raw, ok := m[KeyElements]; ok && raw != nil {
		items, err := asList(raw)
		if err != nil {
			return nil, fmt.Errorf("elements: %w", err)
		}
		for i, item := range items {
			em, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: element %d must be a mapping, got %T", ErrInvalidInput, i, item)
			}
			el, err := ElementFromMap(em)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			d.Elements = append(d.Elements, *el)
		}
	}
	return d, nil
}

// ElementFromMap builds an element from its wire mapping.
func ElementFromMap(m map[string]any) (*Element, error) {
	e := NewElement()
	if id, ok := m[KeyElementID]; ok {
		e.ID = id
	}
	if err := readCommon(m, &e.Type, &e.TextRepresentation, &e.BinaryRepresentation, &e.BBox, &e.Embedding); err != nil {
		return nil, err
	}
	if props, ok := m[KeyProperties]; ok && props != nil {
		pm, ok := props.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: properties must be a mapping, got %T", ErrInvalidInput, props)
		}
		e.Properties = cloneProperties(pm)
	}
	return e, nil
}

func readCommon(m map[string]any, typ, text **string, binary *[]byte, bbox **BoundingBox, embedding *[][]float64) error {
	var err error
	if *typ, err = optionalString(m, KeyType); err != nil {
		return err
	}
	if *text, err = optionalString(m, KeyTextRepresentation); err != nil {
		return err
	}
	if raw, ok := m[KeyBinaryRepresentation]; ok && raw != nil {
		switch b := raw.(type) {
		case []byte:
			// The key is present, so an empty payload stays present even
			// when the decoder hands back a nil slice.
			*binary = append([]byte{}, b...)
		case string:
			*binary = []byte(b)
		default:
			return fmt.Errorf("%w: binary_representation must be bytes, got %T", ErrInvalidInput, raw)
		}
	}
	if raw, ok := m[KeyBBox]; ok && raw != nil {
		if *bbox, err = parseBBox(raw); err != nil {
			return err
		}
	}
	if raw, ok := m[KeyEmbedding]; ok && raw != nil {
		if *embedding, err = parseEmbedding(raw); err != nil {
			return err
		}
	}
	return nil
}

func optionalString(m map[string]any, key string) (*string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case string:
		return &v, nil
	case json.Number:
		s := v.String()
		return &s, nil
	case int, int64, float64:
		s := fmt.Sprint(v)
		return &s, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidInput, key, raw)
	}
}

func parseBBox(raw any) (*BoundingBox, error) {
	if arr, ok := raw.([4]float64); ok {
		return NewBoundingBox(arr[0], arr[1], arr[2], arr[3]), nil
	}
	items, err := asList(raw)
	if err != nil {
		return nil, fmt.Errorf("bbox: %w", err)
	}
	if len(items) != 4 {
		return nil, fmt.Errorf("%w: bbox must have 4 coordinates, got %d", ErrInvalidInput, len(items))
	}
	var coords [4]float64
	for i, item := range items {
		f, ok := ToFloat(item)
		if !ok {
			return nil, fmt.Errorf("%w: bbox coordinate %d is not a number", ErrInvalidInput, i)
		}
		coords[i] = f
	}
	return NewBoundingBox(coords[0], coords[1], coords[2], coords[3]), nil
}

func parseEmbedding(raw any) ([][]float64, error) {
	if e, ok := raw.([][]float64); ok {
		return cloneEmbedding(e), nil
	}
	rows, err := asList(raw)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	out := make([][]float64, 0, len(rows))
	for _, row := range rows {
		if fs, ok := row.([]float64); ok {
			out = append(out, append([]float64(nil), fs...))
			continue
		}
		items, err := asList(row)
		if err != nil {
			return nil, fmt.Errorf("embedding: %w", err)
		}
		vec := make([]float64, len(items))
		for i, item := range items {
			f, ok := ToFloat(item)
			if !ok {
				return nil, fmt.Errorf("%w: embedding value is not a number", ErrInvalidInput)
			}
			vec[i] = f
		}
		out = append(out, vec)
	}
	return out, nil
}

func asList(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case Tuple:
		return v, nil
	case []float64:
		out := make([]any, len(v))
		for i, f := range v {
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected a sequence, got %T", ErrInvalidInput, raw)
	}
}

// ToFloat converts a numeric value decoded from any wire format to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Serialize encodes a record into its binary wire form.
// Property value types, including Tuple, survive a round trip.
func Serialize(r Record) ([]byte, error) {
	var w wireRecord
	switch rec := r.(type) {
	case *Document:
		w.Fields = rec.ToMap()
	case *MetadataDocument:
		w.Metadata = true
		w.Fields = cloneProperties(rec.Metadata)
	default:
		return nil, fmt.Errorf("%w: unsupported record type %T", ErrInvalidInput, r)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&w); err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a record produced by Serialize.
func Deserialize(data []byte) (Record, error) {
	var w wireRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	if w.Metadata {
		return NewMetadataDocument(w.Fields), nil
	}
	if w.Fields == nil {
		w.Fields = map[string]any{}
	}
	return DocumentFromMap(w.Fields)
}
