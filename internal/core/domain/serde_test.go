package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialize_DocumentRoundTrip(t *testing.T) {
	doc := &Document{
		DocID:                StringPtr("doc-1"),
		Type:                 StringPtr("pdf"),
		TextRepresentation:   StringPtr("text"),
		BinaryRepresentation: []byte{0, 1, 2},
		BBox:                 NewBoundingBox(0.1, 0.2, 0.3, 0.4),
		Embedding:            [][]float64{{0.5, 0.25}},
		ParentID:             StringPtr("parent"),
		Properties: map[string]any{
			"count":  42,
			"score":  0.75,
			"tags":   []any{"a", "b"},
			"pair":   Tuple{1, "x"},
			"nested": map[string]any{"ok": true},
		},
		Elements: []Element{{
			ID:                 "el-1",
			Type:               StringPtr("table"),
			TextRepresentation: StringPtr("cell"),
			Properties:         map[string]any{"page": 3},
		}},
	}

	data, err := Serialize(doc)
	require.NoError(t, err)

	got, err := Deserialize(data)
	require.NoError(t, err)
	out, ok := got.(*Document)
	require.True(t, ok)

	assert.Equal(t, doc, out)
	assert.IsType(t, Tuple{}, out.Properties["pair"], "tuple stays distinct from a list")
	assert.IsType(t, []any{}, out.Properties["tags"])
}

func TestSerialize_EmptyBinaryStaysPresent(t *testing.T) {
	doc := NewDocument()
	doc.BinaryRepresentation = []byte{}
	doc.Elements = []Element{{BinaryRepresentation: []byte{}}, {}}

	data, err := Serialize(doc)
	require.NoError(t, err)
	got, err := Deserialize(data)
	require.NoError(t, err)
	out := got.(*Document)

	require.NotNil(t, out.BinaryRepresentation)
	assert.Empty(t, out.BinaryRepresentation)
	require.NotNil(t, out.Elements[0].BinaryRepresentation)
	assert.Nil(t, out.Elements[1].BinaryRepresentation, "absent stays absent")

	clone := doc.Clone()
	assert.NotNil(t, clone.BinaryRepresentation)
}

func TestSerialize_MetadataRoundTrip(t *testing.T) {
	data, err := Serialize(NewMetadataDocument(map[string]any{"lineage": "scan"}))
	require.NoError(t, err)

	got, err := Deserialize(data)
	require.NoError(t, err)
	require.True(t, got.IsMetadata())
	assert.Equal(t, "scan", got.(*MetadataDocument).Metadata["lineage"])
}

func TestSerialize_Errors(t *testing.T) {
	_, err := Serialize(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Deserialize([]byte("not gob"))
	assert.Error(t, err)
}

func TestDocument_ToMapOmitsAbsentOptionals(t *testing.T) {
	m := NewDocument().ToMap()

	assert.Len(t, m, 2)
	assert.Contains(t, m, KeyProperties)
	assert.Contains(t, m, KeyElements)
}

func TestDocumentFromMap_JSONValues(t *testing.T) {
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"doc_id": 7,
		"text_representation": "hi",
		"bbox": [0, 0, 10, 20.5],
		"embedding": [[1, 2, 3]],
		"elements": [{"id": "e", "text_representation": "part", "properties": {"n": 1}}],
		"extra": "ignored"
	}`), &m))

	doc, err := DocumentFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, "7", doc.ID())
	assert.Equal(t, &BoundingBox{X1: 10, Y1: 20.5}, doc.BBox)
	assert.Equal(t, [][]float64{{1, 2, 3}}, doc.Embedding)
	require.Len(t, doc.Elements, 1)
	assert.Equal(t, "e", doc.Elements[0].ID)
	text, _ := doc.Elements[0].Text()
	assert.Equal(t, "part", text)
}

func TestDocumentFromMap_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
	}{
		{name: "doc_id type", in: map[string]any{KeyDocID: true}},
		{name: "properties type", in: map[string]any{KeyProperties: "x"}},
		{name: "elements type", in: map[string]any{KeyElements: "x"}},
		{name: "element type", in: map[string]any{KeyElements: []any{1}}},
		{name: "bbox length", in: map[string]any{KeyBBox: []any{1.0, 2.0}}},
		{name: "bbox value", in: map[string]any{KeyBBox: []any{1.0, 2.0, "x", 4.0}}},
		{name: "embedding value", in: map[string]any{KeyEmbedding: []any{[]any{"x"}}}},
		{name: "binary type", in: map[string]any{KeyBinaryRepresentation: 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DocumentFromMap(tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{in: 1.5, want: 1.5, ok: true},
		{in: float32(2), want: 2, ok: true},
		{in: 3, want: 3, ok: true},
		{in: int64(4), want: 4, ok: true},
		{in: json.Number("5.5"), want: 5.5, ok: true},
		{in: "6", ok: false},
		{in: nil, ok: false},
	}

	for _, tt := range tests {
		got, ok := ToFloat(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}
