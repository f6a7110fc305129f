package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParamSets_Clone(t *testing.T) {
	p := ParamSets{"chunk": {"chunk_size": 100, "nested": map[string]any{"a": 1}}}

	c := p.Clone()
	c["chunk"]["chunk_size"] = 200
	c["chunk"]["nested"].(map[string]any)["a"] = 2

	assert.Equal(t, 100, p["chunk"]["chunk_size"])
	assert.Equal(t, 1, p["chunk"]["nested"].(map[string]any)["a"])
	assert.NotNil(t, ParamSets(nil).Clone())
}

func TestParamSets_Merge(t *testing.T) {
	base := ParamSets{
		DefaultParamSet: {"query": "base"},
		"chunk":         {"chunk_size": 100, "overlap": 10},
	}
	overlay := ParamSets{
		"chunk":      {"chunk_size": 400},
		"similarity": {"target_property": "score"},
	}

	merged := base.Merge(overlay)

	assert.Equal(t, ParamSets{
		DefaultParamSet: {"query": "base"},
		"chunk":         {"chunk_size": 400, "overlap": 10},
		"similarity":    {"target_property": "score"},
	}, merged)
	assert.Equal(t, 100, base["chunk"]["chunk_size"], "receiver is unchanged")

	merged["similarity"]["target_property"] = "other"
	assert.Equal(t, "score", overlay["similarity"]["target_property"], "overlay is copied")

	assert.Equal(t, base, base.Merge(nil))
	assert.Equal(t, overlay, ParamSets(nil).Merge(overlay))
}
