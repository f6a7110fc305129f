package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadParams_TOML(t *testing.T) {
	path := writeFile(t, "params.toml", `
[default]
query = "cat"
chunk_size = 300

[similarity]
target_property = "score"
`)

	params, err := LoadParams(path)
	require.NoError(t, err)

	assert.Equal(t, "cat", params["default"]["query"])
	assert.Equal(t, int64(300), params["default"]["chunk_size"])
	assert.Equal(t, "score", params["similarity"]["target_property"])

	r := NewResolver(NewContext(WithParams(params)), nil)
	assert.Equal(t, 300, r.Int("chunk_size", Unset[int](), 0))
}

func TestLoadParams_YAML(t *testing.T) {
	path := writeFile(t, "params.yaml", `
default:
  query: cat
similarity:
  target_property: score
`)

	params, err := LoadParams(path)
	require.NoError(t, err)

	assert.Equal(t, "cat", params["default"]["query"])
	assert.Equal(t, "score", params["similarity"]["target_property"])
}

func TestLoadParams_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "unknown extension", file: "params.ini", content: "a=b"},
		{name: "malformed toml", file: "params.toml", content: "[default\nquery="},
		{name: "set is not a table", file: "params.yaml", content: "default: 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadParams(writeFile(t, tt.file, tt.content))
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestLoadParams_MissingFile(t *testing.T) {
	_, err := LoadParams(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
