package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
)

func TestLoadPipeline_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.toml")
	content := `
name = "papers"

[scan]
kind = "json"
paths = ["data/*.jsonl"]
parallelism = 2

[[transforms]]
name = "chunk"
config = { chunk_size = 400 }
resources = { cpus = 2.0, memory_mb = 256 }

[[transforms]]
name = "score_similarity"

[sink]
collection = "papers"
allowed_failures = 0
failure_log_policy = "always"
index = { kind = "sqlite", path = "out/index.db" }

[sink.settings.mappings]
dynamic = true

[params.similarity]
query = "cats"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	spec, err := LoadPipeline(path)
	require.NoError(t, err)

	assert.Equal(t, "papers", spec.Name)
	assert.Equal(t, []string{filepath.Join(dir, "data/*.jsonl")}, spec.Scan.Paths)
	assert.Equal(t, 2, spec.Scan.Parallelism)
	require.Len(t, spec.Transforms, 2)
	assert.Equal(t, int64(400), spec.Transforms[0].Config["chunk_size"])
	require.NotNil(t, spec.Transforms[0].Resources)
	assert.Equal(t, 2.0, spec.Transforms[0].Resources.CPUs)
	assert.Equal(t, 256, spec.Transforms[0].Resources.MemoryMB)

	require.NotNil(t, spec.Sink)
	require.NotNil(t, spec.Sink.AllowedFailures)
	assert.Equal(t, 0, *spec.Sink.AllowedFailures)
	assert.Equal(t, filepath.Join(dir, "out/index.db"), spec.Sink.Index.Path)
	assert.Equal(t, map[string]any{"dynamic": true}, spec.Sink.Settings["mappings"])
	assert.Equal(t, "cats", spec.Params["similarity"]["query"])
}

func TestLoadPipeline_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	content := `
scan:
  kind: binary
  format: pdf
  paths: [/abs/docs]
transforms:
  - name: drop_metadata
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	spec, err := LoadPipeline(path)
	require.NoError(t, err)
	assert.Equal(t, domain.ScanBinary, spec.Scan.Kind)
	assert.Equal(t, []string{"/abs/docs"}, spec.Scan.Paths)
	assert.Nil(t, spec.Sink)
}

func TestLoadPipeline_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "unknown extension", file: "p.json", content: "{}"},
		{name: "malformed toml", file: "p.toml", content: "scan = ["},
		{name: "unknown field", file: "p.yaml", content: "scan: {kind: json, paths: [a]}\nextra: 1\n"},
		{name: "unknown scan kind", file: "p.yaml", content: "scan: {kind: csv, paths: [a]}\n"},
		{name: "binary without format", file: "p.yaml", content: "scan: {kind: binary, paths: [a]}\n"},
		{name: "no paths", file: "p.yaml", content: "scan: {kind: json}\n"},
		{name: "sink without collection", file: "p.yaml", content: "scan: {kind: json, paths: [a]}\nsink: {failure_log: x}\n"},
		{name: "bad policy", file: "p.yaml", content: "scan: {kind: json, paths: [a]}\nsink: {collection: c, failure_log_policy: never}\n"},
		{name: "unnamed transform", file: "p.yaml", content: "scan: {kind: json, paths: [a]}\ntransforms: [{config: {}}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			_, err := LoadPipeline(path)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}

	_, err := LoadPipeline(filepath.Join(dir, "missing.toml"))
	assert.True(t, os.IsNotExist(err))
}
