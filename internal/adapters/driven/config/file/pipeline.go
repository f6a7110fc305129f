package file

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
)

// LoadPipeline reads a pipeline file in TOML (.toml) or YAML (.yaml, .yml)
// and validates it. Relative scan paths are resolved against the file's
// directory.
func LoadPipeline(path string) (*domain.PipelineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var spec domain.PipelineSpec
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, domain.ConfigError("parse pipeline %s: %v", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return nil, domain.ConfigError("parse pipeline %s: %v", path, err)
		}
	default:
		return nil, domain.ConfigError("unsupported pipeline file extension %q", ext)
	}

	base := filepath.Dir(path)
	for i, p := range spec.Scan.Paths {
		if !filepath.IsAbs(p) {
			spec.Scan.Paths[i] = filepath.Join(base, p)
		}
	}
	if spec.Sink != nil && spec.Sink.Index.Path != "" && !filepath.IsAbs(spec.Sink.Index.Path) {
		spec.Sink.Index.Path = filepath.Join(base, spec.Sink.Index.Path)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}
