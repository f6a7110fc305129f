package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
)

// LoadParams reads parameter sets from a TOML or YAML file.
// Every top-level key names a parameter set and must hold a table.
//
//	[default]
//	query = "cat"
//
//	[similarity]
//	target_property = "score"
func LoadParams(path string) (domain.ParamSets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read params file: %w", err)
	}

	var raw map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, domain.ConfigError("unsupported params file extension %q", ext)
	}
	if err != nil {
		return nil, domain.ConfigError("parse params file %s: %v", path, err)
	}

	params := make(domain.ParamSets, len(raw))
	for key, value := range raw {
		set, ok := value.(map[string]any)
		if !ok {
			return nil, domain.ConfigError("parameter set %q must be a table, got %T", key, value)
		}
		params[key] = set
	}
	return params, nil
}
