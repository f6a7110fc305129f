package transforms

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-flow/internal/plan"
	"github.com/custodia-labs/sercha-flow/internal/session"
)

// BuilderFunc creates a transform operator from generic config.
// Config is a map of transform-specific settings parsed from a pipeline file.
type BuilderFunc func(ctx *session.Context, cfg map[string]any) (plan.Operator, error)

// Registry maps transform names to their builders.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates an empty transform registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register adds a transform builder, replacing any previous one.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates a transform by name with the given config.
func (r *Registry) Build(ctx *session.Context, name string, cfg map[string]any) (plan.Operator, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, domain.ConfigError("unknown transform: %s", name)
	}
	op, err := builder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build transform %s: %w", name, err)
	}
	return op, nil
}

// Has returns true if a transform with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns all registered transform names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterDefaults registers the built-in transforms. Similarity scoring
// uses scorer.
func RegisterDefaults(r *Registry, scorer driven.SimilarityScorer) {
	r.Register("chunk", buildChunk)
	r.Register("drop_metadata", func(*session.Context, map[string]any) (plan.Operator, error) {
		return DropMetadata{}, nil
	})
	r.Register("score_similarity", func(ctx *session.Context, cfg map[string]any) (plan.Operator, error) {
		return buildScoreSimilarity(ctx, cfg, scorer)
	})
	r.Register("rank_by_score", buildRankByScore)
	r.Register("set_property", buildSetProperty)
	r.Register("filter_property", buildFilterProperty)
}

// buildChunk supports chunk_size (int) and overlap (int). Missing keys fall
// back to the session context, then to the defaults.
func buildChunk(ctx *session.Context, cfg map[string]any) (plan.Operator, error) {
	var opts []ChunkOption
	if size, ok, err := intFromConfig(cfg, "chunk_size"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, WithChunkSize(size))
	}
	if overlap, ok, err := intFromConfig(cfg, "overlap"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, WithOverlap(overlap))
	}
	return NewChunk(ctx, opts...)
}

// buildScoreSimilarity supports query, target_property and ignore_doc_structure.
func buildScoreSimilarity(ctx *session.Context, cfg map[string]any, scorer driven.SimilarityScorer) (plan.Operator, error) {
	var opts []SimilarityOption
	if q, ok, err := stringFromConfig(cfg, "query"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, WithQuery(q))
	}
	if t, ok, err := stringFromConfig(cfg, "target_property"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, WithTargetProperty(t))
	}
	if v, ok := cfg["ignore_doc_structure"]; ok {
		b, isBool := v.(bool)
		if !isBool {
			return nil, domain.ConfigError("ignore_doc_structure must be a boolean, got %T", v)
		}
		opts = append(opts, WithIgnoreDocStructure(b))
	}
	return NewScoreSimilarity(ctx, scorer, opts...)
}

func buildRankByScore(_ *session.Context, cfg map[string]any) (plan.Operator, error) {
	target, _, err := stringFromConfig(cfg, "target_property")
	if err != nil {
		return nil, err
	}
	return NewRankByScore(target), nil
}

func buildSetProperty(_ *session.Context, cfg map[string]any) (plan.Operator, error) {
	key, ok, err := stringFromConfig(cfg, "key")
	if err != nil {
		return nil, err
	}
	if !ok || key == "" {
		return nil, domain.ConfigError("set_property requires a key")
	}
	return NewMap("set "+key, SetProperty(key, cfg["value"])), nil
}

func buildFilterProperty(_ *session.Context, cfg map[string]any) (plan.Operator, error) {
	key, ok, err := stringFromConfig(cfg, "key")
	if err != nil {
		return nil, err
	}
	if !ok || key == "" {
		return nil, domain.ConfigError("filter_property requires a key")
	}
	return NewFilter(key, PropertyEquals(key, cfg["value"])), nil
}

// intFromConfig extracts an int from a generic config map.
// Handles int, int64, and whole float64 values from TOML/YAML/JSON parsing.
func intFromConfig(cfg map[string]any, key string) (int, bool, error) {
	val, ok := cfg[key]
	if !ok {
		return 0, false, nil
	}
	switch v := val.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v == float64(int(v)) {
			return int(v), true, nil
		}
	}
	return 0, false, domain.ConfigError("%s must be an integer, got %v", key, val)
}

func stringFromConfig(cfg map[string]any, key string) (string, bool, error) {
	val, ok := cfg[key]
	if !ok {
		return "", false, nil
	}
	s, isString := val.(string)
	if !isString {
		return "", false, domain.ConfigError("%s must be a string, got %T", key, val)
	}
	return s, true, nil
}
