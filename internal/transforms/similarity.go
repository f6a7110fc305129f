package transforms

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-flow/internal/dataset"
	"github.com/custodia-labs/sercha-flow/internal/plan"
	"github.com/custodia-labs/sercha-flow/internal/session"
)

// SimilarityParamSet is the parameter set consulted for similarity arguments.
const SimilarityParamSet = "similarity"

// DefaultSimilarityTarget is the property receiving the score by default.
const DefaultSimilarityTarget = "_similarity_score"

// Ensure operators implement the interfaces.
var (
	_ plan.Operator      = (*ScoreSimilarity)(nil)
	_ session.HasContext = (*ScoreSimilarity)(nil)
	_ plan.Operator      = (*RankByScore)(nil)
)

// ScoreSimilarity scores every document of a partition against a query.
type ScoreSimilarity struct {
	ctx                *session.Context
	scorer             driven.SimilarityScorer
	query              session.Arg[string]
	target             session.Arg[string]
	ignoreDocStructure session.Arg[bool]
}

// SimilarityOption configures a ScoreSimilarity operator.
type SimilarityOption func(*ScoreSimilarity)

// WithQuery sets the query text.
func WithQuery(query string) SimilarityOption {
	return func(s *ScoreSimilarity) {
		s.query = session.Set(query)
	}
}

// WithTargetProperty sets the property that receives the score.
func WithTargetProperty(name string) SimilarityOption {
	return func(s *ScoreSimilarity) {
		s.target = session.Set(name)
	}
}

// WithIgnoreDocStructure scores document text instead of elements.
func WithIgnoreDocStructure(ignore bool) SimilarityOption {
	return func(s *ScoreSimilarity) {
		s.ignoreDocStructure = session.Set(ignore)
	}
}

// NewScoreSimilarity creates a similarity operator. Unset options are
// resolved from ctx under the "similarity" parameter set.
func NewScoreSimilarity(ctx *session.Context, scorer driven.SimilarityScorer, opts ...SimilarityOption) (*ScoreSimilarity, error) {
	if scorer == nil {
		return nil, domain.ConfigError("similarity scorer is required")
	}
	s := &ScoreSimilarity{ctx: ctx, scorer: scorer}
	for _, opt := range opts {
		opt(s)
	}
	if _, _, _, err := s.args(); err != nil {
		return nil, err
	}
	return s, nil
}

// Context implements session.HasContext.
func (s *ScoreSimilarity) Context() *session.Context { return s.ctx }

// args resolves query, target property and scoring mode.
func (s *ScoreSimilarity) args() (string, string, bool, error) {
	r := session.NewResolver(nil, s, SimilarityParamSet)
	query := r.String("query", s.query, "")
	if query == "" {
		return "", "", false, domain.ConfigError("similarity query is required")
	}
	target := r.String("target_property", s.target, DefaultSimilarityTarget)
	if target == "" {
		return "", "", false, domain.ConfigError("similarity target property must not be empty")
	}
	perElement := !r.Bool("ignore_doc_structure", s.ignoreDocStructure, false)
	return query, target, perElement, nil
}

// Execute wraps the input.
func (s *ScoreSimilarity) Execute(_ context.Context, _ dataset.Runner, inputs []dataset.Dataset) (dataset.Dataset, error) {
	in, err := single("score similarity", inputs)
	if err != nil {
		return nil, err
	}
	query, target, perElement, err := s.args()
	if err != nil {
		return nil, err
	}
	return in.MapBatch(func(ctx context.Context, docs []*domain.Document) ([]*domain.Document, error) {
		if len(docs) == 0 {
			return docs, nil
		}
		out, err := s.scorer.Score(ctx, docs, query, target, perElement)
		if err != nil {
			return nil, fmt.Errorf("score with %s: %w", s.scorer.Name(), err)
		}
		return out, nil
	}), nil
}

// Describe returns the explain label.
func (s *ScoreSimilarity) Describe() string {
	query, target, perElement, err := s.args()
	if err != nil {
		return "score_similarity (invalid)"
	}
	mode := "elements"
	if !perElement {
		mode = "documents"
	}
	return fmt.Sprintf("score_similarity %s %q -> %s (%s)", s.scorer.Name(), query, target, mode)
}

// RankByScore sorts each partition by a numeric property, highest first.
// Documents without a numeric score sort last; ties keep their order.
type RankByScore struct {
	target string
}

// NewRankByScore creates a ranking operator over the target property.
func NewRankByScore(target string) *RankByScore {
	if target == "" {
		target = DefaultSimilarityTarget
	}
	return &RankByScore{target: target}
}

// Execute wraps the input.
func (r *RankByScore) Execute(_ context.Context, _ dataset.Runner, inputs []dataset.Dataset) (dataset.Dataset, error) {
	in, err := single("rank", inputs)
	if err != nil {
		return nil, err
	}
	return in.MapBatch(func(_ context.Context, docs []*domain.Document) ([]*domain.Document, error) {
		return Rank(docs, r.target), nil
	}), nil
}

// Describe returns the explain label.
func (r *RankByScore) Describe() string { return "rank_by " + r.target }

// Rank returns docs stably sorted by the target score, highest first.
func Rank(docs []*domain.Document, target string) []*domain.Document {
	out := append([]*domain.Document(nil), docs...)
	keys := make(map[*domain.Document]float64, len(out))
	for _, d := range out {
		keys[d] = scoreOf(d, target)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return keys[out[i]] > keys[out[j]]
	})
	return out
}

func scoreOf(d *domain.Document, target string) float64 {
	v, ok := d.Property(target)
	if !ok {
		return math.Inf(-1)
	}
	f, ok := domain.ToFloat(v)
	if !ok || math.IsNaN(f) {
		return math.Inf(-1)
	}
	return f
}
