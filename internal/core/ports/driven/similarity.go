package driven

import (
	"context"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
)

// SimilarityScorer scores documents against a query.
//
// In aggregate mode each document's text is scored and the score stored
// under targetProperty. In per-element mode every element is scored; the
// document receives the highest element score under targetProperty and that
// element's id under targetProperty + "_source_element_id". Missing text
// scores math.Inf(-1). Input documents are not modified.
type SimilarityScorer interface {
	// Name returns the scorer name.
	Name() string

	// Score returns scored copies of docs, in input order.
	Score(ctx context.Context, docs []*domain.Document, query, targetProperty string, perElement bool) ([]*domain.Document, error)
}
