package tfidf

import (
	"context"
	"errors"
	"math"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driven"
)

// Ensure Scorer implements the interface.
var _ driven.SimilarityScorer = (*Scorer)(nil)

// SourceElementSuffix is appended to the target property to record the id of
// the best scoring element.
const SourceElementSuffix = "_source_element_id"

// Scorer ranks documents by TF-IDF cosine similarity with the query.
// The vocabulary is built per call from the query and every scored text.
type Scorer struct {
	stopwords map[string]struct{}
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithStopwords replaces the default stopword set.
func WithStopwords(words ...string) Option {
	return func(s *Scorer) {
		s.stopwords = make(map[string]struct{}, len(words))
		for _, w := range words {
			s.stopwords[w] = struct{}{}
		}
	}
}

// NewScorer creates a scorer.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{stopwords: DefaultStopwords()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the scorer name.
func (s *Scorer) Name() string { return "tfidf" }

// Score returns scored copies of docs.
func (s *Scorer) Score(ctx context.Context, docs []*domain.Document, query, target string, perElement bool) ([]*domain.Document, error) {
	corpus := []string{query}
	for _, doc := range docs {
		if perElement {
			for i := range doc.Elements {
				if text, ok := doc.Elements[i].Text(); ok {
					corpus = append(corpus, text)
				}
			}
			continue
		}
		if text, ok := doc.Text(); ok {
			corpus = append(corpus, text)
		}
	}

	emb := NewEmbedder(s.stopwords)
	score := func(string) float64 { return 0 }
	switch err := emb.Prepare(corpus); {
	case err == nil:
		q := emb.Embed(query)
		score = func(text string) float64 { return cosine(q, emb.Embed(text)) }
	case errors.Is(err, ErrNoTokens):
		// Nothing to compare: every text scores zero.
	default:
		return nil, err
	}

	out := make([]*domain.Document, len(docs))
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scored := doc.Clone()
		if perElement {
			best, id := math.Inf(-1), any(nil)
			for j := range scored.Elements {
				text, ok := scored.Elements[j].Text()
				if !ok {
					continue
				}
				if v := score(text); v > best {
					best, id = v, scored.Elements[j].ID
				}
			}
			scored.SetProperty(target, best)
			if id != nil {
				scored.SetProperty(target+SourceElementSuffix, id)
			}
		} else {
			v := math.Inf(-1)
			if text, ok := scored.Text(); ok {
				v = score(text)
			}
			scored.SetProperty(target, v)
		}
		out[i] = scored
	}
	return out, nil
}
