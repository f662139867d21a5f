// Package rerank reorders candidate texts by relevance to a query.
package rerank

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/siherrmann/docflow/core/ports"
	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/model"
)

// Signals are optional per-candidate boost inputs supplied by the caller.
// Zero values mean no boost.
type Signals struct {
	CitationDensity float64 `json:"citation_density,omitempty"`
	Recency         float64 `json:"recency,omitempty"`
}

// Reranker scores candidates by semantic similarity to the query plus
// weighted boost signals.
type Reranker struct {
	vectorizer  ports.Vectorizer
	config      model.RerankConfig
	portTimeout time.Duration
}

// NewReranker creates a new reranker.
func NewReranker(vectorizer ports.Vectorizer, config model.RerankConfig, portTimeout time.Duration) *Reranker {
	return &Reranker{
		vectorizer:  vectorizer,
		config:      config,
		portTimeout: portTimeout,
	}
}

// Rerank returns the candidates ordered by descending score. The sort is
// stable: equal scores keep their input order. Empty candidates yield an
// empty result, not an error. boosts may be nil or must match candidates in
// length.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []string, boosts []Signals) ([]*model.RerankedCandidate, error) {
	if len(candidates) == 0 {
		return []*model.RerankedCandidate{}, nil
	}
	if query == "" {
		return nil, helper.NewKindError("rerank", helper.KindInvalidInput, fmt.Errorf("query is empty"))
	}
	if boosts != nil && len(boosts) != len(candidates) {
		return nil, helper.NewKindError("rerank", helper.KindInvalidInput, fmt.Errorf("got %d boost signals for %d candidates", len(boosts), len(candidates)))
	}

	queryEmbedding, err := ports.VectorizeWithTimeout(ctx, r.vectorizer, query, r.portTimeout)
	if err != nil {
		return nil, helper.NewError("vectorize query", err)
	}

	ranked := make([]*model.RerankedCandidate, len(candidates))
	for i, text := range candidates {
		embedding, err := ports.VectorizeWithTimeout(ctx, r.vectorizer, text, r.portTimeout)
		if err != nil {
			return nil, helper.NewError("vectorize candidate", err)
		}

		score := r.config.SimilarityWeight * clamp01(CosineSimilarity(queryEmbedding, embedding))
		if boosts != nil {
			score += r.config.BoostWeight * clamp01(boosts[i].CitationDensity+boosts[i].Recency)
		}

		ranked[i] = &model.RerankedCandidate{
			Text:  text,
			Score: score,
			Index: i,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked, nil
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Mismatched or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
