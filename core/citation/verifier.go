// Package citation verifies that generated text is grounded in a set of
// chunks and emits per-claim citations.
package citation

import (
	"context"
	"strings"
	"time"

	"github.com/siherrmann/docflow/core/pipeline"
	"github.com/siherrmann/docflow/core/ports"
	"github.com/siherrmann/docflow/core/rerank"
	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/model"
)

// Verifier computes citation coverage of a text against grounding chunks.
type Verifier struct {
	vectorizer  ports.Vectorizer
	config      model.CitationConfig
	portTimeout time.Duration
}

// NewVerifier creates a new citation verifier.
func NewVerifier(vectorizer ports.Vectorizer, config model.CitationConfig, portTimeout time.Duration) *Verifier {
	return &Verifier{
		vectorizer:  vectorizer,
		config:      config,
		portTimeout: portTimeout,
	}
}

// Verify splits text into sentence-level claims, matches each claim to the
// grounding chunk with the highest overlap and counts claims covered when the
// overlap reaches the configured threshold. Coverage is covered/total claims,
// 0 for a text without claims. Deterministic for a fixed chunk set and
// threshold.
func (v *Verifier) Verify(ctx context.Context, text string, chunks []*model.Chunk) (float64, []*model.Citation, error) {
	claims := pipeline.SplitSentences(text)
	if len(claims) == 0 {
		return 0, []*model.Citation{}, nil
	}
	if len(chunks) == 0 {
		return 0, []*model.Citation{}, nil
	}

	embeddings, err := v.chunkEmbeddings(ctx, chunks)
	if err != nil {
		return 0, nil, err
	}

	covered := 0
	citations := make([]*model.Citation, 0, len(claims))
	for _, claim := range claims {
		claimEmbedding, err := ports.VectorizeWithTimeout(ctx, v.vectorizer, claim, v.portTimeout)
		if err != nil {
			return 0, nil, helper.NewError("vectorize claim", err)
		}

		bestIndex, bestOverlap := -1, 0.0
		for i, embedding := range embeddings {
			overlap := rerank.CosineSimilarity(claimEmbedding, embedding)
			if overlap < 0 {
				overlap = 0
			}
			if bestIndex < 0 || overlap > bestOverlap {
				bestIndex, bestOverlap = i, overlap
			}
		}

		if bestOverlap < v.config.OverlapThreshold {
			continue
		}

		covered++
		best := chunks[bestIndex]
		citations = append(citations, &model.Citation{
			DocumentRID: best.DocumentRID,
			AnchorText:  anchorText(best),
			Confidence:  bestOverlap,
		})
	}

	return float64(covered) / float64(len(claims)), citations, nil
}

// chunkEmbeddings returns the stored embedding per chunk, vectorizing chunk
// content where the caller passed none.
func (v *Verifier) chunkEmbeddings(ctx context.Context, chunks []*model.Chunk) ([][]float32, error) {
	embeddings := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		if len(chunk.Embedding) > 0 {
			embeddings[i] = chunk.Embedding
			continue
		}
		embedding, err := ports.VectorizeWithTimeout(ctx, v.vectorizer, chunk.Content, v.portTimeout)
		if err != nil {
			return nil, helper.NewError("vectorize chunk", err)
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// anchorText prefers the chunk anchor and falls back to a content snippet.
func anchorText(chunk *model.Chunk) string {
	if chunk.Anchor != "" {
		return chunk.Anchor
	}
	content := strings.TrimSpace(chunk.Content)
	if len(content) > 80 {
		return content[:80]
	}
	return content
}
