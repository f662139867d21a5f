// Package retrieval implements top-k vector retrieval across chunk
// collections with deterministic ordering.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/docflow/core/ports"
	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/model"
)

// ErrInvalidQuery is returned for a non-positive top_k or empty query.
var ErrInvalidQuery = fmt.Errorf("invalid query")

// ErrNoCollections is returned when none of the requested collections exist.
// Callers can distinguish "no data" from "no match".
var ErrNoCollections = fmt.Errorf("no matching collections")

// ChunkStore persists chunks and serves per-collection similarity candidates.
type ChunkStore interface {
	UpsertChunk(ctx context.Context, chunk *model.Chunk) error
	SelectChunk(ctx context.Context, id uuid.UUID) (*model.Chunk, error)
	SelectChunks(ctx context.Context, ids []uuid.UUID) ([]*model.Chunk, error)
	// SelectSimilarChunks returns up to limit chunks of one collection ordered
	// by descending cosine similarity to the embedding, with Similarity set.
	SelectSimilarChunks(ctx context.Context, embedding []float32, collectionID string, limit int) ([]*model.Chunk, error)
	AllCollections(ctx context.Context) ([]string, error)
	ExistingCollections(ctx context.Context, ids []string) ([]string, error)
}

// Engine merges per-collection similarity candidates into a bounded top-k
// result set.
type Engine struct {
	store       ChunkStore
	vectorizer  ports.Vectorizer
	config      model.RetrievalConfig
	portTimeout time.Duration
}

// NewEngine creates a new retrieval engine.
func NewEngine(store ChunkStore, vectorizer ports.Vectorizer, config model.RetrievalConfig, portTimeout time.Duration) *Engine {
	return &Engine{
		store:       store,
		vectorizer:  vectorizer,
		config:      config,
		portTimeout: portTimeout,
	}
}

// Retrieve vectorizes the query and returns at most topK results ordered by
// non-increasing score. Score ties are broken by earliest chunk insertion
// order. An empty collectionIDs set queries all collections.
func (e *Engine) Retrieve(ctx context.Context, query string, collectionIDs []string, topK int) ([]*model.RetrievalResult, error) {
	if topK <= 0 {
		return nil, helper.NewKindError("retrieve", helper.KindInvalidInput, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidQuery, topK))
	}
	if query == "" {
		return nil, helper.NewKindError("retrieve", helper.KindInvalidInput, fmt.Errorf("%w: query is empty", ErrInvalidQuery))
	}

	collections, err := e.resolveCollections(ctx, collectionIDs)
	if err != nil {
		return nil, err
	}

	embedding, err := ports.VectorizeWithTimeout(ctx, e.vectorizer, query, e.portTimeout)
	if err != nil {
		return nil, helper.NewError("vectorize query", err)
	}

	// Per-collection candidate lists are merged through a bounded heap of size
	// topK, so the full candidate set is never materialized.
	candidateLimit := topK * e.config.CandidateFactor
	if candidateLimit < topK {
		candidateLimit = topK
	}

	h := newBoundedHeap(topK)
	for _, collectionID := range collections {
		chunks, err := e.store.SelectSimilarChunks(ctx, embedding, collectionID, candidateLimit)
		if err != nil {
			return nil, helper.NewKindError("select similar chunks", helper.KindStorage, err)
		}
		for _, chunk := range chunks {
			h.Offer(candidate{chunk: chunk, score: clampScore(chunk.Similarity)})
		}
	}

	ranked := h.Drain()
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].chunk.Seq < ranked[j].chunk.Seq
	})

	results := make([]*model.RetrievalResult, len(ranked))
	for i, c := range ranked {
		results[i] = &model.RetrievalResult{
			ChunkID:   c.chunk.ID,
			Score:     c.score,
			Anchor:    c.chunk.Anchor,
			SourceURI: c.chunk.SourceURI,
		}
	}

	return results, nil
}

// resolveCollections expands an empty request to all collections and rejects
// requests where none of the named collections exist.
func (e *Engine) resolveCollections(ctx context.Context, collectionIDs []string) ([]string, error) {
	if len(collectionIDs) == 0 {
		all, err := e.store.AllCollections(ctx)
		if err != nil {
			return nil, helper.NewKindError("list collections", helper.KindStorage, err)
		}
		return all, nil
	}

	existing, err := e.store.ExistingCollections(ctx, collectionIDs)
	if err != nil {
		return nil, helper.NewKindError("check collections", helper.KindStorage, err)
	}
	if len(existing) == 0 {
		return nil, helper.NewKindError("retrieve", helper.KindInvalidInput, fmt.Errorf("%w: %v", ErrNoCollections, collectionIDs))
	}

	return existing, nil
}

// clampScore maps a cosine similarity into [0,1].
func clampScore(similarity float64) float64 {
	if similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}
