// Package memory provides in-memory implementations of the chunk store and
// job store. They back the embedded mode and deterministic tests; postgres
// handlers in the database package provide the durable equivalents.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/docflow/core/rerank"
	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/model"
)

// ChunkStore is an in-memory chunk store using brute-force cosine similarity.
type ChunkStore struct {
	mu     sync.RWMutex
	chunks map[uuid.UUID]*model.Chunk
	order  []uuid.UUID
	seq    int64
}

// NewChunkStore creates an empty in-memory chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		chunks: make(map[uuid.UUID]*model.Chunk),
	}
}

// UpsertChunk inserts the chunk or replaces an existing one with the same id.
// Insertion order and creation time of an existing chunk are preserved, so
// retried writes stay idempotent.
func (s *ChunkStore) UpsertChunk(ctx context.Context, chunk *model.Chunk) error {
	if chunk == nil || chunk.ID == uuid.Nil {
		return helper.NewKindError("upsert chunk", helper.KindInvalidInput, fmt.Errorf("chunk id must be set"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneChunk(chunk)
	if existing, ok := s.chunks[chunk.ID]; ok {
		stored.Seq = existing.Seq
		stored.CreatedAt = existing.CreatedAt
	} else {
		s.seq++
		stored.Seq = s.seq
		stored.CreatedAt = time.Now()
		s.order = append(s.order, chunk.ID)
	}
	s.chunks[chunk.ID] = stored

	chunk.Seq = stored.Seq
	chunk.CreatedAt = stored.CreatedAt

	return nil
}

// SelectChunk returns the chunk with the given id.
func (s *ChunkStore) SelectChunk(ctx context.Context, id uuid.UUID) (*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunk, ok := s.chunks[id]
	if !ok {
		return nil, helper.NewKindError("select chunk", helper.KindStorage, fmt.Errorf("chunk %s not found", id))
	}
	return cloneChunk(chunk), nil
}

// SelectChunks returns the chunks with the given ids, skipping unknown ones.
func (s *ChunkStore) SelectChunks(ctx context.Context, ids []uuid.UUID) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := make([]*model.Chunk, 0, len(ids))
	for _, id := range ids {
		if chunk, ok := s.chunks[id]; ok {
			chunks = append(chunks, cloneChunk(chunk))
		}
	}
	return chunks, nil
}

// SelectSimilarChunks scans the collection and returns up to limit chunks
// ordered by descending cosine similarity, earliest insertion first on ties.
func (s *ChunkStore) SelectSimilarChunks(ctx context.Context, embedding []float32, collectionID string, limit int) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*model.Chunk
	for _, id := range s.order {
		chunk := s.chunks[id]
		if chunk.CollectionID != collectionID {
			continue
		}
		scored := cloneChunk(chunk)
		scored.Similarity = rerank.CosineSimilarity(embedding, chunk.Embedding)
		matches = append(matches, scored)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Seq < matches[j].Seq
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// AllCollections returns the distinct collection ids in insertion order.
func (s *ChunkStore) AllCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var collections []string
	for _, id := range s.order {
		collectionID := s.chunks[id].CollectionID
		if _, ok := seen[collectionID]; ok {
			continue
		}
		seen[collectionID] = struct{}{}
		collections = append(collections, collectionID)
	}
	return collections, nil
}

// ExistingCollections returns the subset of ids that hold at least one chunk.
func (s *ChunkStore) ExistingCollections(ctx context.Context, ids []string) ([]string, error) {
	all, err := s.AllCollections(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(all))
	for _, id := range all {
		known[id] = struct{}{}
	}

	var existing []string
	for _, id := range ids {
		if _, ok := known[id]; ok {
			existing = append(existing, id)
		}
	}
	return existing, nil
}

func cloneChunk(chunk *model.Chunk) *model.Chunk {
	clone := *chunk
	if chunk.Embedding != nil {
		clone.Embedding = make([]float32, len(chunk.Embedding))
		copy(clone.Embedding, chunk.Embedding)
	}
	return &clone
}
