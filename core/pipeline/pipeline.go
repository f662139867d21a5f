// Package pipeline turns raw document text into embedded chunks ready for the
// chunk store.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/docflow/core/ports"
	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/model"
)

// Pipeline combines chunking and embedding.
type Pipeline struct {
	Chunker     ChunkFunc
	Vectorizer  ports.Vectorizer
	PortTimeout time.Duration
}

// NewPipeline creates a new processing pipeline.
func NewPipeline(chunker ChunkFunc, vectorizer ports.Vectorizer, portTimeout time.Duration) *Pipeline {
	return &Pipeline{
		Chunker:     chunker,
		Vectorizer:  vectorizer,
		PortTimeout: portTimeout,
	}
}

// Process splits text into chunks and embeds each one. Chunk ids are derived
// from the document and chunk content, so reprocessing the same input yields
// the same chunks.
func (p *Pipeline) Process(ctx context.Context, documentRID uuid.UUID, collectionID string, text string) ([]*model.Chunk, error) {
	drafts, err := p.Chunker(text)
	if err != nil {
		return nil, helper.NewKindError("chunk text", helper.KindInvalidInput, err)
	}

	chunks := make([]*model.Chunk, 0, len(drafts))
	for _, draft := range drafts {
		embedding, err := ports.VectorizeWithTimeout(ctx, p.Vectorizer, draft.Content, p.PortTimeout)
		if err != nil {
			return nil, helper.NewError("embed chunk", err)
		}

		chunks = append(chunks, &model.Chunk{
			ID:           model.NewChunkID(documentRID, draft.Content),
			DocumentRID:  documentRID,
			CollectionID: collectionID,
			Content:      draft.Content,
			Anchor:       draft.Anchor,
			Embedding:    embedding,
			Metadata:     model.Metadata{},
		})
	}

	return chunks, nil
}
