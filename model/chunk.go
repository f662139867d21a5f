package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// chunkNamespace is the UUID namespace for content-derived chunk ids.
var chunkNamespace = uuid.MustParse("7d9a4c7e-2c3b-4f3e-9f6a-1b8e5d0c2a41")

// Chunk represents a retrievable unit of document text plus its vector embedding.
// Chunks are immutable once stored; re-embedding the same document text yields
// the same id, which makes retried writes idempotent upserts.
type Chunk struct {
	ID           uuid.UUID `json:"id"`
	Seq          int64     `json:"seq"` // store-assigned insertion order
	DocumentRID  uuid.UUID `json:"document_rid"`
	CollectionID string    `json:"collection_id"`
	Content      string    `json:"content"`
	Anchor       string    `json:"anchor"` // position label within the document, e.g. "s3"
	Embedding    []float32 `json:"embedding,omitempty"`
	Metadata     Metadata  `json:"metadata,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	// Result fields, populated by similarity queries
	Similarity float64 `json:"similarity,omitempty"`
	SourceURI  string  `json:"source_uri,omitempty"`
}

// NewChunkID derives a deterministic chunk id from the owning document and the
// chunk text.
func NewChunkID(documentRID uuid.UUID, content string) uuid.UUID {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s\x00%s", documentRID, content)))
}
