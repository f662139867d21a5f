package dlq

import (
	"github.com/google/uuid"
)

// Payload types carry enough context to replay a pipeline stage without the
// original caller's request. They are stored as the job payload.

// ClassifyPayload replays a language or intent classification.
type ClassifyPayload struct {
	Text string `json:"text"`
	Mode string `json:"mode"` // "language" or "intent"
}

// ScanPayload replays a file scan.
type ScanPayload struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
}

// EmbedPayload replays a chunk-embed write.
type EmbedPayload struct {
	DocumentRID  uuid.UUID `json:"document_rid"`
	CollectionID string    `json:"collection_id"`
	Text         string    `json:"text"`
}

// RetrievePayload replays a retrieval query.
type RetrievePayload struct {
	Query         string   `json:"query"`
	CollectionIDs []string `json:"collection_ids,omitempty"`
	TopK          int      `json:"top_k"`
}

// RerankPayload replays a rerank call.
type RerankPayload struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
}

// CitePayload replays a citation verification.
type CitePayload struct {
	Text     string      `json:"text"`
	ChunkIDs []uuid.UUID `json:"chunk_ids,omitempty"`
}
