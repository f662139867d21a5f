package model

import "github.com/google/uuid"

// RetrievalResult represents a chunk retrieved for a query.
type RetrievalResult struct {
	ChunkID   uuid.UUID `json:"chunk_id"`
	Score     float64   `json:"score"` // cosine similarity clamped into [0,1]
	Anchor    string    `json:"anchor"`
	SourceURI string    `json:"source_uri,omitempty"`
}

// RerankedCandidate represents a candidate text with its rerank score.
// Index is the position in the caller's input, used for stable tie-breaks.
type RerankedCandidate struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	Index int     `json:"index"`
}

// Citation links a claim in generated text back to a grounding chunk.
type Citation struct {
	DocumentRID uuid.UUID `json:"document_rid"`
	AnchorText  string    `json:"anchor_text"`
	Confidence  float64   `json:"confidence"`
}

// Classification is a label with its confidence, returned by classifier ports.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// FileRef describes a file handed to the scanner port.
type FileRef struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
}

// ScanVerdict is the result of a malware scan.
type ScanVerdict struct {
	Infected  bool   `json:"infected"`
	Engine    string `json:"engine"`
	Signature string `json:"signature,omitempty"`
}
