package gateway

import (
	"github.com/google/uuid"
	"github.com/siherrmann/docflow/model"
)

// Request and response shapes of the gateway endpoints.

type textRequest struct {
	Text string `json:"text"`
}

type detectLanguageResponse struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

type classifyIntentResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

type scanRequest struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
}

type scanResponse struct {
	Infected  bool   `json:"infected"`
	Engine    string `json:"engine"`
	Signature string `json:"signature,omitempty"`
}

type chunkEmbedRequest struct {
	DocumentID   uuid.UUID `json:"document_id"`
	CollectionID string    `json:"collection_id"`
	Text         string    `json:"text"`
}

type embeddedChunk struct {
	ChunkID   uuid.UUID `json:"chunk_id"`
	Embedding []float32 `json:"embedding"`
}

// chunkEmbedResponse reports the first chunk at the top level and the full
// set under chunks, one text may chunk into several.
type chunkEmbedResponse struct {
	ChunkID   uuid.UUID       `json:"chunk_id"`
	Embedding []float32       `json:"embedding"`
	Chunks    []embeddedChunk `json:"chunks"`
}

type retrieveRequest struct {
	Query         string   `json:"query"`
	CollectionIDs []string `json:"collection_ids"`
	TopK          int      `json:"top_k"`
}

type retrievalResult struct {
	ChunkID uuid.UUID `json:"chunk_id"`
	Score   float64   `json:"score"`
	Anchor  string    `json:"anchor,omitempty"`
	URL     string    `json:"url,omitempty"`
}

type retrieveResponse struct {
	Results []retrievalResult `json:"results"`
}

type rerankBoost struct {
	CitationDensity float64 `json:"citation_density"`
	Recency         float64 `json:"recency"`
}

type rerankRequest struct {
	Query      string        `json:"query"`
	Candidates []string      `json:"candidates"`
	Boosts     []rerankBoost `json:"boosts,omitempty"`
}

type rankedCandidate struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	Index int     `json:"index"`
}

type rerankResponse struct {
	Ranked []rankedCandidate `json:"ranked"`
}

type citationsRequest struct {
	Text     string      `json:"text"`
	ChunkIDs []uuid.UUID `json:"chunk_ids,omitempty"`
}

type citationResult struct {
	DocumentID uuid.UUID `json:"documentId"`
	AnchorText string    `json:"anchorText"`
	Confidence float64   `json:"confidence"`
}

type citationsResponse struct {
	Coverage  float64          `json:"coverage"`
	Citations []citationResult `json:"citations"`
}

type createDocumentRequest struct {
	Title        string         `json:"title"`
	SourceURI    string         `json:"source_url"`
	Language     string         `json:"language,omitempty"`
	CollectionID string         `json:"collection_id"`
	Content      string         `json:"content"`
	Metadata     model.Metadata `json:"metadata,omitempty"`
}

type createDocumentResponse struct {
	DocumentID uuid.UUID `json:"document_id"`
	NumChunks  int       `json:"num_chunks"`
}

type reprocessRequest struct {
	Max int `json:"max"`
}

type reprocessResponse struct {
	Reprocessed int `json:"reprocessed"`
}

type depthResponse struct {
	Depth int `json:"depth"`
}

type releaseRequest struct {
	JobRID uuid.UUID `json:"job_rid"`
}

type jobsResponse struct {
	Jobs []*model.Job `json:"jobs"`
}

type healthResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}
