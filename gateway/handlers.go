package gateway

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/siherrmann/docflow/core/rerank"
	"github.com/siherrmann/docflow/model"
)

// DetectLanguage handles POST /detect-language
func (s *Server) DetectLanguage(c *fiber.Ctx) error {
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := s.flow.DetectLanguage(c.Context(), req.Text)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(detectLanguageResponse{
		Language:   result.Label,
		Confidence: result.Confidence,
	})
}

// ClassifyIntent handles POST /classify-intent
func (s *Server) ClassifyIntent(c *fiber.Ctx) error {
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := s.flow.ClassifyIntent(c.Context(), req.Text)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(classifyIntentResponse{
		Intent:     result.Label,
		Confidence: result.Confidence,
	})
}

// Scan handles POST /scan
func (s *Server) Scan(c *fiber.Ctx) error {
	var req scanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	verdict, err := s.flow.ScanFile(c.Context(), model.FileRef{Name: req.Filename, SizeBytes: req.SizeBytes})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(scanResponse{
		Infected:  verdict.Infected,
		Engine:    verdict.Engine,
		Signature: verdict.Signature,
	})
}

// ChunkEmbed handles POST /chunk-embed
func (s *Server) ChunkEmbed(c *fiber.Ctx) error {
	var req chunkEmbedRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.CollectionID == "" {
		req.CollectionID = "default"
	}

	chunks, err := s.flow.ChunkEmbed(c.Context(), req.DocumentID, req.CollectionID, req.Text)
	if err != nil {
		return respondError(c, err)
	}

	resp := chunkEmbedResponse{Chunks: make([]embeddedChunk, len(chunks))}
	for i, chunk := range chunks {
		resp.Chunks[i] = embeddedChunk{ChunkID: chunk.ID, Embedding: chunk.Embedding}
	}
	if len(chunks) > 0 {
		resp.ChunkID = chunks[0].ID
		resp.Embedding = chunks[0].Embedding
	}

	return c.JSON(resp)
}

// Retrieve handles POST /retrieve
func (s *Server) Retrieve(c *fiber.Ctx) error {
	var req retrieveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	results, err := s.flow.Retrieve(c.Context(), req.Query, req.CollectionIDs, req.TopK)
	if err != nil {
		return respondError(c, err)
	}

	resp := retrieveResponse{Results: make([]retrievalResult, len(results))}
	for i, result := range results {
		resp.Results[i] = retrievalResult{
			ChunkID: result.ChunkID,
			Score:   result.Score,
			Anchor:  result.Anchor,
			URL:     result.SourceURI,
		}
	}

	return c.JSON(resp)
}

// Rerank handles POST /rerank
func (s *Server) Rerank(c *fiber.Ctx) error {
	var req rerankRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	var boosts []rerank.Signals
	if len(req.Boosts) > 0 {
		boosts = make([]rerank.Signals, len(req.Boosts))
		for i, boost := range req.Boosts {
			boosts[i] = rerank.Signals{CitationDensity: boost.CitationDensity, Recency: boost.Recency}
		}
	}

	ranked, err := s.flow.Rerank(c.Context(), req.Query, req.Candidates, boosts)
	if err != nil {
		return respondError(c, err)
	}

	resp := rerankResponse{Ranked: make([]rankedCandidate, len(ranked))}
	for i, candidate := range ranked {
		resp.Ranked[i] = rankedCandidate{
			Text:  candidate.Text,
			Score: candidate.Score,
			Index: candidate.Index,
		}
	}

	return c.JSON(resp)
}

// Citations handles POST /citations
func (s *Server) Citations(c *fiber.Ctx) error {
	var req citationsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	coverage, citations, err := s.flow.VerifyCitations(c.Context(), req.Text, req.ChunkIDs)
	if err != nil {
		return respondError(c, err)
	}

	resp := citationsResponse{
		Coverage:  coverage,
		Citations: make([]citationResult, len(citations)),
	}
	for i, citation := range citations {
		resp.Citations[i] = citationResult{
			DocumentID: citation.DocumentRID,
			AnchorText: citation.AnchorText,
			Confidence: citation.Confidence,
		}
	}

	return c.JSON(resp)
}

// CreateDocument handles POST /documents
func (s *Server) CreateDocument(c *fiber.Ctx) error {
	var req createDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	doc := &model.Document{
		RID:       uuid.New(),
		Title:     req.Title,
		SourceURI: req.SourceURI,
		Language:  req.Language,
		Metadata:  req.Metadata,
	}
	collectionID := req.CollectionID
	if collectionID == "" {
		collectionID = "default"
	}

	numChunks, err := s.flow.IngestDocument(c.Context(), doc, req.Content, collectionID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(createDocumentResponse{
		DocumentID: doc.RID,
		NumChunks:  numChunks,
	})
}

// Reprocess handles POST /dlq/reprocess
func (s *Server) Reprocess(c *fiber.Ctx) error {
	var req reprocessRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	reprocessed, err := s.flow.DLQ.Reprocess(c.Context(), req.Max)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(reprocessResponse{Reprocessed: reprocessed})
}

// Depth handles GET /dlq/depth
func (s *Server) Depth(c *fiber.Ctx) error {
	depth, err := s.flow.DLQ.Depth(c.Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(depthResponse{Depth: depth})
}

// Release handles POST /dlq/release
func (s *Server) Release(c *fiber.Ctx) error {
	var req releaseRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.JobRID == uuid.Nil {
		return badRequest(c, "job_rid is required")
	}

	if err := s.flow.DLQ.ReleaseQuarantined(c.Context(), req.JobRID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(healthResponse{OK: true})
}

// Jobs handles GET /dlq/jobs
func (s *Server) Jobs(c *fiber.Ctx) error {
	status := model.JobStatus(c.Query("status", string(model.JobStatusPending)))
	limit := c.QueryInt("limit", 50)

	jobs, err := s.flow.DLQ.Jobs(c.Context(), status, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(jobsResponse{Jobs: jobs})
}

// Live handles GET /health/live
func (s *Server) Live(c *fiber.Ctx) error {
	return c.JSON(healthResponse{OK: true})
}

// Ready handles GET /health/ready. Readiness requires a reachable chunk store.
func (s *Server) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), s.readyTimeout)
	defer cancel()

	if _, err := s.flow.Chunks.AllCollections(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(healthResponse{OK: false})
	}

	return c.JSON(healthResponse{OK: true})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorResponse{
		Kind:  "invalid_input",
		Error: message,
	})
}
