package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/docflow"
	"github.com/siherrmann/docflow/model"
)

const sampleContent = `This is a sample document about retrieval pipelines.

Retrieval pipelines chunk documents into retrievable units and embed each chunk into a vector space.
A query is embedded the same way and the most similar chunks are returned.

Reranking reorders the retrieved candidates by combining semantic similarity with boost signals.
Citation verification checks whether the claims of a generated answer are actually covered by the retrieved chunks.

Failed pipeline stages are dead-lettered and replayed later by the reprocessing engine.`

func main() {
	ctx := context.Background()

	// In-memory backend, no external services needed
	flow, err := docflow.NewMemoryDocflow(nil)
	if err != nil {
		log.Fatalf("Failed to create docflow: %v", err)
	}
	defer flow.Close()

	doc := &model.Document{
		Title:     "Introduction to Retrieval Pipelines",
		SourceURI: "https://example.com/retrieval-pipelines",
		Metadata: model.Metadata{
			"author": "Example Author",
			"topic":  "retrieval",
		},
	}

	fmt.Println("Ingesting document...")
	numChunks, err := flow.IngestDocument(ctx, doc, sampleContent, "examples")
	if err != nil {
		log.Fatalf("Failed to ingest document: %v", err)
	}
	fmt.Printf("Document inserted with ID: %s\n", doc.RID)
	fmt.Printf("Inserted %d chunks\n", numChunks)

	// Classify the query before retrieving
	query := "How does citation verification work?"
	intent, err := flow.ClassifyIntent(ctx, query)
	if err != nil {
		log.Fatalf("Failed to classify intent: %v", err)
	}
	fmt.Printf("\nQuery intent: %s (%.2f)\n", intent.Label, intent.Confidence)

	fmt.Printf("Querying: %s\n", query)
	results, err := flow.Retrieve(ctx, query, []string{"examples"}, 3)
	if err != nil {
		log.Fatalf("Failed to retrieve: %v", err)
	}
	for i, result := range results {
		fmt.Printf("%d. chunk=%s score=%.3f anchor=%s\n", i+1, result.ChunkID, result.Score, result.Anchor)
	}

	// Verify a generated answer against the retrieved chunks
	answer := "Citation verification checks whether the claims of a generated answer are covered by retrieved chunks."
	coverage, citations, err := flow.VerifyCitations(ctx, answer, nil)
	if err != nil {
		log.Fatalf("Failed to verify citations: %v", err)
	}
	fmt.Printf("\nCitation coverage: %.2f\n", coverage)
	for _, citation := range citations {
		fmt.Printf("- document=%s confidence=%.2f anchor=%q\n", citation.DocumentRID, citation.Confidence, citation.AnchorText)
	}

	// DLQ state after a clean run
	depth, err := flow.DLQ.Depth(ctx)
	if err != nil {
		log.Fatalf("Failed to read DLQ depth: %v", err)
	}
	fmt.Printf("\nDLQ depth: %d\n", depth)
}
