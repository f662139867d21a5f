package docflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/docflow/core/retrieval"
	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyClassifier fails with a transient port error until healed.
type flakyClassifier struct {
	healthy atomic.Bool
	calls   atomic.Int32
}

func (f *flakyClassifier) Classify(ctx context.Context, text string) (model.Classification, error) {
	f.calls.Add(1)
	if !f.healthy.Load() {
		return model.Classification{}, helper.NewKindError("classify", helper.KindPortUnavailable, fmt.Errorf("port down"))
	}
	return model.Classification{Label: "en", Confidence: 0.9}, nil
}

func newTestFlow(t *testing.T, options *Options) *Docflow {
	t.Helper()
	if options == nil {
		options = &Options{}
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	flow, err := NewMemoryDocflow(options)
	require.NoError(t, err, "Expected NewMemoryDocflow to not return an error")
	t.Cleanup(func() { flow.Close() })
	return flow
}

func ingest(t *testing.T, flow *Docflow, collectionID string, content string) *model.Document {
	t.Helper()
	doc := &model.Document{
		Title:     "Test Document",
		SourceURI: "https://example.com/doc",
	}
	numChunks, err := flow.IngestDocument(context.Background(), doc, content, collectionID)
	require.NoError(t, err)
	require.Greater(t, numChunks, 0, "Expected at least one chunk from ingest")
	return doc
}

func TestNewMemoryDocflow(t *testing.T) {
	t.Run("Defaults are populated", func(t *testing.T) {
		flow := newTestFlow(t, nil)
		assert.NotNil(t, flow.Vectorizer)
		assert.NotNil(t, flow.Language)
		assert.NotNil(t, flow.Intent)
		assert.NotNil(t, flow.Scanner)
		assert.NotNil(t, flow.Pipeline)
		assert.NotNil(t, flow.Retrieval)
		assert.NotNil(t, flow.Reranker)
		assert.NotNil(t, flow.Citations)
		assert.NotNil(t, flow.DLQ)
		assert.Nil(t, flow.DB, "Expected no database in memory mode")
	})
}

func TestDetectLanguage(t *testing.T) {
	flow := newTestFlow(t, nil)
	ctx := context.Background()

	t.Run("English text", func(t *testing.T) {
		result, err := flow.DetectLanguage(ctx, "The quick brown fox jumps over the lazy dog and the weather is good.")
		require.NoError(t, err)
		assert.Equal(t, "en", result.Label)
	})

	t.Run("Empty text returns invalid input", func(t *testing.T) {
		_, err := flow.DetectLanguage(ctx, "")
		require.Error(t, err)
		assert.Equal(t, helper.KindInvalidInput, helper.KindOf(err))
	})
}

func TestScanFile(t *testing.T) {
	flow := newTestFlow(t, nil)
	ctx := context.Background()

	t.Run("Clean file", func(t *testing.T) {
		verdict, err := flow.ScanFile(ctx, model.FileRef{Name: "report.pdf", SizeBytes: 2048})
		require.NoError(t, err)
		assert.False(t, verdict.Infected)
	})

	t.Run("Empty file name returns invalid input", func(t *testing.T) {
		_, err := flow.ScanFile(ctx, model.FileRef{})
		require.Error(t, err)
		assert.Equal(t, helper.KindInvalidInput, helper.KindOf(err))
	})
}

func TestIngestAndRetrieve(t *testing.T) {
	flow := newTestFlow(t, nil)
	ctx := context.Background()
	ingest(t, flow, "contracts", "The contract covers payment terms. Delivery happens within thirty days. Disputes go to arbitration. Nothing else applies.")

	t.Run("Retrieve returns scored chunks", func(t *testing.T) {
		results, err := flow.Retrieve(ctx, "payment terms of the contract", []string{"contracts"}, 2)
		require.NoError(t, err)
		require.NotEmpty(t, results, "Expected retrieval results")
		assert.LessOrEqual(t, len(results), 2)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score, "Expected non-increasing scores")
		}
		assert.Equal(t, "https://example.com/doc", results[0].SourceURI, "Expected the source URI of the parent document")
	})

	t.Run("Unknown collection returns no collections error", func(t *testing.T) {
		_, err := flow.Retrieve(ctx, "anything", []string{"missing"}, 2)
		require.Error(t, err)
		assert.True(t, errors.Is(err, retrieval.ErrNoCollections), "Expected ErrNoCollections")
	})

	t.Run("Ingest with empty content returns invalid input", func(t *testing.T) {
		_, err := flow.IngestDocument(ctx, &model.Document{Title: "Empty"}, "", "contracts")
		require.Error(t, err)
		assert.Equal(t, helper.KindInvalidInput, helper.KindOf(err))
	})
}

func TestChunkEmbedIdempotent(t *testing.T) {
	flow := newTestFlow(t, nil)
	ctx := context.Background()
	doc := ingest(t, flow, "docs", "Intro sentence for the document.")

	content := "First sentence about contracts. Second sentence about clauses. Third sentence about law. Fourth one closes."

	first, err := flow.ChunkEmbed(ctx, doc.RID, "docs", content)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := flow.ChunkEmbed(ctx, doc.RID, "docs", content)
	require.NoError(t, err)
	require.Len(t, second, len(first), "Expected the retried call to produce the same chunks")

	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "Expected content-derived chunk ids to be stable")
		assert.Equal(t, first[i].Seq, second[i].Seq, "Expected seq to survive the retried upsert")
	}

	t.Run("Unknown document returns an error", func(t *testing.T) {
		_, err := flow.ChunkEmbed(ctx, uuid.New(), "docs", content)
		assert.Error(t, err)
	})
}

func TestVerifyCitationsFlow(t *testing.T) {
	flow := newTestFlow(t, nil)
	ctx := context.Background()
	ingest(t, flow, "contracts", "The contract covers payment terms. Delivery happens within thirty days.")

	t.Run("Empty text has zero coverage", func(t *testing.T) {
		coverage, citations, err := flow.VerifyCitations(ctx, "", nil)
		require.NoError(t, err)
		assert.Zero(t, coverage)
		assert.Empty(t, citations)
	})

	t.Run("Supported claim without explicit chunks", func(t *testing.T) {
		coverage, citations, err := flow.VerifyCitations(ctx, "The contract covers payment terms.", nil)
		require.NoError(t, err)
		assert.Greater(t, coverage, 0.0, "Expected the claim to be covered by retrieved chunks")
		require.NotEmpty(t, citations, "Expected a citation for the covered claim")
		assert.NotEmpty(t, citations[0].AnchorText)
	})
}

func TestDeadLettering(t *testing.T) {
	ctx := context.Background()

	t.Run("Transient port failure dead-letters the stage", func(t *testing.T) {
		classifier := &flakyClassifier{}
		flow := newTestFlow(t, &Options{Language: classifier})

		_, err := flow.DetectLanguage(ctx, "some text to classify")
		require.Error(t, err)
		assert.Equal(t, helper.KindPortUnavailable, helper.KindOf(err))

		depth, err := flow.DLQ.Depth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, depth, "Expected one dead-lettered job")
	})

	t.Run("Identical failures collapse to one job", func(t *testing.T) {
		classifier := &flakyClassifier{}
		flow := newTestFlow(t, &Options{Language: classifier})

		for i := 0; i < 3; i++ {
			_, err := flow.DetectLanguage(ctx, "some text to classify")
			require.Error(t, err)
		}

		depth, err := flow.DLQ.Depth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, depth, "Expected the identical failures deduplicated")
	})

	t.Run("Reprocess succeeds once the port heals", func(t *testing.T) {
		classifier := &flakyClassifier{}
		flow := newTestFlow(t, &Options{Language: classifier})

		_, err := flow.DetectLanguage(ctx, "some text to classify")
		require.Error(t, err)

		classifier.healthy.Store(true)

		reprocessed, err := flow.DLQ.Reprocess(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, reprocessed)

		depth, err := flow.DLQ.Depth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, depth, "Expected the queue drained after the port healed")
	})

	t.Run("Invalid input is not dead-lettered", func(t *testing.T) {
		flow := newTestFlow(t, nil)

		_, err := flow.DetectLanguage(ctx, "")
		require.Error(t, err)

		depth, err := flow.DLQ.Depth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, depth, "Expected permanent failures to stay out of the queue")
	})
}

func TestRerankFacade(t *testing.T) {
	flow := newTestFlow(t, nil)
	ctx := context.Background()

	t.Run("Candidates keep their original index", func(t *testing.T) {
		ranked, err := flow.Rerank(ctx, "payment terms", []string{
			"The contract covers payment terms.",
			"The weather is nice today.",
		}, nil)
		require.NoError(t, err)
		require.Len(t, ranked, 2)

		indexes := map[int]bool{}
		for _, candidate := range ranked {
			indexes[candidate.Index] = true
		}
		assert.True(t, indexes[0] && indexes[1], "Expected both original indexes present")
	})

	t.Run("Empty candidates return an empty slice", func(t *testing.T) {
		ranked, err := flow.Rerank(ctx, "payment terms", nil, nil)
		require.NoError(t, err)
		assert.Empty(t, ranked)
	})
}
