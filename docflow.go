// Package docflow wires the document pipeline gateway: pluggable
// classification, scanning and vectorization ports, chunk storage, top-k
// retrieval, reranking, citation verification and a dead-letter queue with a
// reprocessing engine. Storage is either embedded in memory or postgres with
// pgvector.
package docflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/siherrmann/docflow/core/citation"
	"github.com/siherrmann/docflow/core/dlq"
	"github.com/siherrmann/docflow/core/pipeline"
	"github.com/siherrmann/docflow/core/ports"
	"github.com/siherrmann/docflow/core/rerank"
	"github.com/siherrmann/docflow/core/retrieval"
	"github.com/siherrmann/docflow/database"
	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/memory"
	"github.com/siherrmann/docflow/model"
	loadSql "github.com/siherrmann/docflow/sql"
)

// DocumentStore persists document records. The in-memory store and the
// postgres handler both satisfy it.
type DocumentStore interface {
	InsertDocument(ctx context.Context, doc *model.Document) error
	SelectDocument(ctx context.Context, rid uuid.UUID) (*model.Document, error)
	SelectAllDocuments(ctx context.Context, limit int) ([]*model.Document, error)
	DeleteDocument(ctx context.Context, rid uuid.UUID) error
}

// Options configures the ports and stage tuning of a Docflow instance.
// Zero-value fields fall back to the deterministic default ports and the
// default stage configurations.
type Options struct {
	Vectorizer ports.Vectorizer
	Language   ports.Classifier
	Intent     ports.Classifier
	Scanner    ports.Scanner

	Retrieval model.RetrievalConfig
	Rerank    model.RerankConfig
	Citation  model.CitationConfig
	DLQ       model.DLQConfig

	// MaxSentencesPerChunk bounds the sentence chunker used on ingest.
	MaxSentencesPerChunk int

	Logger *slog.Logger
}

func (o *Options) withDefaults() error {
	if o.Vectorizer == nil {
		vectorizer, err := ports.NewHashingVectorizer(256)
		if err != nil {
			return helper.NewError("create default vectorizer", err)
		}
		o.Vectorizer = vectorizer
	}
	if o.Language == nil {
		o.Language = ports.NewLanguageClassifier()
	}
	if o.Intent == nil {
		o.Intent = ports.NewIntentClassifier()
	}
	if o.Scanner == nil {
		o.Scanner = ports.NewSignatureScanner()
	}
	if o.Retrieval.TopK <= 0 {
		o.Retrieval = model.DefaultRetrievalConfig()
	}
	if o.Rerank.SimilarityWeight == 0 && o.Rerank.BoostWeight == 0 {
		o.Rerank = model.DefaultRerankConfig()
	}
	if o.Citation.OverlapThreshold == 0 {
		o.Citation = model.DefaultCitationConfig()
	}
	if o.DLQ.MaxAttempts <= 0 {
		o.DLQ = model.DefaultDLQConfig()
	}
	if o.MaxSentencesPerChunk <= 0 {
		o.MaxSentencesPerChunk = 3
	}
	if o.Logger == nil {
		opts := helper.PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{
				Level: slog.LevelInfo,
			},
		}
		o.Logger = slog.New(helper.NewPrettyHandler(os.Stdout, opts))
	}
	return nil
}

// Docflow provides a unified interface to all pipeline stages and stores
type Docflow struct {
	DB        *helper.Database
	Documents DocumentStore
	Chunks    retrieval.ChunkStore
	Jobs      dlq.JobStore

	Vectorizer ports.Vectorizer
	Language   ports.Classifier
	Intent     ports.Classifier
	Scanner    ports.Scanner

	Pipeline  *pipeline.Pipeline
	Retrieval *retrieval.Engine
	Reranker  *rerank.Reranker
	Citations *citation.Verifier
	DLQ       *dlq.Engine

	options Options
	log     *slog.Logger
}

// NewDocflow creates a Docflow instance on a postgres database with pgvector.
// All tables and SQL functions are initialized on startup.
func NewDocflow(config *helper.DatabaseConfiguration, options *Options) (*Docflow, error) {
	if options == nil {
		options = &Options{}
	}
	err := options.withDefaults()
	if err != nil {
		return nil, err
	}

	db := helper.NewDatabase("docflow", config, options.Logger)
	err = loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers in the correct order (documents first, then chunks)
	// force=false to not reload if functions already exist
	documents, err := database.NewDocumentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, options.Vectorizer.Dimension(), false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	jobs, err := database.NewJobsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create jobs handler", err)
	}

	return assemble(db, documents, chunks, jobs, *options), nil
}

// NewMemoryDocflow creates a Docflow instance on in-memory stores. It is
// self-contained and needs no external services.
func NewMemoryDocflow(options *Options) (*Docflow, error) {
	if options == nil {
		options = &Options{}
	}
	err := options.withDefaults()
	if err != nil {
		return nil, err
	}

	return assemble(nil, memory.NewDocumentStore(), memory.NewChunkStore(), memory.NewJobStore(), *options), nil
}

func assemble(db *helper.Database, documents DocumentStore, chunks retrieval.ChunkStore, jobs dlq.JobStore, options Options) *Docflow {
	d := &Docflow{
		DB:         db,
		Documents:  documents,
		Chunks:     chunks,
		Jobs:       jobs,
		Vectorizer: options.Vectorizer,
		Language:   options.Language,
		Intent:     options.Intent,
		Scanner:    options.Scanner,
		Pipeline:   pipeline.NewPipeline(pipeline.SentenceChunker(options.MaxSentencesPerChunk), options.Vectorizer, options.DLQ.PortTimeout),
		Retrieval:  retrieval.NewEngine(chunks, options.Vectorizer, options.Retrieval, options.DLQ.PortTimeout),
		Reranker:   rerank.NewReranker(options.Vectorizer, options.Rerank, options.DLQ.PortTimeout),
		Citations:  citation.NewVerifier(options.Vectorizer, options.Citation, options.DLQ.PortTimeout),
		DLQ:        dlq.NewEngine(jobs, options.DLQ, options.Logger),
		options:    options,
		log:        options.Logger,
	}

	d.registerExecutors()

	return d
}

// Close stops the sweeper and closes the database connection.
func (d *Docflow) Close() error {
	d.DLQ.StopSweeper()
	if closer, ok := d.Vectorizer.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return helper.NewError("close vectorizer", err)
		}
	}
	if d.DB != nil && d.DB.Instance != nil {
		return d.DB.Instance.Close()
	}
	return nil
}

// DetectLanguage classifies the language of a text. A transient port failure
// dead-letters the stage for later reprocessing.
func (d *Docflow) DetectLanguage(ctx context.Context, text string) (model.Classification, error) {
	if text == "" {
		return model.Classification{}, helper.NewKindError("detect language", helper.KindInvalidInput, fmt.Errorf("text is empty"))
	}

	result, err := ports.ClassifyWithTimeout(ctx, d.Language, text, d.options.DLQ.PortTimeout)
	if err != nil {
		return model.Classification{}, d.deadLetter(ctx, model.JobKindClassify, dlq.ClassifyPayload{Text: text, Mode: "language"}, err)
	}

	return result, nil
}

// ClassifyIntent classifies the intent of a query text. A transient port
// failure dead-letters the stage for later reprocessing.
func (d *Docflow) ClassifyIntent(ctx context.Context, text string) (model.Classification, error) {
	if text == "" {
		return model.Classification{}, helper.NewKindError("classify intent", helper.KindInvalidInput, fmt.Errorf("text is empty"))
	}

	result, err := ports.ClassifyWithTimeout(ctx, d.Intent, text, d.options.DLQ.PortTimeout)
	if err != nil {
		return model.Classification{}, d.deadLetter(ctx, model.JobKindClassify, dlq.ClassifyPayload{Text: text, Mode: "intent"}, err)
	}

	return result, nil
}

// ScanFile scans a file reference for infections. A transient port failure
// dead-letters the stage for later reprocessing.
func (d *Docflow) ScanFile(ctx context.Context, file model.FileRef) (model.ScanVerdict, error) {
	if file.Name == "" {
		return model.ScanVerdict{}, helper.NewKindError("scan file", helper.KindInvalidInput, fmt.Errorf("file name is empty"))
	}

	verdict, err := ports.ScanWithTimeout(ctx, d.Scanner, file, d.options.DLQ.PortTimeout)
	if err != nil {
		return model.ScanVerdict{}, d.deadLetter(ctx, model.JobKindScan, dlq.ScanPayload{Filename: file.Name, SizeBytes: file.SizeBytes}, err)
	}

	return verdict, nil
}

// IngestDocument inserts the document record, chunks the content into
// sentences and embeds each chunk into the given collection. The number of
// stored chunks is returned.
func (d *Docflow) IngestDocument(ctx context.Context, doc *model.Document, content string, collectionID string) (int, error) {
	if content == "" {
		return 0, helper.NewKindError("ingest document", helper.KindInvalidInput, fmt.Errorf("document content is empty"))
	}
	if collectionID == "" {
		return 0, helper.NewKindError("ingest document", helper.KindInvalidInput, fmt.Errorf("collection id is empty"))
	}

	if err := d.Documents.InsertDocument(ctx, doc); err != nil {
		return 0, helper.NewError("insert document", err)
	}

	d.log.Info("Inserted document", slog.String("document_id", doc.RID.String()), slog.String("title", doc.Title))

	chunks, err := d.ChunkEmbed(ctx, doc.RID, collectionID, content)
	if err != nil {
		return 0, err
	}

	d.log.Info("Embedded document chunks", slog.Int("num_chunks", len(chunks)), slog.String("document_id", doc.RID.String()))

	return len(chunks), nil
}

// ChunkEmbed chunks a text, embeds each chunk and upserts the chunks into the
// store. Chunk ids derive from document and content, so a retried call writes
// the same rows. A transient failure dead-letters the stage.
func (d *Docflow) ChunkEmbed(ctx context.Context, documentRID uuid.UUID, collectionID string, text string) ([]*model.Chunk, error) {
	chunks, err := d.embed(ctx, documentRID, collectionID, text)
	if err != nil {
		return nil, d.deadLetter(ctx, model.JobKindEmbed, dlq.EmbedPayload{DocumentRID: documentRID, CollectionID: collectionID, Text: text}, err)
	}
	return chunks, nil
}

func (d *Docflow) embed(ctx context.Context, documentRID uuid.UUID, collectionID string, text string) ([]*model.Chunk, error) {
	if text == "" {
		return nil, helper.NewKindError("chunk embed", helper.KindInvalidInput, fmt.Errorf("text is empty"))
	}
	if collectionID == "" {
		return nil, helper.NewKindError("chunk embed", helper.KindInvalidInput, fmt.Errorf("collection id is empty"))
	}

	doc, err := d.Documents.SelectDocument(ctx, documentRID)
	if err != nil {
		return nil, helper.NewError("select document", err)
	}

	chunks, err := d.Pipeline.Process(ctx, documentRID, collectionID, text)
	if err != nil {
		return nil, err
	}

	for i, chunk := range chunks {
		chunk.SourceURI = doc.SourceURI
		if err := d.Chunks.UpsertChunk(ctx, chunk); err != nil {
			return nil, helper.NewKindError(fmt.Sprintf("upsert chunk %d", i), helper.KindStorage, err)
		}
	}

	return chunks, nil
}

// Retrieve returns the top-k most similar chunks for a query. A transient
// failure dead-letters the stage.
func (d *Docflow) Retrieve(ctx context.Context, query string, collectionIDs []string, topK int) ([]*model.RetrievalResult, error) {
	results, err := d.Retrieval.Retrieve(ctx, query, collectionIDs, topK)
	if err != nil {
		return nil, d.deadLetter(ctx, model.JobKindRetrieve, dlq.RetrievePayload{Query: query, CollectionIDs: collectionIDs, TopK: topK}, err)
	}
	return results, nil
}

// Rerank reorders candidate texts by relevance to the query. A transient
// failure dead-letters the stage.
func (d *Docflow) Rerank(ctx context.Context, query string, candidates []string, boosts []rerank.Signals) ([]*model.RerankedCandidate, error) {
	results, err := d.Reranker.Rerank(ctx, query, candidates, boosts)
	if err != nil {
		return nil, d.deadLetter(ctx, model.JobKindRerank, dlq.RerankPayload{Query: query, Candidates: candidates}, err)
	}
	return results, nil
}

// VerifyCitations verifies the claims of a generated text against the chunks
// with the given ids and returns coverage plus one citation per covered
// claim. A transient failure dead-letters the stage.
func (d *Docflow) VerifyCitations(ctx context.Context, text string, chunkIDs []uuid.UUID) (float64, []*model.Citation, error) {
	coverage, citations, err := d.verifyCitations(ctx, text, chunkIDs)
	if err != nil {
		return 0, nil, d.deadLetter(ctx, model.JobKindCite, dlq.CitePayload{Text: text, ChunkIDs: chunkIDs}, err)
	}
	return coverage, citations, nil
}

func (d *Docflow) verifyCitations(ctx context.Context, text string, chunkIDs []uuid.UUID) (float64, []*model.Citation, error) {
	if text == "" {
		return d.Citations.Verify(ctx, text, nil)
	}

	// Without explicit chunk ids the claims are verified against the chunks
	// retrieved for the text itself.
	if len(chunkIDs) == 0 {
		results, err := d.Retrieval.Retrieve(ctx, text, nil, d.options.Retrieval.TopK)
		if err != nil {
			return 0, nil, err
		}
		for _, result := range results {
			chunkIDs = append(chunkIDs, result.ChunkID)
		}
	}

	if len(chunkIDs) == 0 {
		return d.Citations.Verify(ctx, text, nil)
	}

	chunks, err := d.Chunks.SelectChunks(ctx, chunkIDs)
	if err != nil {
		return 0, nil, helper.NewKindError("select chunks", helper.KindStorage, err)
	}

	return d.Citations.Verify(ctx, text, chunks)
}

// deadLetter enqueues a failed stage for reprocessing when the cause is
// transient. Permanent failures are returned to the caller unqueued.
func (d *Docflow) deadLetter(ctx context.Context, kind model.JobKind, payload interface{}, cause error) error {
	if !helper.IsTransient(cause) {
		return cause
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("Marshaling dead-letter payload failed", slog.String("kind", string(kind)), slog.String("error", err.Error()))
		return cause
	}

	// Same stage and payload within the dedup window collapse to one job.
	dedupKey := fmt.Sprintf("%s:%s", kind, uuid.NewSHA1(uuid.NameSpaceOID, raw))
	job, enqueueErr := d.DLQ.Enqueue(ctx, kind, raw, dedupKey, cause)
	if enqueueErr != nil {
		d.log.Error("Dead-lettering failed", slog.String("kind", string(kind)), slog.String("error", enqueueErr.Error()))
		return cause
	}

	d.log.Warn("Dead-lettered stage",
		slog.String("kind", string(kind)),
		slog.String("job_rid", job.RID.String()),
		slog.String("error", cause.Error()),
	)

	return cause
}

// registerExecutors wires one reprocessing executor per pipeline stage. The
// executors replay the stage from its payload without re-dead-lettering, the
// engine owns the retry accounting.
func (d *Docflow) registerExecutors() {
	d.DLQ.RegisterExecutor(model.JobKindClassify, func(ctx context.Context, raw json.RawMessage) error {
		var payload dlq.ClassifyPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return helper.NewKindError("unmarshal classify payload", helper.KindInvalidInput, err)
		}
		classifier := d.Language
		if payload.Mode == "intent" {
			classifier = d.Intent
		}
		_, err := classifier.Classify(ctx, payload.Text)
		return err
	})

	d.DLQ.RegisterExecutor(model.JobKindScan, func(ctx context.Context, raw json.RawMessage) error {
		var payload dlq.ScanPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return helper.NewKindError("unmarshal scan payload", helper.KindInvalidInput, err)
		}
		_, err := d.Scanner.Scan(ctx, model.FileRef{Name: payload.Filename, SizeBytes: payload.SizeBytes})
		return err
	})

	d.DLQ.RegisterExecutor(model.JobKindEmbed, func(ctx context.Context, raw json.RawMessage) error {
		var payload dlq.EmbedPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return helper.NewKindError("unmarshal embed payload", helper.KindInvalidInput, err)
		}
		_, err := d.embed(ctx, payload.DocumentRID, payload.CollectionID, payload.Text)
		return err
	})

	d.DLQ.RegisterExecutor(model.JobKindRetrieve, func(ctx context.Context, raw json.RawMessage) error {
		var payload dlq.RetrievePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return helper.NewKindError("unmarshal retrieve payload", helper.KindInvalidInput, err)
		}
		_, err := d.Retrieval.Retrieve(ctx, payload.Query, payload.CollectionIDs, payload.TopK)
		return err
	})

	d.DLQ.RegisterExecutor(model.JobKindRerank, func(ctx context.Context, raw json.RawMessage) error {
		var payload dlq.RerankPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return helper.NewKindError("unmarshal rerank payload", helper.KindInvalidInput, err)
		}
		_, err := d.Reranker.Rerank(ctx, payload.Query, payload.Candidates, nil)
		return err
	})

	d.DLQ.RegisterExecutor(model.JobKindCite, func(ctx context.Context, raw json.RawMessage) error {
		var payload dlq.CitePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return helper.NewKindError("unmarshal cite payload", helper.KindInvalidInput, err)
		}
		_, _, err := d.verifyCitations(ctx, payload.Text, payload.ChunkIDs)
		return err
	})
}
