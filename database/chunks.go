package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/model"
	loadSql "github.com/siherrmann/docflow/sql"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	UpsertChunk(ctx context.Context, chunk *model.Chunk) error
	SelectChunk(ctx context.Context, id uuid.UUID) (*model.Chunk, error)
	SelectChunks(ctx context.Context, ids []uuid.UUID) ([]*model.Chunk, error)
	SelectSimilarChunks(ctx context.Context, embedding []float32, collectionID string, limit int) ([]*model.Chunk, error)
	AllCollections(ctx context.Context) ([]string, error)
	ExistingCollections(ctx context.Context, ids []string) ([]string, error)
}

// ChunksDBHandler handles chunk-related database operations
type ChunksDBHandler struct {
	db *helper.Database
}

// NewChunksDBHandler creates a new chunks database handler.
// It initializes the database connection and loads chunk-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	chunksDbHandler := &ChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary extensions and indexes.
func (h *ChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// UpsertChunk inserts a chunk or, on an existing id, refreshes embedding and
// metadata while keeping seq and created_at of the original row.
func (h *ChunksDBHandler) UpsertChunk(ctx context.Context, chunk *model.Chunk) error {
	embeddingVector := pgvector.NewVector(chunk.Embedding)
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_chunk($1, $2, $3, $4, $5, $6, $7)`,
		chunk.ID,
		chunk.DocumentRID,
		chunk.CollectionID,
		chunk.Content,
		chunk.Anchor,
		embeddingVector,
		chunk.Metadata,
	)

	var embedding pgvector.Vector
	err := row.Scan(
		&chunk.ID,
		&chunk.Seq,
		&chunk.DocumentRID,
		&chunk.CollectionID,
		&chunk.Content,
		&chunk.Anchor,
		&embedding,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
	if err != nil {
		return helper.NewKindError("scan", helper.KindStorage, err)
	}
	chunk.Embedding = embedding.Slice()

	return nil
}

// SelectChunk retrieves a chunk by ID
func (h *ChunksDBHandler) SelectChunk(ctx context.Context, id uuid.UUID) (*model.Chunk, error) {
	row := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM select_chunk($1)`, id)

	chunk := &model.Chunk{}
	var embedding pgvector.Vector
	err := row.Scan(
		&chunk.ID,
		&chunk.Seq,
		&chunk.DocumentRID,
		&chunk.CollectionID,
		&chunk.Content,
		&chunk.Anchor,
		&embedding,
		&chunk.Metadata,
		&chunk.CreatedAt,
		&chunk.SourceURI,
	)
	if err != nil {
		return nil, helper.NewKindError("scan", helper.KindStorage, err)
	}
	chunk.Embedding = embedding.Slice()

	return chunk, nil
}

// SelectChunks retrieves chunks by their IDs in insertion order
func (h *ChunksDBHandler) SelectChunks(ctx context.Context, ids []uuid.UUID) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_chunks($1)`, pq.Array(ids))
	if err != nil {
		return nil, helper.NewKindError("query", helper.KindStorage, err)
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		var embedding pgvector.Vector
		err := rows.Scan(
			&chunk.ID,
			&chunk.Seq,
			&chunk.DocumentRID,
			&chunk.CollectionID,
			&chunk.Content,
			&chunk.Anchor,
			&embedding,
			&chunk.Metadata,
			&chunk.CreatedAt,
			&chunk.SourceURI,
		)
		if err != nil {
			return nil, helper.NewKindError("scan", helper.KindStorage, err)
		}
		chunk.Embedding = embedding.Slice()

		chunks = append(chunks, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewKindError("rows error", helper.KindStorage, err)
	}

	return chunks, nil
}

// SelectSimilarChunks performs vector similarity search within one collection.
// Results are ordered by descending cosine similarity, earliest insertion
// first on ties, with Similarity set on each chunk.
func (h *ChunksDBHandler) SelectSimilarChunks(ctx context.Context, embedding []float32, collectionID string, limit int) ([]*model.Chunk, error) {
	embeddingVector := pgvector.NewVector(embedding)

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_similar_chunks($1, $2, $3)`,
		embeddingVector,
		collectionID,
		limit,
	)
	if err != nil {
		return nil, helper.NewKindError("query", helper.KindStorage, err)
	}
	defer rows.Close()

	var results []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		err := rows.Scan(
			&chunk.ID,
			&chunk.Seq,
			&chunk.DocumentRID,
			&chunk.CollectionID,
			&chunk.Content,
			&chunk.Anchor,
			&chunk.Metadata,
			&chunk.CreatedAt,
			&chunk.SourceURI,
			&chunk.Similarity,
		)
		if err != nil {
			return nil, helper.NewKindError("scan", helper.KindStorage, err)
		}

		results = append(results, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewKindError("rows error", helper.KindStorage, err)
	}

	return results, nil
}

// AllCollections lists all collection ids ordered by earliest chunk insertion
func (h *ChunksDBHandler) AllCollections(ctx context.Context) ([]string, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_collections()`)
	if err != nil {
		return nil, helper.NewKindError("query", helper.KindStorage, err)
	}
	defer rows.Close()

	var collections []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, helper.NewKindError("scan", helper.KindStorage, err)
		}
		collections = append(collections, id)
	}

	return collections, rows.Err()
}

// ExistingCollections filters the given ids down to collections that hold chunks
func (h *ChunksDBHandler) ExistingCollections(ctx context.Context, ids []string) ([]string, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM existing_collections($1)`, pq.Array(ids))
	if err != nil {
		return nil, helper.NewKindError("query", helper.KindStorage, err)
	}
	defer rows.Close()

	var collections []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, helper.NewKindError("scan", helper.KindStorage, err)
		}
		collections = append(collections, id)
	}

	return collections, rows.Err()
}
