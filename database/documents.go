package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/model"
	loadSql "github.com/siherrmann/docflow/sql"
)

// DocumentsDBHandlerFunctions defines the interface for Documents database operations.
type DocumentsDBHandlerFunctions interface {
	InsertDocument(ctx context.Context, doc *model.Document) error
	SelectDocument(ctx context.Context, rid uuid.UUID) (*model.Document, error)
	SelectAllDocuments(ctx context.Context, limit int) ([]*model.Document, error)
	DeleteDocument(ctx context.Context, rid uuid.UUID) error
}

// DocumentsDBHandler handles document-related database operations
type DocumentsDBHandler struct {
	db *helper.Database
}

// NewDocumentsDBHandler creates a new documents database handler.
// It initializes the database connection and loads document-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewDocumentsDBHandler(db *helper.Database, force bool) (*DocumentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	documentsDbHandler := &DocumentsDBHandler{
		db: db,
	}

	err := loadSql.LoadDocumentsSql(documentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load documents sql", err)
	}

	err = documentsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized DocumentsDBHandler")

	return documentsDbHandler, nil
}

// CreateTable creates the 'documents' table in the database.
// If the table already exists, it does not create it again.
func (h *DocumentsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_documents();`)
	if err != nil {
		log.Panicf("error initializing documents table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table documents")

	return nil
}

// InsertDocument inserts a new document
func (h *DocumentsDBHandler) InsertDocument(ctx context.Context, doc *model.Document) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_document($1, $2, $3, $4)`,
		doc.Title,
		doc.SourceURI,
		doc.Language,
		doc.Metadata,
	)

	err := row.Scan(
		&doc.ID,
		&doc.RID,
		&doc.Title,
		&doc.SourceURI,
		&doc.Language,
		&doc.Metadata,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return helper.NewKindError("scan", helper.KindStorage, err)
	}

	return nil
}

// SelectDocument selects a document by its RID
func (h *DocumentsDBHandler) SelectDocument(ctx context.Context, rid uuid.UUID) (*model.Document, error) {
	doc := &model.Document{}
	row := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM select_document($1)`, rid)

	err := row.Scan(
		&doc.ID,
		&doc.RID,
		&doc.Title,
		&doc.SourceURI,
		&doc.Language,
		&doc.Metadata,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, helper.NewKindError("scan", helper.KindStorage, err)
	}

	return doc, nil
}

// SelectAllDocuments selects the newest documents up to limit
func (h *DocumentsDBHandler) SelectAllDocuments(ctx context.Context, limit int) ([]*model.Document, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_all_documents($1)`, limit)
	if err != nil {
		return nil, helper.NewKindError("query", helper.KindStorage, err)
	}
	defer rows.Close()

	var docs []*model.Document
	for rows.Next() {
		doc := &model.Document{}
		err := rows.Scan(
			&doc.ID,
			&doc.RID,
			&doc.Title,
			&doc.SourceURI,
			&doc.Language,
			&doc.Metadata,
			&doc.CreatedAt,
			&doc.UpdatedAt,
		)
		if err != nil {
			return nil, helper.NewKindError("scan", helper.KindStorage, err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// DeleteDocument deletes a document and its chunks by RID
func (h *DocumentsDBHandler) DeleteDocument(ctx context.Context, rid uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_document($1)`, rid)
	if err != nil {
		return helper.NewKindError("exec", helper.KindStorage, err)
	}
	return nil
}
