package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/docflow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentsNewDocumentsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewDocumentsDBHandler", func(t *testing.T) {
		documentsDbHandler, err := NewDocumentsDBHandler(database, true)
		assert.NoError(t, err, "Expected NewDocumentsDBHandler to not return an error")
		require.NotNil(t, documentsDbHandler, "Expected NewDocumentsDBHandler to return a non-nil instance")
		require.NotNil(t, documentsDbHandler.db, "Expected NewDocumentsDBHandler to have a non-nil database instance")
		require.NotNil(t, documentsDbHandler.db.Instance, "Expected NewDocumentsDBHandler to have a non-nil database connection instance")
	})

	t.Run("Invalid call NewDocumentsDBHandler with nil database", func(t *testing.T) {
		_, err := NewDocumentsDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating DocumentsDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestDocumentsInsert(t *testing.T) {
	database := initDB(t)
	ctx := context.Background()

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err, "Expected NewDocumentsDBHandler to not return an error")

	t.Run("Insert document", func(t *testing.T) {
		doc := &model.Document{
			Title:     "Test Document",
			SourceURI: "https://example.com/test.pdf",
			Language:  "en",
			Metadata:  map[string]interface{}{"author": "Test Author", "year": 2024},
		}

		err := documentsDbHandler.InsertDocument(ctx, doc)
		assert.NoError(t, err, "Expected Insert to not return an error")
		assert.NotEmpty(t, doc.RID, "Expected inserted document to have a RID")
		assert.WithinDuration(t, doc.CreatedAt, time.Now(), 2*time.Second, "Expected CreatedAt to be set")
		assert.WithinDuration(t, doc.UpdatedAt, time.Now(), 2*time.Second, "Expected UpdatedAt to be set")
		assert.Equal(t, "Test Document", doc.Title, "Expected title to match")

		// Cleanup
		documentsDbHandler.DeleteDocument(ctx, doc.RID)
	})

	t.Run("Insert document with nil metadata", func(t *testing.T) {
		doc := &model.Document{
			Title: "No Metadata",
		}

		err := documentsDbHandler.InsertDocument(ctx, doc)
		assert.NoError(t, err, "Expected Insert to not return an error")
		assert.NotNil(t, doc.Metadata, "Expected metadata to default to an empty object")

		// Cleanup
		documentsDbHandler.DeleteDocument(ctx, doc.RID)
	})
}

func TestDocumentsGet(t *testing.T) {
	database := initDB(t)
	ctx := context.Background()

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)

	// Create a document
	doc := &model.Document{
		Title:     "Test Document",
		SourceURI: "https://example.com/handbook",
		Metadata:  map[string]interface{}{"key": "value"},
	}
	err = documentsDbHandler.InsertDocument(ctx, doc)
	require.NoError(t, err)

	// Test Get
	retrievedDoc, err := documentsDbHandler.SelectDocument(ctx, doc.RID)
	assert.NoError(t, err, "Expected Get to not return an error")
	assert.NotNil(t, retrievedDoc, "Expected Get to return a non-nil document")
	assert.Equal(t, doc.RID, retrievedDoc.RID, "Expected document RIDs to match")
	assert.Equal(t, doc.Title, retrievedDoc.Title, "Expected titles to match")
	assert.Equal(t, doc.SourceURI, retrievedDoc.SourceURI, "Expected source URIs to match")

	// Test Get with unknown RID
	_, err = documentsDbHandler.SelectDocument(ctx, uuid.New())
	assert.Error(t, err, "Expected Get with unknown RID to return an error")

	// Cleanup
	documentsDbHandler.DeleteDocument(ctx, doc.RID)
}

func TestDocumentsGetAll(t *testing.T) {
	database := initDB(t)
	ctx := context.Background()

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)

	// Create multiple documents
	docCount := 5
	docs := make([]*model.Document, docCount)
	for i := 0; i < docCount; i++ {
		docs[i] = &model.Document{
			Title: "Listed Document",
		}
		err := documentsDbHandler.InsertDocument(ctx, docs[i])
		require.NoError(t, err)
	}
	defer func() {
		for _, doc := range docs {
			documentsDbHandler.DeleteDocument(ctx, doc.RID)
		}
	}()

	retrieved, err := documentsDbHandler.SelectAllDocuments(ctx, docCount)
	assert.NoError(t, err, "Expected GetAll to not return an error")
	assert.Len(t, retrieved, docCount, "Expected GetAll to return all inserted documents")

	limited, err := documentsDbHandler.SelectAllDocuments(ctx, 2)
	assert.NoError(t, err, "Expected limited GetAll to not return an error")
	assert.Len(t, limited, 2, "Expected GetAll to respect the limit")
}

func TestDocumentsDelete(t *testing.T) {
	database := initDB(t)
	ctx := context.Background()

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)

	doc := &model.Document{
		Title: "To Delete",
	}
	err = documentsDbHandler.InsertDocument(ctx, doc)
	require.NoError(t, err)

	err = documentsDbHandler.DeleteDocument(ctx, doc.RID)
	assert.NoError(t, err, "Expected Delete to not return an error")

	_, err = documentsDbHandler.SelectDocument(ctx, doc.RID)
	assert.Error(t, err, "Expected Get after Delete to return an error")
}
