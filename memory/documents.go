package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/model"
)

// DocumentStore is an in-memory document store.
type DocumentStore struct {
	mu     sync.RWMutex
	docs   map[uuid.UUID]*model.Document
	order  []uuid.UUID
	nextID int64
}

// NewDocumentStore creates an empty in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs: make(map[uuid.UUID]*model.Document),
	}
}

// InsertDocument stores the document and fills in its generated fields.
func (s *DocumentStore) InsertDocument(ctx context.Context, doc *model.Document) error {
	if doc == nil {
		return helper.NewKindError("insert document", helper.KindInvalidInput, fmt.Errorf("document is nil"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.RID == uuid.Nil {
		doc.RID = uuid.New()
	}
	if _, ok := s.docs[doc.RID]; ok {
		return helper.NewKindError("insert document", helper.KindStorage, fmt.Errorf("document %v already exists", doc.RID))
	}

	s.nextID++
	doc.ID = s.nextID
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Metadata == nil {
		doc.Metadata = model.Metadata{}
	}

	clone := *doc
	s.docs[doc.RID] = &clone
	s.order = append(s.order, doc.RID)

	return nil
}

// SelectDocument returns a document by its RID.
func (s *DocumentStore) SelectDocument(ctx context.Context, rid uuid.UUID) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[rid]
	if !ok {
		return nil, helper.NewKindError("select document", helper.KindStorage, fmt.Errorf("document %v not found", rid))
	}

	clone := *doc
	return &clone, nil
}

// SelectAllDocuments returns the newest documents up to limit.
func (s *DocumentStore) SelectAllDocuments(ctx context.Context, limit int) ([]*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []*model.Document
	for i := len(s.order) - 1; i >= 0 && (limit <= 0 || len(docs) < limit); i-- {
		clone := *s.docs[s.order[i]]
		docs = append(docs, &clone)
	}

	return docs, nil
}

// DeleteDocument removes a document by RID.
func (s *DocumentStore) DeleteDocument(ctx context.Context, rid uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[rid]; !ok {
		return helper.NewKindError("delete document", helper.KindStorage, fmt.Errorf("document %v not found", rid))
	}

	delete(s.docs, rid)
	for i, id := range s.order {
		if id == rid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return nil
}
