package model

import (
	"time"

	"github.com/google/uuid"
)

// Document represents a source document registered with the gateway.
// Documents are referenced by chunks but own neither chunk lifecycle nor content.
type Document struct {
	ID        int64     `json:"id"`
	RID       uuid.UUID `json:"rid"`
	Title     string    `json:"title"`
	SourceURI string    `json:"source_uri,omitempty"`
	Language  string    `json:"language,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
