package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobKind identifies the pipeline stage a dead-lettered job replays.
type JobKind string

const (
	JobKindClassify JobKind = "classify"
	JobKindScan     JobKind = "scan"
	JobKindEmbed    JobKind = "embed"
	JobKindRetrieve JobKind = "retrieve"
	JobKindRerank   JobKind = "rerank"
	JobKindCite     JobKind = "cite"
)

// ValidJobKind reports whether k is a known pipeline stage.
func ValidJobKind(k JobKind) bool {
	switch k {
	case JobKindClassify, JobKindScan, JobKindEmbed, JobKindRetrieve, JobKindRerank, JobKindCite:
		return true
	default:
		return false
	}
}

// JobStatus is the state of a dead-lettered job.
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusInFlight    JobStatus = "in_flight"
	JobStatusSucceeded   JobStatus = "succeeded"
	JobStatusQuarantined JobStatus = "quarantined"
)

// Job is a unit of dead-letter queue work. AttemptCount never decreases, and a
// job in JobStatusInFlight is owned by exactly one reprocessing worker.
type Job struct {
	ID           int64           `json:"id"`
	RID          uuid.UUID       `json:"rid"`
	DedupKey     string          `json:"dedup_key,omitempty"`
	Kind         JobKind         `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	AttemptCount int             `json:"attempt_count"`
	LastError    string          `json:"last_error,omitempty"`
	Status       JobStatus       `json:"status"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ClaimedAt    *time.Time      `json:"claimed_at,omitempty"`
}
