package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/model"
)

// Job status codes for the atomic per-job state word.
const (
	statusPending int32 = iota
	statusInFlight
	statusSucceeded
	statusQuarantined
)

func statusOf(code int32) model.JobStatus {
	switch code {
	case statusInFlight:
		return model.JobStatusInFlight
	case statusSucceeded:
		return model.JobStatusSucceeded
	case statusQuarantined:
		return model.JobStatusQuarantined
	default:
		return model.JobStatusPending
	}
}

// memoryJob pairs the job record with an atomic state word. Claims are a
// compare-and-swap on the state word, so concurrent claimers never hold a
// lock over the whole pending set and never claim the same job twice.
type memoryJob struct {
	mu     sync.Mutex // guards the record fields below
	job    model.Job
	status atomic.Int32
}

func (m *memoryJob) snapshot() *model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := m.job
	clone.Status = statusOf(m.status.Load())
	if m.job.Payload != nil {
		clone.Payload = append(clone.Payload[:0:0], m.job.Payload...)
	}
	return &clone
}

// JobStore is an in-memory dead-letter queue store.
type JobStore struct {
	mu     sync.RWMutex
	jobs   map[uuid.UUID]*memoryJob
	order  []uuid.UUID
	byKey  map[string]uuid.UUID
	nextID int64
}

// NewJobStore creates an empty in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:  make(map[uuid.UUID]*memoryJob),
		byKey: make(map[string]uuid.UUID),
	}
}

// EnqueueJob inserts the job, deduplicating against a live job with the same
// dedup key enqueued within the window.
func (s *JobStore) EnqueueJob(ctx context.Context, job *model.Job, dedupWindow time.Duration) (*model.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if job.DedupKey != "" {
		if rid, ok := s.byKey[job.DedupKey]; ok {
			existing := s.jobs[rid]
			code := existing.status.Load()
			existing.mu.Lock()
			inWindow := now.Sub(existing.job.EnqueuedAt) <= dedupWindow
			if inWindow && (code == statusPending || code == statusInFlight) {
				existing.job.LastError = job.LastError
				existing.job.UpdatedAt = now
				existing.mu.Unlock()
				return existing.snapshot(), true, nil
			}
			existing.mu.Unlock()
		}
	}

	s.nextID++
	stored := &memoryJob{}
	stored.job = *job
	stored.job.ID = s.nextID
	stored.job.AttemptCount = 0
	stored.job.EnqueuedAt = now
	stored.job.UpdatedAt = now
	stored.status.Store(statusPending)

	s.jobs[job.RID] = stored
	s.order = append(s.order, job.RID)
	if job.DedupKey != "" {
		s.byKey[job.DedupKey] = job.RID
	}

	return stored.snapshot(), false, nil
}

// ClaimPendingJobs claims up to max pending jobs via per-job CAS, in enqueue
// order.
func (s *JobStore) ClaimPendingJobs(ctx context.Context, max int) ([]*model.Job, error) {
	s.mu.RLock()
	order := make([]uuid.UUID, len(s.order))
	copy(order, s.order)
	s.mu.RUnlock()

	now := time.Now()
	var claimed []*model.Job
	for _, rid := range order {
		if len(claimed) >= max {
			break
		}

		s.mu.RLock()
		job := s.jobs[rid]
		s.mu.RUnlock()
		if job == nil {
			continue
		}

		if !job.status.CompareAndSwap(statusPending, statusInFlight) {
			continue
		}
		job.mu.Lock()
		claimedAt := now
		job.job.ClaimedAt = &claimedAt
		job.job.UpdatedAt = now
		job.mu.Unlock()

		claimed = append(claimed, job.snapshot())
	}

	return claimed, nil
}

// MarkJobSucceeded archives a succeeded in-flight job.
func (s *JobStore) MarkJobSucceeded(ctx context.Context, rid uuid.UUID) error {
	job, err := s.get(rid)
	if err != nil {
		return err
	}

	if !job.status.CompareAndSwap(statusInFlight, statusSucceeded) {
		return helper.NewKindError("mark job succeeded", helper.KindStorage, fmt.Errorf("job %s is not in flight", rid))
	}
	job.mu.Lock()
	job.job.ClaimedAt = nil
	job.job.UpdatedAt = time.Now()
	job.mu.Unlock()

	return nil
}

// MarkJobFailed increments the attempt count and requeues or quarantines.
func (s *JobStore) MarkJobFailed(ctx context.Context, rid uuid.UUID, lastError string, maxAttempts int) (model.JobStatus, error) {
	job, err := s.get(rid)
	if err != nil {
		return "", err
	}

	job.mu.Lock()
	defer job.mu.Unlock()

	if job.status.Load() != statusInFlight {
		return "", helper.NewKindError("mark job failed", helper.KindStorage, fmt.Errorf("job %s is not in flight", rid))
	}

	job.job.AttemptCount++
	job.job.LastError = lastError
	job.job.ClaimedAt = nil
	job.job.UpdatedAt = time.Now()

	if job.job.AttemptCount >= maxAttempts {
		job.status.Store(statusQuarantined)
		return model.JobStatusQuarantined, nil
	}
	job.status.Store(statusPending)
	return model.JobStatusPending, nil
}

// QuarantineJob transitions an in-flight job directly to quarantined.
func (s *JobStore) QuarantineJob(ctx context.Context, rid uuid.UUID, lastError string) error {
	job, err := s.get(rid)
	if err != nil {
		return err
	}

	if !job.status.CompareAndSwap(statusInFlight, statusQuarantined) {
		return helper.NewKindError("quarantine job", helper.KindStorage, fmt.Errorf("job %s is not in flight", rid))
	}
	job.mu.Lock()
	job.job.AttemptCount++
	job.job.LastError = lastError
	job.job.ClaimedAt = nil
	job.job.UpdatedAt = time.Now()
	job.mu.Unlock()

	return nil
}

// ReleaseJob returns a claimed but unprocessed job to pending.
func (s *JobStore) ReleaseJob(ctx context.Context, rid uuid.UUID) error {
	job, err := s.get(rid)
	if err != nil {
		return err
	}

	if !job.status.CompareAndSwap(statusInFlight, statusPending) {
		return helper.NewKindError("release job", helper.KindStorage, fmt.Errorf("job %s is not in flight", rid))
	}
	job.mu.Lock()
	job.job.ClaimedAt = nil
	job.job.UpdatedAt = time.Now()
	job.mu.Unlock()

	return nil
}

// ReleaseQuarantinedJob re-admits a quarantined job with a fresh attempt
// budget.
func (s *JobStore) ReleaseQuarantinedJob(ctx context.Context, rid uuid.UUID) error {
	job, err := s.get(rid)
	if err != nil {
		return err
	}

	if !job.status.CompareAndSwap(statusQuarantined, statusPending) {
		return helper.NewKindError("release quarantined job", helper.KindInvalidInput, fmt.Errorf("job %s is not quarantined", rid))
	}
	job.mu.Lock()
	job.job.AttemptCount = 0
	job.job.ClaimedAt = nil
	job.job.UpdatedAt = time.Now()
	job.mu.Unlock()

	return nil
}

// ReleaseStaleJobs returns in-flight jobs with an expired lease to pending.
func (s *JobStore) ReleaseStaleJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.RLock()
	order := make([]uuid.UUID, len(s.order))
	copy(order, s.order)
	s.mu.RUnlock()

	cutoff := time.Now().Add(-olderThan)
	released := 0
	for _, rid := range order {
		s.mu.RLock()
		job := s.jobs[rid]
		s.mu.RUnlock()
		if job == nil || job.status.Load() != statusInFlight {
			continue
		}

		job.mu.Lock()
		stale := job.job.ClaimedAt != nil && job.job.ClaimedAt.Before(cutoff)
		job.mu.Unlock()
		if !stale {
			continue
		}

		if job.status.CompareAndSwap(statusInFlight, statusPending) {
			job.mu.Lock()
			job.job.ClaimedAt = nil
			job.job.UpdatedAt = time.Now()
			job.mu.Unlock()
			released++
		}
	}

	return released, nil
}

// CountPendingJobs counts jobs in pending state only.
func (s *JobStore) CountPendingJobs(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, job := range s.jobs {
		if job.status.Load() == statusPending {
			count++
		}
	}
	return count, nil
}

// SelectJobs lists up to limit jobs in the given status, newest first.
func (s *JobStore) SelectJobs(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error) {
	s.mu.RLock()
	order := make([]uuid.UUID, len(s.order))
	copy(order, s.order)
	s.mu.RUnlock()

	var jobs []*model.Job
	for i := len(order) - 1; i >= 0 && (limit <= 0 || len(jobs) < limit); i-- {
		s.mu.RLock()
		job := s.jobs[order[i]]
		s.mu.RUnlock()
		if job == nil {
			continue
		}
		if statusOf(job.status.Load()) == status {
			jobs = append(jobs, job.snapshot())
		}
	}

	return jobs, nil
}

func (s *JobStore) get(rid uuid.UUID) (*memoryJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[rid]
	if !ok {
		return nil, helper.NewKindError("select job", helper.KindStorage, fmt.Errorf("job %s not found", rid))
	}
	return job, nil
}
