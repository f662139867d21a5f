// Package dlq implements the dead-letter queue and its reprocessing engine.
//
// A failed pipeline job enters the queue as Pending. Reprocessing claims
// pending jobs exclusively, re-executes the original stage through the
// registered executor and either succeeds, requeues for retry or quarantines.
// Quarantined jobs stay out of reprocessing until explicitly released.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/model"
)

// JobStore is the durable backing store of the queue.
//
// ClaimPendingJobs must be exclusive: two concurrent calls never return the
// same job. Implementations use an atomic per-job status check-and-set or a
// transactional claim query, not a coarse lock over the whole pending set.
type JobStore interface {
	// EnqueueJob inserts the job, or updates last error and timestamp of an
	// existing non-terminal job with the same dedup key enqueued within the
	// window. The stored job and whether it was deduplicated are returned.
	EnqueueJob(ctx context.Context, job *model.Job, dedupWindow time.Duration) (*model.Job, bool, error)
	// ClaimPendingJobs transitions up to max pending jobs to in-flight and
	// returns them in enqueue order.
	ClaimPendingJobs(ctx context.Context, max int) ([]*model.Job, error)
	// MarkJobSucceeded archives a succeeded in-flight job.
	MarkJobSucceeded(ctx context.Context, rid uuid.UUID) error
	// MarkJobFailed increments the attempt count and transitions the job back
	// to pending, or to quarantined once maxAttempts is reached. The resulting
	// status is returned.
	MarkJobFailed(ctx context.Context, rid uuid.UUID, lastError string, maxAttempts int) (model.JobStatus, error)
	// QuarantineJob transitions an in-flight job directly to quarantined.
	QuarantineJob(ctx context.Context, rid uuid.UUID, lastError string) error
	// ReleaseJob returns a claimed but unprocessed job to pending without
	// counting an attempt.
	ReleaseJob(ctx context.Context, rid uuid.UUID) error
	// ReleaseQuarantinedJob re-admits a quarantined job to pending with a
	// reset attempt count.
	ReleaseQuarantinedJob(ctx context.Context, rid uuid.UUID) error
	// ReleaseStaleJobs returns in-flight jobs claimed longer than olderThan
	// ago to pending and reports how many were released.
	ReleaseStaleJobs(ctx context.Context, olderThan time.Duration) (int, error)
	// CountPendingJobs counts jobs in pending state only.
	CountPendingJobs(ctx context.Context) (int, error)
	// SelectJobs lists up to limit jobs in the given status, newest first.
	SelectJobs(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error)
}

// Executor re-runs one pipeline stage from a job payload.
type Executor func(ctx context.Context, payload json.RawMessage) error

// Engine coordinates enqueueing, reprocessing and sweeping.
type Engine struct {
	store  JobStore
	config model.DLQConfig
	log    *slog.Logger

	mu        sync.RWMutex
	executors map[model.JobKind]Executor

	sweepStop chan struct{}
	sweepDone chan struct{}
	sweepOnce sync.Once
}

// NewEngine creates a new reprocessing engine over the given store.
func NewEngine(store JobStore, config model.DLQConfig, logger *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		config:    config,
		log:       logger,
		executors: make(map[model.JobKind]Executor),
	}
}

// RegisterExecutor sets the executor re-running jobs of one kind.
func (e *Engine) RegisterExecutor(kind model.JobKind, executor Executor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executors[kind] = executor
}

// Enqueue records a failed pipeline stage for later reprocessing. A non-empty
// dedupKey deduplicates against jobs enqueued within the configured window.
func (e *Engine) Enqueue(ctx context.Context, kind model.JobKind, payload json.RawMessage, dedupKey string, cause error) (*model.Job, error) {
	if !model.ValidJobKind(kind) {
		return nil, helper.NewKindError("enqueue job", helper.KindInvalidInput, fmt.Errorf("unknown job kind %q", kind))
	}

	job := &model.Job{
		RID:      uuid.New(),
		DedupKey: dedupKey,
		Kind:     kind,
		Payload:  payload,
		Status:   model.JobStatusPending,
	}
	if cause != nil {
		job.LastError = cause.Error()
	}

	stored, deduped, err := e.store.EnqueueJob(ctx, job, e.config.DedupWindow)
	if err != nil {
		return nil, helper.NewKindError("enqueue job", helper.KindStorage, err)
	}

	e.log.Info("Enqueued dead-letter job",
		slog.String("job_rid", stored.RID.String()),
		slog.String("kind", string(kind)),
		slog.Bool("deduplicated", deduped),
	)

	return stored, nil
}

// Reprocess claims up to max pending jobs and re-executes them. It returns
// the number of jobs claimed and attempted; max is a ceiling, not a
// guarantee. Jobs claimed but not attempted because ctx was cancelled are
// released back to pending.
func (e *Engine) Reprocess(ctx context.Context, max int) (int, error) {
	if max < 0 {
		return 0, helper.NewKindError("reprocess", helper.KindInvalidInput, fmt.Errorf("max must not be negative, got %d", max))
	}
	if max == 0 {
		return 0, nil
	}

	jobs, err := e.store.ClaimPendingJobs(ctx, max)
	if err != nil {
		return 0, helper.NewKindError("claim pending jobs", helper.KindStorage, err)
	}

	attempted := 0
	for i, job := range jobs {
		if ctx.Err() != nil {
			e.releaseClaimed(jobs[i:])
			return attempted, nil
		}
		e.execute(ctx, job)
		attempted++
	}

	return attempted, nil
}

// execute runs one claimed job and transitions it to its next state.
func (e *Engine) execute(ctx context.Context, job *model.Job) {
	executor := e.executorFor(job.Kind)
	if executor == nil {
		e.quarantine(job, fmt.Sprintf("no executor for kind %q", job.Kind))
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, e.config.PortTimeout)
	err := executor(runCtx, job.Payload)
	cancel()

	switch {
	case err == nil:
		if markErr := e.store.MarkJobSucceeded(context.Background(), job.RID); markErr != nil {
			e.log.Error("Failed to archive succeeded job", slog.String("job_rid", job.RID.String()), slog.String("error", markErr.Error()))
			return
		}
		e.log.Info("Reprocessed job", slog.String("job_rid", job.RID.String()), slog.String("kind", string(job.Kind)))

	case helper.IsPermanent(err):
		// Permanent failures skip the retry budget entirely.
		e.quarantine(job, err.Error())

	default:
		status, markErr := e.store.MarkJobFailed(context.Background(), job.RID, err.Error(), e.config.MaxAttempts)
		if markErr != nil {
			e.log.Error("Failed to record job failure", slog.String("job_rid", job.RID.String()), slog.String("error", markErr.Error()))
			return
		}
		e.log.Warn("Job failed during reprocessing",
			slog.String("job_rid", job.RID.String()),
			slog.String("kind", string(job.Kind)),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}
}

// releaseClaimed returns claimed jobs to pending after cancellation, so no
// job is left in-flight forever. A fresh context is used because the caller's
// one is already done.
func (e *Engine) releaseClaimed(jobs []*model.Job) {
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, job := range jobs {
		if err := e.store.ReleaseJob(releaseCtx, job.RID); err != nil {
			e.log.Error("Failed to release claimed job", slog.String("job_rid", job.RID.String()), slog.String("error", err.Error()))
		}
	}
}

func (e *Engine) quarantine(job *model.Job, reason string) {
	if err := e.store.QuarantineJob(context.Background(), job.RID, reason); err != nil {
		e.log.Error("Failed to quarantine job", slog.String("job_rid", job.RID.String()), slog.String("error", err.Error()))
		return
	}
	e.log.Warn("Quarantined job",
		slog.String("job_rid", job.RID.String()),
		slog.String("kind", string(job.Kind)),
		slog.String("reason", reason),
	)
}

func (e *Engine) executorFor(kind model.JobKind) Executor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.executors[kind]
}

// Depth returns the count of pending jobs. In-flight and quarantined jobs are
// excluded, depth reflects the actionable backlog.
func (e *Engine) Depth(ctx context.Context) (int, error) {
	depth, err := e.store.CountPendingJobs(ctx)
	if err != nil {
		return 0, helper.NewKindError("count pending jobs", helper.KindStorage, err)
	}
	return depth, nil
}

// ReleaseQuarantined re-admits a quarantined job to the pending backlog.
func (e *Engine) ReleaseQuarantined(ctx context.Context, rid uuid.UUID) error {
	if err := e.store.ReleaseQuarantinedJob(ctx, rid); err != nil {
		return helper.NewError("release quarantined job", err)
	}
	e.log.Info("Released quarantined job", slog.String("job_rid", rid.String()))
	return nil
}

// Jobs lists up to limit jobs in the given status for inspection.
func (e *Engine) Jobs(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error) {
	jobs, err := e.store.SelectJobs(ctx, status, limit)
	if err != nil {
		return nil, helper.NewKindError("select jobs", helper.KindStorage, err)
	}
	return jobs, nil
}

// StartSweeper runs a background loop releasing in-flight jobs whose lease
// went stale, e.g. after a worker crash. Stop with StopSweeper.
func (e *Engine) StartSweeper() {
	e.sweepStop = make(chan struct{})
	e.sweepDone = make(chan struct{})

	go func() {
		defer close(e.sweepDone)
		ticker := time.NewTicker(e.config.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-e.sweepStop:
				return
			case <-ticker.C:
				e.sweep()
			}
		}
	}()
}

// StopSweeper stops the sweeper and waits for it to finish.
func (e *Engine) StopSweeper() {
	e.sweepOnce.Do(func() {
		if e.sweepStop == nil {
			return
		}
		close(e.sweepStop)
		<-e.sweepDone
	})
}

func (e *Engine) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.SweepInterval)
	defer cancel()

	released, err := e.store.ReleaseStaleJobs(ctx, e.config.StaleLease)
	if err != nil {
		e.log.Error("Sweeper failed to release stale jobs", slog.String("error", err.Error()))
		return
	}
	if released > 0 {
		e.log.Warn("Released stale in-flight jobs", slog.Int("count", released))
	}
}
