package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/model"
	loadSql "github.com/siherrmann/docflow/sql"
)

// JobsDBHandlerFunctions defines the interface for DLQ job database operations.
type JobsDBHandlerFunctions interface {
	EnqueueJob(ctx context.Context, job *model.Job, dedupWindow time.Duration) (*model.Job, bool, error)
	ClaimPendingJobs(ctx context.Context, max int) ([]*model.Job, error)
	MarkJobSucceeded(ctx context.Context, rid uuid.UUID) error
	MarkJobFailed(ctx context.Context, rid uuid.UUID, lastError string, maxAttempts int) (model.JobStatus, error)
	QuarantineJob(ctx context.Context, rid uuid.UUID, lastError string) error
	ReleaseJob(ctx context.Context, rid uuid.UUID) error
	ReleaseQuarantinedJob(ctx context.Context, rid uuid.UUID) error
	ReleaseStaleJobs(ctx context.Context, olderThan time.Duration) (int, error)
	CountPendingJobs(ctx context.Context) (int, error)
	SelectJobs(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error)
}

// JobsDBHandler handles DLQ job database operations
type JobsDBHandler struct {
	db *helper.Database
}

// NewJobsDBHandler creates a new jobs database handler.
// It initializes the database connection and loads job-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewJobsDBHandler(db *helper.Database, force bool) (*JobsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	jobsDbHandler := &JobsDBHandler{
		db: db,
	}

	err := loadSql.LoadJobsSql(jobsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load jobs sql", err)
	}

	err = jobsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized JobsDBHandler")

	return jobsDbHandler, nil
}

// CreateTable creates the 'dlq_jobs' table in the database.
// If the table already exists, it does not create it again.
func (h *JobsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_jobs();`)
	if err != nil {
		log.Panicf("error initializing dlq_jobs table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table dlq_jobs")

	return nil
}

// EnqueueJob inserts the job, or refreshes last error and timestamp of a live
// job with the same dedup key enqueued within the window.
func (h *JobsDBHandler) EnqueueJob(ctx context.Context, job *model.Job, dedupWindow time.Duration) (*model.Job, bool, error) {
	payloadParam := string(job.Payload)
	if payloadParam == "" {
		payloadParam = "{}"
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM enqueue_job($1, $2, $3, $4, $5, $6)`,
		job.RID,
		job.DedupKey,
		string(job.Kind),
		payloadParam,
		job.LastError,
		dedupWindow.String(),
	)

	stored := &model.Job{}
	var kind, status string
	var payload []byte
	var claimedAt sql.NullTime
	var deduped bool
	err := row.Scan(
		&stored.ID,
		&stored.RID,
		&stored.DedupKey,
		&kind,
		&payload,
		&stored.AttemptCount,
		&stored.LastError,
		&status,
		&stored.EnqueuedAt,
		&stored.UpdatedAt,
		&claimedAt,
		&deduped,
	)
	if err != nil {
		return nil, false, helper.NewKindError("scan", helper.KindStorage, err)
	}
	stored.Kind = model.JobKind(kind)
	stored.Status = model.JobStatus(status)
	stored.Payload = payload
	if claimedAt.Valid {
		t := claimedAt.Time
		stored.ClaimedAt = &t
	}

	return stored, deduped, nil
}

// ClaimPendingJobs exclusively claims up to max pending jobs in enqueue order.
// The claim query uses FOR UPDATE SKIP LOCKED, so concurrent callers never
// receive the same job.
func (h *JobsDBHandler) ClaimPendingJobs(ctx context.Context, max int) ([]*model.Job, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM claim_pending_jobs($1)`, max)
	if err != nil {
		return nil, helper.NewKindError("query", helper.KindStorage, err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// MarkJobSucceeded archives a succeeded in-flight job
func (h *JobsDBHandler) MarkJobSucceeded(ctx context.Context, rid uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT mark_job_succeeded($1)`, rid)
	if err != nil {
		return helper.NewKindError("exec", helper.KindStorage, err)
	}
	return nil
}

// MarkJobFailed counts the attempt and moves the job back to pending, or to
// quarantined once maxAttempts is reached. The resulting status is returned.
func (h *JobsDBHandler) MarkJobFailed(ctx context.Context, rid uuid.UUID, lastError string, maxAttempts int) (model.JobStatus, error) {
	var status string
	row := h.db.Instance.QueryRowContext(ctx, `SELECT mark_job_failed($1, $2, $3)`, rid, lastError, maxAttempts)
	err := row.Scan(&status)
	if err != nil {
		return "", helper.NewKindError("scan", helper.KindStorage, err)
	}
	return model.JobStatus(status), nil
}

// QuarantineJob moves an in-flight job directly to quarantined
func (h *JobsDBHandler) QuarantineJob(ctx context.Context, rid uuid.UUID, lastError string) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT quarantine_job($1, $2)`, rid, lastError)
	if err != nil {
		return helper.NewKindError("exec", helper.KindStorage, err)
	}
	return nil
}

// ReleaseJob returns a claimed but unprocessed job to pending without
// counting an attempt
func (h *JobsDBHandler) ReleaseJob(ctx context.Context, rid uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT release_job($1)`, rid)
	if err != nil {
		return helper.NewKindError("exec", helper.KindStorage, err)
	}
	return nil
}

// ReleaseQuarantinedJob re-admits a quarantined job with a reset attempt count
func (h *JobsDBHandler) ReleaseQuarantinedJob(ctx context.Context, rid uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT release_quarantined_job($1)`, rid)
	if err != nil {
		return helper.NewKindError("exec", helper.KindStorage, err)
	}
	return nil
}

// ReleaseStaleJobs returns in-flight jobs claimed longer than olderThan ago
// to pending and reports how many were released
func (h *JobsDBHandler) ReleaseStaleJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	var released int
	row := h.db.Instance.QueryRowContext(ctx, `SELECT release_stale_jobs($1)`, olderThan.String())
	err := row.Scan(&released)
	if err != nil {
		return 0, helper.NewKindError("scan", helper.KindStorage, err)
	}
	return released, nil
}

// CountPendingJobs counts jobs in pending state only
func (h *JobsDBHandler) CountPendingJobs(ctx context.Context) (int, error) {
	var count int
	row := h.db.Instance.QueryRowContext(ctx, `SELECT count_pending_jobs()`)
	err := row.Scan(&count)
	if err != nil {
		return 0, helper.NewKindError("scan", helper.KindStorage, err)
	}
	return count, nil
}

// SelectJobs lists up to limit jobs in the given status, newest first
func (h *JobsDBHandler) SelectJobs(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_jobs($1, $2)`, string(status), limit)
	if err != nil {
		return nil, helper.NewKindError("query", helper.KindStorage, err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]*model.Job, error) {
	var jobs []*model.Job
	for rows.Next() {
		job := &model.Job{}
		var kind, status string
		var payload []byte
		var claimedAt sql.NullTime
		err := rows.Scan(
			&job.ID,
			&job.RID,
			&job.DedupKey,
			&kind,
			&payload,
			&job.AttemptCount,
			&job.LastError,
			&status,
			&job.EnqueuedAt,
			&job.UpdatedAt,
			&claimedAt,
		)
		if err != nil {
			return nil, helper.NewKindError("scan", helper.KindStorage, err)
		}
		job.Kind = model.JobKind(kind)
		job.Status = model.JobStatus(status)
		job.Payload = payload
		if claimedAt.Valid {
			t := claimedAt.Time
			job.ClaimedAt = &t
		}

		jobs = append(jobs, job)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewKindError("rows error", helper.KindStorage, err)
	}

	return jobs, nil
}
