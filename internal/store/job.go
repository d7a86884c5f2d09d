package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sableword/presswork/internal/domain"
)

// PushOptions controls how a job is inserted into the live queue.
type PushOptions struct {
	// Priority orders reservation; higher values dispatch first. Default 0.
	Priority int

	// Delay postpones the job: available_at is set to now + Delay.
	Delay time.Duration

	// Unique suppresses insertion when a pending job with an identical
	// (job_type, payload) pair already exists; the existing job's ID is
	// returned instead.
	Unique bool
}

// QueueStats summarizes the live queue for monitoring.
type QueueStats struct {
	// Total is the number of rows in the live queue (pending + reserved).
	Total int

	// Pending is the number of unreserved jobs.
	Pending int

	// Reserved is the number of jobs currently leased by workers.
	Reserved int

	// Stuck is the number of jobs whose reservation is older than the
	// stuck threshold, signaling a crashed worker that never completed
	// or released its lease.
	Stuck int

	// ByType breaks the live queue down by job type.
	ByType map[string]int
}

// CompletionStats summarizes the completion log against the failure archive
// over a time window, used for success-rate monitoring.
type CompletionStats struct {
	Completed int
	Failed    int
}

// JobStore defines the interface for the durable job queue. It is the single
// source of truth for job state; all mutation goes through these operations
// so that concurrent dispatchers over a shared database never double-reserve.
// Version: 1.0
type JobStore interface {
	// Push inserts a job with available_at = now + opts.Delay and returns
	// its assigned ID. With opts.Unique set, an identical pending job short
	// circuits the insert and its ID is returned. Returns an error wrapping
	// ErrStorage on write failure.
	Push(ctx context.Context, jobType string, payload json.RawMessage, opts PushOptions) (int64, error)

	// ReserveBatch atomically claims up to batchSize eligible jobs, ordered
	// by priority descending then created_at ascending. Each claimed job has
	// reserved_at set and attempts incremented before it is returned. A job
	// is eligible iff it is unreserved, available, and below maxAttempts.
	// Two concurrent callers never receive the same job.
	ReserveBatch(ctx context.Context, maxAttempts, batchSize int) ([]*domain.Job, error)

	// Complete removes a finished job from the live queue and appends a
	// completion-log entry recording how long the handler ran. Completing a
	// job that is already gone is a no-op, not an error.
	Complete(ctx context.Context, jobID int64, duration time.Duration) error

	// ReleaseForRetry clears the job's reservation and defers it until
	// nextAvailableAt. Used when a handler fails but attempts remain.
	ReleaseForRetry(ctx context.Context, jobID int64, nextAvailableAt time.Time) error

	// ArchiveFailure appends the job to the immutable failure archive with
	// full payload and error context, then deletes the live row. Both writes
	// happen in one transaction.
	ArchiveFailure(ctx context.Context, job *domain.Job, jobErr error) error

	// Stats summarizes the live queue. Reservations older than
	// stuckThreshold count as stuck.
	Stats(ctx context.Context, stuckThreshold time.Duration) (*QueueStats, error)

	// CompletionStats counts completion-log and failure-archive entries for
	// the given job types since the given instant. An empty jobTypes slice
	// counts all types.
	CompletionStats(ctx context.Context, jobTypes []string, since time.Time) (*CompletionStats, error)

	// FailedJobs returns archive entries newest first, up to limit, for
	// operator inspection.
	FailedJobs(ctx context.Context, limit int) ([]*domain.FailedJob, error)

	// WithTx returns a new JobStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller.
	WithTx(tx *sql.Tx) JobStore
}
