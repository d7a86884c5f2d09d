package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sableword/presswork/internal/redact"
)

// Built-in job type identifiers. Producers may register additional types
// through the queue's handler registry.
const (
	JobTypeContentGeneration = "content_generation"
	JobTypeSourceFetch       = "source_fetch"
	JobTypeImageOptimization = "image_optimization"
	JobTypeAnalyticsUpdate   = "analytics_update"
)

// Common validation errors for Job
var (
	ErrEmptyJobType      = errors.New("job type cannot be empty")
	ErrInvalidJobPayload = errors.New("job payload must be a valid JSON document")
	ErrNegativeJobDelay  = errors.New("job delay cannot be negative")
)

// Job represents a persisted unit of deferred work. A job sits in the live
// queue until a dispatcher reserves it; on success the row is deleted and a
// completion record is written, on permanent failure the row is moved to the
// failure archive.
type Job struct {
	// ID is a monotonically increasing identifier assigned by the store
	// at insert time. Zero until the job has been pushed.
	ID int64 `json:"id"`

	// JobType selects the handler that will execute this job.
	JobType string `json:"job_type"`

	// Payload is an opaque JSON document passed to the handler verbatim.
	Payload json.RawMessage `json:"payload"`

	// Priority orders reservation; higher values dispatch first.
	Priority int `json:"priority"`

	// Attempts counts reservation attempts so far. It only ever increases.
	Attempts int `json:"attempts"`

	// ReservedAt is set while a worker holds the lease and nil otherwise.
	ReservedAt *time.Time `json:"reserved_at,omitempty"`

	// AvailableAt is the instant before which the job must not be reserved.
	// Supports both push delay and retry backoff.
	AvailableAt time.Time `json:"available_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJob creates a new Job with the given type and payload, available
// immediately at default priority. The returned job has no ID; the store
// assigns one on push.
// Returns an error if validation fails.
func NewJob(jobType string, payload json.RawMessage) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		JobType:     jobType,
		Payload:     payload,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
// Returns an error if any field fails validation.
func (j *Job) Validate() error {
	if j.JobType == "" {
		return ErrEmptyJobType
	}

	if len(j.Payload) > 0 && !json.Valid(j.Payload) {
		return ErrInvalidJobPayload
	}

	return nil
}

// IsReserved reports whether a worker currently holds this job's lease.
func (j *Job) IsReserved() bool {
	return j.ReservedAt != nil
}

// IsEligible reports whether the job may be reserved at the given instant:
// not currently leased, available, and with attempts remaining.
func (j *Job) IsEligible(now time.Time, maxAttempts int) bool {
	return j.ReservedAt == nil && !j.AvailableAt.After(now) && j.Attempts < maxAttempts
}

// FailedJob is an entry in the append-only failure archive (dead letter log).
// It retains the full payload and error context of a job that exhausted its
// attempts, for operator inspection. Archive entries are never updated.
type FailedJob struct {
	ID       uuid.UUID       `json:"id"`
	JobID    int64           `json:"job_id"`
	JobType  string          `json:"job_type"`
	Payload  json.RawMessage `json:"payload"`
	Error    string          `json:"error"`
	Attempts int             `json:"attempts"`
	FailedAt time.Time       `json:"failed_at"`
}

// NewFailedJob builds an archive entry from a live job and the error that
// permanently failed it. The error text is scrubbed of credentials before it
// is stored: provider errors can echo back keys and connection strings.
func NewFailedJob(job *Job, jobErr error) *FailedJob {
	msg := "unknown error"
	if jobErr != nil {
		msg = redact.Error(jobErr)
	}

	return &FailedJob{
		ID:       uuid.New(),
		JobID:    job.ID,
		JobType:  job.JobType,
		Payload:  job.Payload,
		Error:    msg,
		Attempts: job.Attempts,
		FailedAt: time.Now().UTC(),
	}
}

// JobCompletion is an entry in the append-only completion log, written when a
// job finishes successfully. The health aggregator rolls these up against the
// failure archive to compute content success rates.
type JobCompletion struct {
	JobID       int64         `json:"job_id"`
	JobType     string        `json:"job_type"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
}
