package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sableword/presswork/internal/domain"
	"github.com/sableword/presswork/internal/platform/logger"
	"github.com/sableword/presswork/internal/store"
)

// jobColumns is the column list every job query returns, in scanJob order.
const jobColumns = "id, job_type, payload, priority, attempts, reserved_at, available_at, created_at, updated_at"

// JobStore implements the store.JobStore interface using PostgreSQL.
type JobStore struct {
	db store.DBTX
}

var _ store.JobStore = (*JobStore)(nil)

// NewJobStore creates a new JobStore backed by the given connection or
// transaction.
func NewJobStore(db store.DBTX) *JobStore {
	return &JobStore{db: db}
}

// WithTx returns a JobStore bound to the provided transaction.
func (s *JobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &JobStore{db: tx}
}

// payloadHash fingerprints a payload for uniqueness checks. The hash lives in
// its own indexed column so the check never compares full jsonb documents.
func payloadHash(payload json.RawMessage) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *JobStore) Push(
	ctx context.Context,
	jobType string,
	payload json.RawMessage,
	opts store.PushOptions,
) (int64, error) {
	log := logger.FromContext(ctx)

	candidate := domain.Job{JobType: jobType, Payload: payload}
	if err := candidate.Validate(); err != nil {
		return 0, err
	}
	if opts.Delay < 0 {
		return 0, domain.ErrNegativeJobDelay
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	now := time.Now().UTC()
	availableAt := now.Add(opts.Delay)
	hash := payloadHash(payload)

	if opts.Unique {
		return s.pushUnique(ctx, jobType, payload, hash, opts.Priority, availableAt, now)
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO jobs (job_type, payload, payload_hash, priority, attempts, available_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $6)
		RETURNING id
	`, jobType, []byte(payload), hash, opts.Priority, availableAt, now).Scan(&id)
	if err != nil {
		log.Error("failed to push job",
			"job_type", jobType,
			"error", err)
		return 0, MapError(err)
	}

	return id, nil
}

// pushUnique inserts only when no pending job carries the same type and
// payload fingerprint, returning the existing job's id otherwise. The check
// and insert run in one transaction so concurrent unique pushes converge on
// a single row.
func (s *JobStore) pushUnique(
	ctx context.Context,
	jobType string,
	payload json.RawMessage,
	hash string,
	priority int,
	availableAt, now time.Time,
) (int64, error) {
	run := func(ctx context.Context, db store.DBTX) (int64, error) {
		var existingID int64
		err := db.QueryRowContext(ctx, `
			SELECT id FROM jobs
			WHERE job_type = $1 AND payload_hash = $2 AND reserved_at IS NULL
			ORDER BY id ASC
			LIMIT 1
		`, jobType, hash).Scan(&existingID)
		if err == nil {
			return existingID, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, MapError(err)
		}

		var id int64
		err = db.QueryRowContext(ctx, `
			INSERT INTO jobs (job_type, payload, payload_hash, priority, attempts, available_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 0, $5, $6, $6)
			RETURNING id
		`, jobType, []byte(payload), hash, priority, availableAt, now).Scan(&id)
		if err != nil {
			return 0, MapError(err)
		}
		return id, nil
	}

	// Already inside a caller-managed transaction: run directly.
	db, ok := s.db.(*sql.DB)
	if !ok {
		return run(ctx, s.db)
	}

	var id int64
	err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		var runErr error
		id, runErr = run(ctx, tx)
		return runErr
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *JobStore) ReserveBatch(
	ctx context.Context,
	maxAttempts, batchSize int,
) ([]*domain.Job, error) {
	log := logger.FromContext(ctx)

	now := time.Now().UTC()
	rows, err := s.db.QueryContext(ctx, `
		UPDATE jobs
		SET reserved_at = $1, attempts = attempts + 1, updated_at = $1
		WHERE id IN (
			SELECT id FROM jobs
			WHERE reserved_at IS NULL AND available_at <= $1 AND attempts < $2
			ORDER BY priority DESC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $3
		)
		RETURNING `+jobColumns+`
	`, now, maxAttempts, batchSize)
	if err != nil {
		log.Error("failed to reserve job batch", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			log.Error("failed to scan reserved job", "error", err)
			return nil, MapError(err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	// RETURNING does not promise the subquery's order, so restore it here:
	// callers execute the batch highest priority first.
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].Priority != jobs[j].Priority {
			return jobs[i].Priority > jobs[j].Priority
		}
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})

	return jobs, nil
}

func (s *JobStore) Complete(ctx context.Context, jobID int64, duration time.Duration) error {
	log := logger.FromContext(ctx)

	run := func(ctx context.Context, db store.DBTX) error {
		var jobType string
		err := db.QueryRowContext(ctx, `
			DELETE FROM jobs WHERE id = $1 RETURNING job_type
		`, jobID).Scan(&jobType)
		if errors.Is(err, sql.ErrNoRows) {
			// Already settled; completion is idempotent.
			return nil
		}
		if err != nil {
			return MapError(err)
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO job_completions (job_id, job_type, duration_ms, completed_at)
			VALUES ($1, $2, $3, $4)
		`, jobID, jobType, duration.Milliseconds(), time.Now().UTC())
		if err != nil {
			return MapError(err)
		}
		return nil
	}

	db, ok := s.db.(*sql.DB)
	if !ok {
		return run(ctx, s.db)
	}
	err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		return run(ctx, tx)
	})
	if err != nil {
		log.Error("failed to complete job", "job_id", jobID, "error", err)
	}
	return err
}

func (s *JobStore) ReleaseForRetry(
	ctx context.Context,
	jobID int64,
	nextAvailableAt time.Time,
) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET reserved_at = NULL, available_at = $2, updated_at = $3
		WHERE id = $1
	`, jobID, nextAvailableAt, time.Now().UTC())
	if err != nil {
		log.Error("failed to release job for retry", "job_id", jobID, "error", err)
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "job"); err != nil {
		return fmt.Errorf("%w: job %d", store.ErrJobNotFound, jobID)
	}
	return nil
}

func (s *JobStore) ArchiveFailure(ctx context.Context, job *domain.Job, jobErr error) error {
	log := logger.FromContext(ctx)

	failed := domain.NewFailedJob(job, jobErr)
	payload := job.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	run := func(ctx context.Context, db store.DBTX) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO failed_jobs (id, job_id, job_type, payload, error, attempts, failed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, failed.ID, failed.JobID, failed.JobType, []byte(payload), failed.Error,
			failed.Attempts, failed.FailedAt)
		if err != nil {
			return MapError(err)
		}

		// The live row may already be gone if a competing dispatcher settled
		// the job; the archive entry still stands.
		_, err = db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, job.ID)
		if err != nil {
			return MapError(err)
		}
		return nil
	}

	db, ok := s.db.(*sql.DB)
	if !ok {
		return run(ctx, s.db)
	}
	err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		return run(ctx, tx)
	})
	if err != nil {
		log.Error("failed to archive job",
			"job_id", job.ID,
			"job_type", job.JobType,
			"error", err)
	}
	return err
}

func (s *JobStore) Stats(
	ctx context.Context,
	stuckThreshold time.Duration,
) (*store.QueueStats, error) {
	log := logger.FromContext(ctx)

	now := time.Now().UTC()
	stuckBefore := now.Add(-stuckThreshold)

	stats := &store.QueueStats{ByType: make(map[string]int)}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE reserved_at IS NULL),
			COUNT(*) FILTER (WHERE reserved_at IS NOT NULL),
			COUNT(*) FILTER (WHERE reserved_at IS NOT NULL AND reserved_at < $1)
		FROM jobs
	`, stuckBefore).Scan(&stats.Total, &stats.Pending, &stats.Reserved, &stats.Stuck)
	if err != nil {
		log.Error("failed to load queue stats", "error", err)
		return nil, MapError(err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT job_type, COUNT(*) FROM jobs GROUP BY job_type
	`)
	if err != nil {
		log.Error("failed to load per-type queue stats", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var jobType string
		var count int
		if err := rows.Scan(&jobType, &count); err != nil {
			return nil, MapError(err)
		}
		stats.ByType[jobType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return stats, nil
}

func (s *JobStore) CompletionStats(
	ctx context.Context,
	jobTypes []string,
	since time.Time,
) (*store.CompletionStats, error) {
	log := logger.FromContext(ctx)

	stats := &store.CompletionStats{}

	var err error
	if len(jobTypes) == 0 {
		err = s.db.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM job_completions WHERE completed_at >= $1),
				(SELECT COUNT(*) FROM failed_jobs WHERE failed_at >= $1)
		`, since).Scan(&stats.Completed, &stats.Failed)
	} else {
		err = s.db.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM job_completions WHERE completed_at >= $1 AND job_type = ANY($2)),
				(SELECT COUNT(*) FROM failed_jobs WHERE failed_at >= $1 AND job_type = ANY($2))
		`, since, jobTypes).Scan(&stats.Completed, &stats.Failed)
	}
	if err != nil {
		log.Error("failed to load completion stats", "error", err)
		return nil, MapError(err)
	}

	return stats, nil
}

func (s *JobStore) FailedJobs(ctx context.Context, limit int) ([]*domain.FailedJob, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, job_type, payload, error, attempts, failed_at
		FROM failed_jobs
		ORDER BY failed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		log.Error("failed to load failure archive", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var failed []*domain.FailedJob
	for rows.Next() {
		var f domain.FailedJob
		var payload []byte
		if err := rows.Scan(&f.ID, &f.JobID, &f.JobType, &payload, &f.Error,
			&f.Attempts, &f.FailedAt); err != nil {
			return nil, MapError(err)
		}
		f.Payload = json.RawMessage(payload)
		failed = append(failed, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return failed, nil
}

// scanJob reads one job row in jobColumns order.
func scanJob(rows *sql.Rows) (*domain.Job, error) {
	var job domain.Job
	var payload []byte
	var reservedAt sql.NullTime

	err := rows.Scan(
		&job.ID,
		&job.JobType,
		&payload,
		&job.Priority,
		&job.Attempts,
		&reservedAt,
		&job.AvailableAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Payload = json.RawMessage(payload)
	if reservedAt.Valid {
		t := reservedAt.Time
		job.ReservedAt = &t
	}
	return &job, nil
}
