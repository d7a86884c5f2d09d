package queue

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/sableword/presswork/internal/domain"
	"github.com/sableword/presswork/internal/store"
)

// MockJobStore is an in-memory JobStore for testing dispatchers and health
// checks without a database. It honors the real store's semantics: atomic
// batch reservation with priority ordering, attempt counting, completion
// logging, and the failure archive.
type MockJobStore struct {
	mu          sync.Mutex
	nextID      int64
	jobs        map[int64]*domain.Job
	completions []*domain.JobCompletion
	failures    []*domain.FailedJob

	// Now is the clock source, injectable for tests. Defaults to UTC now.
	Now func() time.Time

	// ReserveBatchErr, when set, is returned by every ReserveBatch call.
	ReserveBatchErr error

	// StatsErr, when set, is returned by every Stats call.
	StatsErr error
}

var _ store.JobStore = (*MockJobStore)(nil)

// NewMockJobStore creates an empty in-memory job store.
func NewMockJobStore() *MockJobStore {
	return &MockJobStore{
		nextID: 0,
		jobs:   make(map[int64]*domain.Job),
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *MockJobStore) Push(
	ctx context.Context,
	jobType string,
	payload json.RawMessage,
	opts store.PushOptions,
) (int64, error) {
	job, err := domain.NewJob(jobType, payload)
	if err != nil {
		return 0, err
	}
	if opts.Delay < 0 {
		return 0, domain.ErrNegativeJobDelay
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	if opts.Unique {
		for _, existing := range s.jobs {
			if existing.ReservedAt == nil &&
				existing.JobType == jobType &&
				bytes.Equal(existing.Payload, payload) {
				return existing.ID, nil
			}
		}
	}

	s.nextID++
	job.ID = s.nextID
	job.Priority = opts.Priority
	job.AvailableAt = now.Add(opts.Delay)
	job.CreatedAt = now
	job.UpdatedAt = now
	s.jobs[job.ID] = job

	return job.ID, nil
}

func (s *MockJobStore) ReserveBatch(
	ctx context.Context,
	maxAttempts, batchSize int,
) ([]*domain.Job, error) {
	if s.ReserveBatchErr != nil {
		return nil, s.ReserveBatchErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	eligible := make([]*domain.Job, 0)
	for _, job := range s.jobs {
		if job.IsEligible(now, maxAttempts) {
			eligible = append(eligible, job)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
		}
		return eligible[i].ID < eligible[j].ID
	})
	if len(eligible) > batchSize {
		eligible = eligible[:batchSize]
	}

	claimed := make([]*domain.Job, 0, len(eligible))
	for _, job := range eligible {
		reservedAt := now
		job.ReservedAt = &reservedAt
		job.Attempts++
		job.UpdatedAt = now

		copied := *job
		copiedReservedAt := reservedAt
		copied.ReservedAt = &copiedReservedAt
		claimed = append(claimed, &copied)
	}

	return claimed, nil
}

func (s *MockJobStore) Complete(ctx context.Context, jobID int64, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		// Completing an already-settled job is a no-op.
		return nil
	}

	delete(s.jobs, jobID)
	s.completions = append(s.completions, &domain.JobCompletion{
		JobID:       jobID,
		JobType:     job.JobType,
		Duration:    duration,
		CompletedAt: s.Now(),
	})
	return nil
}

func (s *MockJobStore) ReleaseForRetry(
	ctx context.Context,
	jobID int64,
	nextAvailableAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}

	job.ReservedAt = nil
	job.AvailableAt = nextAvailableAt
	job.UpdatedAt = s.Now()
	return nil
}

func (s *MockJobStore) ArchiveFailure(ctx context.Context, job *domain.Job, jobErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, job.ID)

	failed := domain.NewFailedJob(job, jobErr)
	failed.FailedAt = s.Now()
	s.failures = append(s.failures, failed)
	return nil
}

func (s *MockJobStore) Stats(
	ctx context.Context,
	stuckThreshold time.Duration,
) (*store.QueueStats, error) {
	if s.StatsErr != nil {
		return nil, s.StatsErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	stats := &store.QueueStats{ByType: make(map[string]int)}
	for _, job := range s.jobs {
		stats.Total++
		stats.ByType[job.JobType]++
		if job.ReservedAt == nil {
			stats.Pending++
			continue
		}
		stats.Reserved++
		if now.Sub(*job.ReservedAt) > stuckThreshold {
			stats.Stuck++
		}
	}
	return stats, nil
}

func (s *MockJobStore) CompletionStats(
	ctx context.Context,
	jobTypes []string,
	since time.Time,
) (*store.CompletionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match := func(jobType string) bool {
		if len(jobTypes) == 0 {
			return true
		}
		for _, t := range jobTypes {
			if t == jobType {
				return true
			}
		}
		return false
	}

	stats := &store.CompletionStats{}
	for _, c := range s.completions {
		if match(c.JobType) && !c.CompletedAt.Before(since) {
			stats.Completed++
		}
	}
	for _, f := range s.failures {
		if match(f.JobType) && !f.FailedAt.Before(since) {
			stats.Failed++
		}
	}
	return stats, nil
}

func (s *MockJobStore) FailedJobs(ctx context.Context, limit int) ([]*domain.FailedJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.FailedJob, len(s.failures))
	copy(out, s.failures)
	sort.Slice(out, func(i, j int) bool {
		return out[i].FailedAt.After(out[j].FailedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MockJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return s
}

// Job returns the live job with the given ID, or nil when it has been
// completed or archived.
func (s *MockJobStore) Job(id int64) *domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

// LiveCount returns how many jobs remain in the live queue.
func (s *MockJobStore) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Completions returns every completion-log entry recorded so far.
func (s *MockJobStore) Completions() []*domain.JobCompletion {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.JobCompletion, len(s.completions))
	copy(out, s.completions)
	return out
}
