package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sableword/presswork/internal/domain"
	"github.com/sableword/presswork/internal/store"
)

// DispatcherConfig holds tuning knobs for one dispatcher.
type DispatcherConfig struct {
	// BatchSize caps how many jobs one tick reserves.
	BatchSize int

	// MaxAttempts bounds reservation attempts before a job is archived.
	MaxAttempts int

	// RetryDelay defers a failed job before its next attempt. The delay is
	// fixed for every attempt.
	RetryDelay time.Duration

	// JobTimeout bounds a single handler execution.
	JobTimeout time.Duration

	// Workers is the number of goroutines executing jobs within one batch.
	Workers int
}

// DefaultDispatcherConfig returns a DispatcherConfig with reasonable defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BatchSize:   50,
		MaxAttempts: 3,
		RetryDelay:  5 * time.Minute,
		JobTimeout:  2 * time.Minute,
		Workers:     4,
	}
}

// Dispatcher drains the job queue one batch per tick. Each tick reserves up
// to BatchSize eligible jobs in one atomic claim, fans them out across a
// bounded worker pool, and settles every job exactly once: completed,
// released for retry, or archived. Handler failures are isolated per job;
// only a failure to reserve aborts the tick.
type Dispatcher struct {
	jobs     store.JobStore
	handlers *HandlerRegistry
	config   DispatcherConfig
	logger   *slog.Logger

	// now is the clock source, injectable for tests.
	now func() time.Time
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherClock overrides the dispatcher's time source.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a Dispatcher over the given store and handler
// registry. Invalid config values fall back to defaults.
func NewDispatcher(
	jobs store.JobStore,
	handlers *HandlerRegistry,
	config DispatcherConfig,
	logger *slog.Logger,
	opts ...DispatcherOption,
) *Dispatcher {
	defaults := DefaultDispatcherConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}

	d := &Dispatcher{
		jobs:     jobs,
		handlers: handlers,
		config:   config,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Tick processes one batch. It returns an error only when the reservation
// itself fails; individual job outcomes never abort the batch. A tick with
// no eligible jobs is a cheap no-op.
func (d *Dispatcher) Tick(ctx context.Context) error {
	batch, err := d.jobs.ReserveBatch(ctx, d.config.MaxAttempts, d.config.BatchSize)
	if err != nil {
		d.logger.Error("failed to reserve job batch, skipping tick", "error", err)
		return fmt.Errorf("failed to reserve job batch: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	d.logger.Info("dispatching job batch",
		"batch_size", len(batch),
		"workers", d.config.Workers)

	jobCh := make(chan *domain.Job)
	var wg sync.WaitGroup
	for i := 0; i < d.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobCh {
				d.process(ctx, job, workerID)
			}
		}(i)
	}

	for _, job := range batch {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()

	return nil
}

// Runner adapts the dispatcher to a schedule runner so a recurring trigger
// can drive ticks.
func (d *Dispatcher) Runner() func(ctx context.Context) error {
	return d.Tick
}

// process settles a single reserved job.
func (d *Dispatcher) process(ctx context.Context, job *domain.Job, workerID int) {
	logger := d.logger.With(
		"job_id", job.ID,
		"job_type", job.JobType,
		"attempt", job.Attempts,
		"worker_id", workerID,
	)

	handler, err := d.handlers.Resolve(job.JobType)
	if err != nil {
		// No handler can ever run this job; retrying is pointless.
		logger.Error("archiving job with no registered handler", "error", err)
		if archiveErr := d.jobs.ArchiveFailure(ctx, job, err); archiveErr != nil {
			logger.Error("failed to archive job", "error", archiveErr)
		}
		return
	}

	logger.Info("processing job")
	start := d.now()
	execErr := d.execute(ctx, handler, job)
	duration := d.now().Sub(start)

	if execErr == nil {
		logger.Info("job completed", "duration", duration)
		if err := d.jobs.Complete(ctx, job.ID, duration); err != nil {
			logger.Error("failed to record job completion", "error", err)
		}
		return
	}

	if job.Attempts >= d.config.MaxAttempts {
		logger.Error("job failed permanently, archiving",
			"error", execErr,
			"attempts", job.Attempts)
		if err := d.jobs.ArchiveFailure(ctx, job, execErr); err != nil {
			logger.Error("failed to archive job", "error", err)
		}
		return
	}

	nextAvailableAt := d.now().Add(d.config.RetryDelay)
	logger.Warn("job failed, releasing for retry",
		"error", execErr,
		"next_available_at", nextAvailableAt)
	if err := d.jobs.ReleaseForRetry(ctx, job.ID, nextAvailableAt); err != nil {
		logger.Error("failed to release job for retry", "error", err)
	}
}

// execute runs the handler under the per-job timeout, converting panics and
// deadline expirations into ordinary errors.
func (d *Dispatcher) execute(ctx context.Context, handler Handler, job *domain.Job) (err error) {
	execCtx, cancel := context.WithTimeout(ctx, d.config.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	err = handler.Handle(execCtx, job)
	if err != nil && execCtx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("%w after %s: %v", ErrJobTimeout, d.config.JobTimeout, err)
	}
	return err
}
