package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/metrics"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/repository"
)

// Worker polls the jobs table and dispatches each job to the handler
// registered for its type. Jobs are claimed inside a transaction and run
// outside it, so a slow billing call never holds a row lock.
type Worker struct {
	db       *sql.DB
	queries  *repository.Queries
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a Worker. Register handlers, then call Start.
func New(db *sql.DB, queries *repository.Queries, config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		db:       db,
		queries:  queries,
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Register adds a handler. A second handler for the same type replaces the
// first. Not safe to call after Start.
func (w *Worker) Register(handler JobHandler) {
	jobType := handler.Type()
	if _, exists := w.handlers[jobType]; exists {
		w.logger.Warn("Overwriting existing handler", "job_type", jobType)
	}
	w.handlers[jobType] = handler
	w.logger.Debug("Registered job handler", "job_type", jobType)
}

// Start recovers jobs orphaned by a previous crash and launches the
// polling goroutines. They run until Stop is called or ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	if err := w.recoverStaleJobs(ctx); err != nil {
		w.logger.Error("Failed to recover stale jobs", "error", err)
	}

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i+1)
	}

	w.logger.Info("Worker started",
		"concurrency", w.config.Concurrency,
		"poll_interval", w.config.PollInterval,
		"handlers", len(w.handlers),
	)
}

// Stop signals the goroutines to exit and waits up to ShutdownTimeout for
// in-flight jobs. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopCh)
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, some jobs may still be running")
	}
}

func (w *Worker) stopping() bool {
	select {
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

// recoverStaleJobs finds jobs that have been running too long and resets them to pending.
// This handles the case where a worker crashed while processing a job.
func (w *Worker) recoverStaleJobs(ctx context.Context) error {
	thresholdSeconds := w.config.StaleJobThreshold.Seconds()
	count, err := w.queries.RecoverStaleJobs(ctx, thresholdSeconds)
	if err != nil {
		return fmt.Errorf("recover stale jobs: %w", err)
	}

	if count > 0 {
		w.logger.Warn("Recovered stale jobs", "count", count, "threshold", w.config.StaleJobThreshold)
	}

	return nil
}

// runWorker polls on every tick and drains up to MaxBatch jobs per poll,
// so a burst of adjustments is not spread across many poll intervals.
func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", workerID)
	logger.Debug("Worker started")

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			logger.Debug("Worker stopping")
			return
		case <-ctx.Done():
			logger.Debug("Worker context canceled")
			return
		case <-ticker.C:
			w.drain(ctx, logger)
			if workerID == 1 {
				w.reportQueue(ctx, logger)
			}
		}
	}
}

// reportQueue publishes job counts by type and status.
func (w *Worker) reportQueue(ctx context.Context, logger *slog.Logger) {
	rows, err := w.queries.CountJobsByStatus(ctx)
	if err != nil {
		logger.Warn("Failed to count jobs", "error", err)
		return
	}
	counts := make(map[[2]string]int64, len(rows))
	for _, row := range rows {
		counts[[2]string{row.JobType, row.Status}] = row.Count
	}
	metrics.SetJobCounts(counts)
}

// drain processes jobs until the queue is empty, MaxBatch is reached or
// the worker is stopping.
func (w *Worker) drain(ctx context.Context, logger *slog.Logger) {
	for i := 0; i < w.config.MaxBatch; i++ {
		if w.stopping() || ctx.Err() != nil {
			return
		}
		err := w.processNextJob(ctx, logger)
		switch {
		case err == nil:
		case errors.Is(err, sql.ErrNoRows):
			return
		default:
			logger.Error("Failed to process job", "error", err)
		}
	}
}

// processNextJob claims one job and runs it. Returns sql.ErrNoRows when
// the queue is empty.
func (w *Worker) processNextJob(ctx context.Context, logger *slog.Logger) error {
	job, err := w.claim(ctx)
	if err != nil {
		return err
	}

	logger = logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts+1)
	logger.Info("Processing job")

	start := time.Now()
	metrics.JobStarted(job.JobType)

	if err := w.executeJob(ctx, job, logger); err != nil {
		logger.Error("Job failed", "error", err)
		w.markJobFailed(ctx, job, err, time.Since(start))
		return fmt.Errorf("execute job: %w", err)
	}

	duration := time.Since(start)
	metrics.JobCompleted(job.JobType, duration)
	logger.Info("Job completed", "duration_ms", duration.Milliseconds())

	if err := w.markJobCompleted(ctx, job.ID, duration); err != nil {
		logger.Error("Failed to mark job as completed", "error", err)
		return err
	}
	return nil
}

// claim dequeues the next due job and marks it running in one transaction.
func (w *Worker) claim(ctx context.Context) (repository.Job, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return repository.Job{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := w.queries.WithTx(tx)

	job, err := qtx.DequeueJob(ctx)
	if err != nil {
		return repository.Job{}, err
	}
	if err := qtx.UpdateJobStarted(ctx, job.ID); err != nil {
		return repository.Job{}, fmt.Errorf("mark job started: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return repository.Job{}, fmt.Errorf("commit dequeue: %w", err)
	}
	return job, nil
}

// executeJob runs the job's handler under JobTimeout.
func (w *Worker) executeJob(ctx context.Context, job repository.Job, logger *slog.Logger) error {
	handler, ok := w.handlers[job.JobType]
	if !ok {
		return NewPermanentError(fmt.Errorf("no handler registered for job type: %s", job.JobType))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()
	// job.Attempts was read before UpdateJobStarted incremented it.
	jobCtx = WithAttempt(jobCtx, Attempt{Number: job.Attempts + 1, Max: job.MaxAttempts})

	logger.Debug("Dispatching job", "timeout", w.config.JobTimeout)
	return handler.Handle(jobCtx, job.Payload)
}

// jobResult is stored in the result column of completed jobs.
type jobResult struct {
	DurationMs int64 `json:"duration_ms"`
}

func (w *Worker) markJobCompleted(ctx context.Context, jobID uuid.UUID, duration time.Duration) error {
	result, err := json.Marshal(jobResult{DurationMs: duration.Milliseconds()})
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}

	if err := w.queries.UpdateJobCompleted(ctx, repository.UpdateJobCompletedParams{
		ID:     jobID,
		Result: pqtype.NullRawMessage{RawMessage: result, Valid: true},
	}); err != nil {
		return fmt.Errorf("update job completed: %w", err)
	}
	return nil
}

// markJobFailed records the failure. Permanent errors and the final attempt
// fail the job outright; anything else is rescheduled by UpdateJobFailed
// with exponential backoff.
func (w *Worker) markJobFailed(ctx context.Context, job repository.Job, jobErr error, duration time.Duration) {
	// job.Attempts was read before UpdateJobStarted incremented it.
	permanent := IsPermanent(jobErr)
	final := permanent || job.Attempts+1 >= job.MaxAttempts
	metrics.JobFailed(job.JobType, duration, final)

	switch {
	case permanent:
		w.logger.Warn("Job failed with permanent error, will not retry", "job_id", job.ID, "error", jobErr)
	case final:
		w.logger.Warn("Job exhausted its attempts", "job_id", job.ID, "attempts", job.Attempts+1, "error", jobErr)
	default:
		metrics.JobRetried(job.JobType)
	}

	if err := w.queries.UpdateJobFailed(ctx, repository.UpdateJobFailedParams{
		ID:           job.ID,
		ErrorMessage: sql.NullString{String: jobErr.Error(), Valid: true},
		Permanent:    permanent,
	}); err != nil {
		w.logger.Error("Failed to mark job as failed", "job_id", job.ID, "error", err)
	}
}
