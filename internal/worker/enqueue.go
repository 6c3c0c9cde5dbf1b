package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/repository"
)

// JobTypeApplyBillingAdjustment is the job type of ApplyBillingAdjustmentPayload.
const JobTypeApplyBillingAdjustment = "apply_billing_adjustment"

// Higher priorities are claimed first.
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

const (
	defaultMaxAttempts    = 3
	adjustmentMaxAttempts = 5
)

// ApplyBillingAdjustmentPayload points at a pending adjustment row. Amounts
// are read from the row when the job runs, never from the payload.
type ApplyBillingAdjustmentPayload struct {
	AdjustmentID uuid.UUID `json:"adjustment_id"`
}

// Queue is the subset of repository.Queries used to enqueue. Passing
// transaction-scoped queries keeps the job invisible until commit.
type Queue interface {
	EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error)
}

// EnqueueOption adjusts the parameters of a job before it is inserted.
type EnqueueOption func(*repository.EnqueueJobParams)

func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) { p.Priority = priority }
}

func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) { p.MaxAttempts = attempts }
}

// WithDelay holds the job back until delay has elapsed.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) { p.ScheduledAt = p.ScheduledAt.Add(delay) }
}

// EnqueueJob inserts a job of the given type with a JSON payload. Options
// are applied in order after the defaults.
func EnqueueJob(ctx context.Context, q Queue, jobType string, payload any, opts ...EnqueueOption) (repository.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal %s payload: %w", jobType, err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     raw,
		Priority:    PriorityNormal,
		MaxAttempts: defaultMaxAttempts,
		ScheduledAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&params)
	}

	job, err := q.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return job, nil
}

// EnqueueApplyBillingAdjustment queues the provider call for a committed
// adjustment. It runs at high priority with extra attempts since the
// organization has already been charged or credited in the record store.
func EnqueueApplyBillingAdjustment(ctx context.Context, q Queue, adjustmentID uuid.UUID, opts ...EnqueueOption) (repository.Job, error) {
	opts = append([]EnqueueOption{WithPriority(PriorityHigh), WithMaxAttempts(adjustmentMaxAttempts)}, opts...)
	return EnqueueJob(ctx, q, JobTypeApplyBillingAdjustment, ApplyBillingAdjustmentPayload{AdjustmentID: adjustmentID}, opts...)
}
