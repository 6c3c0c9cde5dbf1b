package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/repository"
)

type recordingQueue struct {
	params []repository.EnqueueJobParams
	err    error
}

func (q *recordingQueue) EnqueueJob(_ context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	if q.err != nil {
		return repository.Job{}, q.err
	}
	q.params = append(q.params, arg)
	return repository.Job{ID: uuid.New(), JobType: arg.JobType, Payload: arg.Payload}, nil
}

// =============================================================================
// Enqueue Tests
// =============================================================================

func TestEnqueueJob_Defaults(t *testing.T) {
	q := &recordingQueue{}
	before := time.Now()

	job, err := EnqueueJob(context.Background(), q, "sync", map[string]int{"n": 1})
	require.NoError(t, err)
	require.Len(t, q.params, 1)

	p := q.params[0]
	assert.Equal(t, "sync", job.JobType)
	assert.Equal(t, int32(PriorityNormal), p.Priority)
	assert.Equal(t, int32(defaultMaxAttempts), p.MaxAttempts)
	assert.False(t, p.ScheduledAt.Before(before))
	assert.JSONEq(t, `{"n":1}`, string(p.Payload))
}

func TestEnqueueJob_OptionsApplyInOrder(t *testing.T) {
	q := &recordingQueue{}
	before := time.Now()

	_, err := EnqueueJob(context.Background(), q, "sync", struct{}{},
		WithPriority(PriorityLow),
		WithMaxAttempts(1),
		WithMaxAttempts(7),
		WithDelay(time.Hour),
	)
	require.NoError(t, err)

	p := q.params[0]
	assert.Equal(t, int32(PriorityLow), p.Priority)
	assert.Equal(t, int32(7), p.MaxAttempts)
	assert.WithinDuration(t, before.Add(time.Hour), p.ScheduledAt, 5*time.Second)
}

func TestEnqueueJob_Errors(t *testing.T) {
	_, err := EnqueueJob(context.Background(), &recordingQueue{}, "sync", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal sync payload")

	_, err = EnqueueJob(context.Background(), &recordingQueue{err: errors.New("db down")}, "sync", struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enqueue sync")
}

func TestEnqueueApplyBillingAdjustment(t *testing.T) {
	q := &recordingQueue{}
	id := uuid.New()

	_, err := EnqueueApplyBillingAdjustment(context.Background(), q, id)
	require.NoError(t, err)

	p := q.params[0]
	assert.Equal(t, JobTypeApplyBillingAdjustment, p.JobType)
	assert.Equal(t, int32(PriorityHigh), p.Priority)
	assert.Equal(t, int32(adjustmentMaxAttempts), p.MaxAttempts)

	var payload ApplyBillingAdjustmentPayload
	require.NoError(t, json.Unmarshal(p.Payload, &payload))
	assert.Equal(t, id, payload.AdjustmentID)
}

func TestEnqueueApplyBillingAdjustment_CallerOptionsWin(t *testing.T) {
	q := &recordingQueue{}

	_, err := EnqueueApplyBillingAdjustment(context.Background(), q, uuid.New(), WithMaxAttempts(2))
	require.NoError(t, err)
	assert.Equal(t, int32(2), q.params[0].MaxAttempts)
}
