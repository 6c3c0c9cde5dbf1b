package worker

import (
	"context"
	"errors"
)

// JobHandler executes one job type. Type must match the job_type column the
// job was enqueued with.
type JobHandler interface {
	Type() string

	// Handle runs the job. payload is the JSON stored at enqueue time.
	// Returning a PermanentError fails the job without further attempts.
	Handle(ctx context.Context, payload []byte) error
}

// HandlerFunc adapts a function to a JobHandler for jobType.
func HandlerFunc(jobType string, fn func(ctx context.Context, payload []byte) error) JobHandler {
	return handlerFunc{jobType: jobType, fn: fn}
}

type handlerFunc struct {
	jobType string
	fn      func(ctx context.Context, payload []byte) error
}

func (h handlerFunc) Type() string { return h.jobType }

func (h handlerFunc) Handle(ctx context.Context, payload []byte) error { return h.fn(ctx, payload) }

// Attempt identifies which try of a job is running. Number is 1-based.
type Attempt struct {
	Number int32
	Max    int32
}

// Final reports whether a failure now exhausts the job's attempts.
func (a Attempt) Final() bool {
	return a.Max > 0 && a.Number >= a.Max
}

type attemptKey struct{}

// WithAttempt returns a context carrying a.
func WithAttempt(ctx context.Context, a Attempt) context.Context {
	return context.WithValue(ctx, attemptKey{}, a)
}

// AttemptFromContext returns the attempt the worker is running, if any.
func AttemptFromContext(ctx context.Context) (Attempt, bool) {
	a, ok := ctx.Value(attemptKey{}).(Attempt)
	return a, ok
}

// PermanentError marks a failure that retrying cannot fix, such as a
// malformed payload or a declined card.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps err so the worker does not retry it.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err or anything it wraps is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
