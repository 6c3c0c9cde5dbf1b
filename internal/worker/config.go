package worker

import (
	"fmt"
	"time"
)

// Config tunes the job worker. Billing adjustment jobs call an external
// provider, so timeouts are sized for network calls rather than CPU work.
type Config struct {
	// Concurrency is the number of goroutines polling the jobs table.
	Concurrency int

	// PollInterval is how long an idle goroutine waits before polling again.
	PollInterval time.Duration

	// MaxBatch caps how many jobs one goroutine drains per poll before it
	// yields to the ticker again.
	MaxBatch int

	// JobTimeout bounds a single handler call. The handler's context is
	// canceled when it expires and the attempt counts as a failure.
	JobTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for in-flight jobs.
	ShutdownTimeout time.Duration

	// StaleJobThreshold is the age at which a 'running' job is assumed to
	// belong to a crashed process and is returned to 'pending' on startup.
	// It must exceed JobTimeout or live jobs would be picked up twice.
	StaleJobThreshold time.Duration
}

// DefaultConfig returns the settings used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      5 * time.Second,
		MaxBatch:          10,
		JobTimeout:        2 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Concurrency < 1 || c.Concurrency > 100 {
		return fmt.Errorf("concurrency must be between 1 and 100, got %d", c.Concurrency)
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll interval must be at least 1 second, got %v", c.PollInterval)
	}
	if c.MaxBatch < 1 {
		return fmt.Errorf("max batch must be at least 1, got %d", c.MaxBatch)
	}
	if c.JobTimeout < time.Second {
		return fmt.Errorf("job timeout must be at least 1 second, got %v", c.JobTimeout)
	}
	if c.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	if c.StaleJobThreshold <= c.JobTimeout {
		return fmt.Errorf("stale job threshold (%v) must exceed job timeout (%v)", c.StaleJobThreshold, c.JobTimeout)
	}
	return nil
}
