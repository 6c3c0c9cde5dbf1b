package metrics

import "time"

// JobStarted should be called when a job begins processing
func JobStarted(jobType string) {
	JobsInFlight.WithLabelValues(jobType).Inc()
}

// JobCompleted records a successful job completion
func JobCompleted(jobType string, duration time.Duration) {
	JobsInFlight.WithLabelValues(jobType).Dec()
	JobsTotal.WithLabelValues(jobType, "completed").Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// JobFailed records a job failure. Permanent failures will not be retried.
func JobFailed(jobType string, duration time.Duration, permanent bool) {
	JobsInFlight.WithLabelValues(jobType).Dec()
	status := "retrying"
	if permanent {
		status = "failed"
	}
	JobsTotal.WithLabelValues(jobType, status).Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// JobRetried records a job retry attempt
func JobRetried(jobType string) {
	JobRetriesTotal.WithLabelValues(jobType).Inc()
}

// SetJobCounts replaces the queue snapshot. Label pairs absent from counts
// are dropped.
func SetJobCounts(counts map[[2]string]int64) {
	JobsByStatus.Reset()
	for labels, n := range counts {
		JobsByStatus.WithLabelValues(labels[0], labels[1]).Set(float64(n))
	}
}
