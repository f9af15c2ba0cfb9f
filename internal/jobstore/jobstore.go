// Package jobstore is the client for the shared evaluation job store.
// The service enqueues evaluation jobs here and reads live job metadata
// back while the external evaluator works through the queue.
package jobstore

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned by FetchStatus when the handle does not
// resolve to a live job (never enqueued, expired, or already reaped).
var ErrJobNotFound = errors.New("jobstore: job not found")

// EvaluationJob is the payload handed to the evaluator. Limits are
// normalized here: memory in bytes, time in milliseconds.
type EvaluationJob struct {
	SubmissionID     int64  `json:"submission_id"`
	Language         string `json:"language"`
	SourceCode       string `json:"source_code"`
	MemoryLimitBytes int64  `json:"memory_limit_bytes"`
	TimeLimitMS      int64  `json:"time_limit_ms"`
	ProblemID        int64  `json:"problem_id"`
	RegistrationID   *int64 `json:"registration_id,omitempty"`
	Points           int    `json:"points"`
}

// JobStatus is the live metadata the evaluator maintains for a job.
type JobStatus struct {
	Status   string `json:"status"`
	Progress string `json:"progress"`
}

// JobStore abstracts the evaluation queue.
type JobStore interface {
	// Enqueue places a job on the queue and returns its handle.
	Enqueue(ctx context.Context, job EvaluationJob) (string, error)

	// FetchStatus reads the live metadata for a job handle.
	// Returns ErrJobNotFound when the handle is unknown or expired;
	// any other error indicates the store was unreachable.
	FetchStatus(ctx context.Context, jobID string) (JobStatus, error)
}
