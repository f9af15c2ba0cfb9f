// Package model defines the contest domain entities and the submission
// lifecycle vocabulary shared by services, repositories and handlers.
package model

import (
	"encoding/json"
	"time"
)

// SubmissionStatus represents the lifecycle state of a submission.
type SubmissionStatus string

const (
	// StatusPending marks a submission the evaluator has not finished yet.
	StatusPending SubmissionStatus = "Pending"
	// StatusRunning is reported live by the evaluator, never persisted
	// as a final state.
	StatusRunning SubmissionStatus = "Running"

	StatusAccepted            SubmissionStatus = "Accepted"
	StatusWrongAnswer         SubmissionStatus = "WrongAnswer"
	StatusTimeLimitExceeded   SubmissionStatus = "TimeLimitExceeded"
	StatusMemoryLimitExceeded SubmissionStatus = "MemoryLimitExceeded"
	StatusRuntimeError        SubmissionStatus = "RuntimeError"
	StatusCompileError        SubmissionStatus = "CompileError"
	StatusJudgeError          SubmissionStatus = "JudgeError"
)

// Terminal reports whether the status is a final verdict. A record in a
// terminal state is never updated again.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case StatusAccepted, StatusWrongAnswer, StatusTimeLimitExceeded,
		StatusMemoryLimitExceeded, StatusRuntimeError, StatusCompileError,
		StatusJudgeError:
		return true
	}
	return false
}

// DefaultProgress is the progress value before the evaluator has run
// any test.
const DefaultProgress = "0/0"

// Submission is one evaluation request for a problem.
type Submission struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	ProblemID int64            `json:"problem_id"`
	Language  string           `json:"language"`
	SourceKey string           `json:"source_key"`
	Status    SubmissionStatus `json:"status"`

	// JobID is the evaluation job handle. Empty until dispatch succeeds,
	// immutable once set.
	JobID string `json:"job_id,omitempty"`

	// Progress is the last persisted "completed/total" counter.
	Progress string `json:"progress"`

	// TestcaseResults is the raw per-test detail JSON written by the
	// evaluator. Nil until a terminal verdict arrives.
	TestcaseResults json.RawMessage `json:"testcase_results,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
}

// ParsedTestcaseResults decodes the per-test detail leniently: invalid
// or absent JSON yields nil rather than an error.
func (s *Submission) ParsedTestcaseResults() []TestcaseResult {
	if len(s.TestcaseResults) == 0 {
		return nil
	}
	var results []TestcaseResult
	if err := json.Unmarshal(s.TestcaseResults, &results); err != nil {
		return nil
	}
	return results
}

// TestcaseResult is one test's outcome inside the per-test detail JSON.
type TestcaseResult struct {
	TestID   string           `json:"test_id"`
	Verdict  SubmissionStatus `json:"verdict"`
	TimeMs   int64            `json:"time_ms"`
	MemoryKB int64            `json:"memory_kb"`
}
