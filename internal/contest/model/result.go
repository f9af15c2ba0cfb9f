package model

import (
	"encoding/json"
	"time"
)

// EvaluationResult is the completion event the evaluator publishes when
// a job reaches a terminal verdict.
type EvaluationResult struct {
	SubmissionID    int64            `json:"submission_id"`
	Status          SubmissionStatus `json:"status"`
	Progress        string           `json:"progress"`
	TestcaseResults json.RawMessage  `json:"testcase_results,omitempty"`
	RegistrationID  *int64           `json:"registration_id,omitempty"`
	Points          int              `json:"points"`
	FinishedAt      time.Time        `json:"finished_at"`
}
