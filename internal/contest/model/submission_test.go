package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"arbiter/internal/contest/model"
)

func TestTerminalStatuses(t *testing.T) {
	t.Parallel()
	terminal := []model.SubmissionStatus{
		model.StatusAccepted,
		model.StatusWrongAnswer,
		model.StatusTimeLimitExceeded,
		model.StatusMemoryLimitExceeded,
		model.StatusRuntimeError,
		model.StatusCompileError,
		model.StatusJudgeError,
	}
	for _, status := range terminal {
		if !status.Terminal() {
			t.Errorf("%s must be terminal", status)
		}
	}
	for _, status := range []model.SubmissionStatus{model.StatusPending, model.StatusRunning, ""} {
		if status.Terminal() {
			t.Errorf("%q must not be terminal", status)
		}
	}
}

func TestParsedTestcaseResultsLenient(t *testing.T) {
	t.Parallel()
	submission := &model.Submission{}
	if got := submission.ParsedTestcaseResults(); got != nil {
		t.Fatalf("empty detail = %v, want nil", got)
	}

	submission.TestcaseResults = json.RawMessage("{broken")
	if got := submission.ParsedTestcaseResults(); got != nil {
		t.Fatalf("invalid detail = %v, want nil", got)
	}

	submission.TestcaseResults = json.RawMessage(`[{"test_id":"1","verdict":"Accepted","time_ms":12,"memory_kb":2048}]`)
	results := submission.ParsedTestcaseResults()
	if len(results) != 1 {
		t.Fatalf("results = %v, want one entry", results)
	}
	if results[0].Verdict != model.StatusAccepted || results[0].TimeMs != 12 {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

func TestContestContainsIsInclusive(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 14, 14, 0, 0, 0, time.UTC)
	contest := &model.Contest{StartTime: start, EndTime: end}

	if !contest.Contains(start) {
		t.Error("start boundary must be inside the window")
	}
	if !contest.Contains(end) {
		t.Error("end boundary must be inside the window")
	}
	if !contest.Contains(start.Add(time.Hour)) {
		t.Error("mid-window timestamp must be inside the window")
	}
	if contest.Contains(start.Add(-time.Second)) {
		t.Error("before the window must be outside")
	}
	if contest.Contains(end.Add(time.Second)) {
		t.Error("after the window must be outside")
	}
}
