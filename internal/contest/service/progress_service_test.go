package service_test

import (
	"context"
	"testing"

	"arbiter/internal/contest/model"
	"arbiter/internal/contest/service"
	"arbiter/internal/jobstore"
	appErr "arbiter/pkg/errors"
)

func newProgressEnv(t *testing.T) (*fakeSubmissionRepo, *fakeJobStore, *service.ProgressService) {
	t.Helper()
	submissionRepo := newFakeSubmissionRepo()
	store := newFakeJobStore()
	svc, err := service.NewProgressService(submissionRepo, store, service.TimeoutConfig{})
	if err != nil {
		t.Fatalf("create progress service failed: %v", err)
	}
	return submissionRepo, store, svc
}

func TestGetProgressServesLiveCounter(t *testing.T) {
	t.Parallel()
	submissionRepo, store, svc := newProgressEnv(t)
	submissionRepo.put(&model.Submission{
		ID:       1,
		UserID:   7,
		Status:   model.StatusRunning,
		JobID:    "job-1",
		Progress: "2/10",
	})
	store.statuses["job-1"] = jobstore.JobStatus{Status: "started", Progress: "7/10"}

	info, err := svc.GetProgress(context.Background(), 1)
	if err != nil {
		t.Fatalf("get progress failed: %v", err)
	}
	if info.Progress != "7/10" {
		t.Fatalf("progress = %q, want live 7/10", info.Progress)
	}
	if info.Status != model.StatusRunning {
		t.Fatalf("status = %s, want Running", info.Status)
	}
}

func TestGetProgressFallsBackWhenJobUnknown(t *testing.T) {
	t.Parallel()
	submissionRepo, _, svc := newProgressEnv(t)
	submissionRepo.put(&model.Submission{
		ID:       1,
		Status:   model.StatusRunning,
		JobID:    "job-gone",
		Progress: "4/10",
	})

	info, err := svc.GetProgress(context.Background(), 1)
	if err != nil {
		t.Fatalf("get progress failed: %v", err)
	}
	if info.Progress != "4/10" {
		t.Fatalf("progress = %q, want persisted 4/10", info.Progress)
	}
}

func TestGetProgressFallsBackWhenStoreUnreachable(t *testing.T) {
	t.Parallel()
	submissionRepo, store, svc := newProgressEnv(t)
	submissionRepo.put(&model.Submission{
		ID:       1,
		Status:   model.StatusRunning,
		JobID:    "job-1",
		Progress: "4/10",
	})
	store.statusErr = context.DeadlineExceeded

	info, err := svc.GetProgress(context.Background(), 1)
	if err != nil {
		t.Fatalf("get progress failed: %v", err)
	}
	if info.Progress != "4/10" {
		t.Fatalf("progress = %q, want persisted 4/10", info.Progress)
	}
}

func TestGetProgressSkipsStoreForTerminalSubmission(t *testing.T) {
	t.Parallel()
	submissionRepo, store, svc := newProgressEnv(t)
	submissionRepo.put(&model.Submission{
		ID:       1,
		Status:   model.StatusAccepted,
		JobID:    "job-1",
		Progress: "10/10",
	})
	store.statusErr = context.DeadlineExceeded

	info, err := svc.GetProgress(context.Background(), 1)
	if err != nil {
		t.Fatalf("get progress failed: %v", err)
	}
	if info.Progress != "10/10" {
		t.Fatalf("progress = %q, want final 10/10", info.Progress)
	}
}

func TestGetProgressDefaultsEmptyCounter(t *testing.T) {
	t.Parallel()
	submissionRepo, _, svc := newProgressEnv(t)
	submissionRepo.put(&model.Submission{
		ID:     1,
		Status: model.StatusPending,
	})

	info, err := svc.GetProgress(context.Background(), 1)
	if err != nil {
		t.Fatalf("get progress failed: %v", err)
	}
	if info.Progress != model.DefaultProgress {
		t.Fatalf("progress = %q, want %q", info.Progress, model.DefaultProgress)
	}
}

func TestGetProgressMissingSubmission(t *testing.T) {
	t.Parallel()
	_, _, svc := newProgressEnv(t)

	_, err := svc.GetProgress(context.Background(), 404)
	if !appErr.Is(err, appErr.SubmissionNotFound) {
		t.Fatalf("expected SubmissionNotFound, got %v", err)
	}
}
