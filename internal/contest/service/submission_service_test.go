package service_test

import (
	"context"
	"testing"
	"time"

	"arbiter/internal/contest/model"
	"arbiter/internal/contest/service"
	appErr "arbiter/pkg/errors"
)

type submissionEnv struct {
	submissionRepo   *fakeSubmissionRepo
	problemRepo      *fakeProblemRepo
	contestRepo      *fakeContestRepo
	registrationRepo *fakeRegistrationRepo
	jobStore         *fakeJobStore
	storage          *fakeStorage
	service          *service.SubmissionService
}

func newSubmissionEnv(t *testing.T) *submissionEnv {
	t.Helper()
	env := &submissionEnv{
		submissionRepo:   newFakeSubmissionRepo(),
		problemRepo:      newFakeProblemRepo(),
		contestRepo:      newFakeContestRepo(),
		registrationRepo: newFakeRegistrationRepo(),
		jobStore:         newFakeJobStore(),
		storage:          newFakeStorage(),
	}
	svc, err := service.NewSubmissionService(service.Config{
		SubmissionRepo:   env.submissionRepo,
		ProblemRepo:      env.problemRepo,
		ContestRepo:      env.contestRepo,
		RegistrationRepo: env.registrationRepo,
		JobStore:         env.jobStore,
		Storage:          env.storage,
		SourceBucket:     "sources",
		MaxCodeBytes:     1024,
	})
	if err != nil {
		t.Fatalf("create submission service failed: %v", err)
	}
	env.service = svc
	return env
}

func (env *submissionEnv) addPracticeProblem(id int64) {
	env.problemRepo.put(&model.Problem{
		ID:            id,
		Title:         "Two Sum",
		Points:        100,
		TimeLimitSec:  2,
		MemoryLimitMB: 256,
	})
}

func (env *submissionEnv) addContestProblem(problemID, contestID int64, points int) {
	env.problemRepo.put(&model.Problem{
		ID:            problemID,
		ContestID:     &contestID,
		Title:         "Matrix Paths",
		Points:        points,
		TimeLimitSec:  1,
		MemoryLimitMB: 128,
	})
}

func TestSubmitPracticeProblemDispatchesWithoutScoring(t *testing.T) {
	t.Parallel()
	env := newSubmissionEnv(t)
	env.addPracticeProblem(1)

	submission, err := env.service.Submit(context.Background(), service.SubmitInput{
		UserID:     7,
		ProblemID:  1,
		Language:   "cpp",
		SourceCode: "int main() {}",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if submission.ID == 0 {
		t.Fatal("expected persisted submission id")
	}
	if submission.Status != model.StatusPending {
		t.Fatalf("expected Pending status, got %s", submission.Status)
	}
	if submission.Progress != model.DefaultProgress {
		t.Fatalf("expected default progress, got %q", submission.Progress)
	}
	if submission.JobID == "" {
		t.Fatal("expected job handle on submission")
	}

	job, ok := env.jobStore.lastJob()
	if !ok {
		t.Fatal("expected an enqueued job")
	}
	if job.SubmissionID != submission.ID {
		t.Fatalf("job submission id = %d, want %d", job.SubmissionID, submission.ID)
	}
	if job.RegistrationID != nil {
		t.Fatalf("expected nil registration id, got %d", *job.RegistrationID)
	}
	if job.MemoryLimitBytes != 256<<20 {
		t.Fatalf("memory limit = %d, want %d", job.MemoryLimitBytes, int64(256)<<20)
	}
	if job.TimeLimitMS != 2000 {
		t.Fatalf("time limit = %d ms, want 2000", job.TimeLimitMS)
	}
}

func TestSubmitContestProblemCarriesScoringInfo(t *testing.T) {
	t.Parallel()
	env := newSubmissionEnv(t)
	env.addContestProblem(2, 5, 300)
	env.contestRepo.put(&model.Contest{
		ID:        5,
		Name:      "Weekly Round",
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	})
	env.registrationRepo.put(&model.Registration{ID: 11, UserID: 7, ContestID: 5})

	_, err := env.service.Submit(context.Background(), service.SubmitInput{
		UserID:     7,
		ProblemID:  2,
		Language:   "python",
		SourceCode: "print(1)",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	job, ok := env.jobStore.lastJob()
	if !ok {
		t.Fatal("expected an enqueued job")
	}
	if job.RegistrationID == nil || *job.RegistrationID != 11 {
		t.Fatalf("expected registration id 11, got %v", job.RegistrationID)
	}
	if job.Points != 300 {
		t.Fatalf("points = %d, want 300", job.Points)
	}
}

func TestSubmitUnregisteredUserGetsNoScoring(t *testing.T) {
	t.Parallel()
	env := newSubmissionEnv(t)
	env.addContestProblem(2, 5, 300)
	env.contestRepo.put(&model.Contest{
		ID:        5,
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	})

	_, err := env.service.Submit(context.Background(), service.SubmitInput{
		UserID:     7,
		ProblemID:  2,
		Language:   "c",
		SourceCode: "int main() {}",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	job, _ := env.jobStore.lastJob()
	if job.RegistrationID != nil {
		t.Fatal("expected no registration id for unregistered user")
	}
	if job.Points != 0 {
		t.Fatalf("points = %d, want 0", job.Points)
	}
}

func TestSubmitAfterContestEndGetsNoScoring(t *testing.T) {
	t.Parallel()
	env := newSubmissionEnv(t)
	env.addContestProblem(2, 5, 300)
	env.contestRepo.put(&model.Contest{
		ID:        5,
		StartTime: time.Now().Add(-3 * time.Hour),
		EndTime:   time.Now().Add(-time.Hour),
	})
	env.registrationRepo.put(&model.Registration{ID: 11, UserID: 7, ContestID: 5})

	_, err := env.service.Submit(context.Background(), service.SubmitInput{
		UserID:     7,
		ProblemID:  2,
		Language:   "c",
		SourceCode: "int main() {}",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	job, _ := env.jobStore.lastJob()
	if job.RegistrationID != nil {
		t.Fatal("expected no registration id after contest end")
	}
}

func TestSubmitWithPriorAcceptedGetsNoScoring(t *testing.T) {
	t.Parallel()
	env := newSubmissionEnv(t)
	env.addContestProblem(2, 5, 300)
	env.contestRepo.put(&model.Contest{
		ID:        5,
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	})
	env.registrationRepo.put(&model.Registration{ID: 11, UserID: 7, ContestID: 5})
	env.submissionRepo.put(&model.Submission{
		ID:        90,
		UserID:    7,
		ProblemID: 2,
		Language:  "c",
		SourceKey: "sources/old",
		Status:    model.StatusAccepted,
	})

	_, err := env.service.Submit(context.Background(), service.SubmitInput{
		UserID:     7,
		ProblemID:  2,
		Language:   "c",
		SourceCode: "int main() {}",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	job, _ := env.jobStore.lastJob()
	if job.RegistrationID != nil {
		t.Fatal("expected no registration id after a prior accepted submission")
	}
}

func TestSubmitEnqueueFailureKeepsRecordAndSurfacesError(t *testing.T) {
	t.Parallel()
	env := newSubmissionEnv(t)
	env.addPracticeProblem(1)
	env.jobStore.enqueueErr = context.DeadlineExceeded

	submission, err := env.service.Submit(context.Background(), service.SubmitInput{
		UserID:     7,
		ProblemID:  1,
		Language:   "cpp",
		SourceCode: "int main() {}",
	})
	if !appErr.Is(err, appErr.DispatchFailed) {
		t.Fatalf("expected DispatchFailed, got %v", err)
	}
	if submission == nil || submission.ID == 0 {
		t.Fatal("expected the submission record to survive the dispatch failure")
	}
	if submission.JobID != "" {
		t.Fatalf("expected no job handle, got %q", submission.JobID)
	}
}

func TestDispatchRefusesToOverwriteJobHandle(t *testing.T) {
	t.Parallel()
	env := newSubmissionEnv(t)
	env.addPracticeProblem(1)
	env.submissionRepo.put(&model.Submission{
		ID:        42,
		UserID:    7,
		ProblemID: 1,
		Language:  "cpp",
		SourceKey: "sources/42",
		Status:    model.StatusPending,
		JobID:     "job-old",
	})

	problem, err := env.problemRepo.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("get problem failed: %v", err)
	}
	submission, err := env.submissionRepo.GetByID(context.Background(), nil, 42)
	if err != nil {
		t.Fatalf("get submission failed: %v", err)
	}

	err = env.service.Dispatch(context.Background(), submission, problem, "int main() {}")
	if !appErr.Is(err, appErr.JobHandleConflict) {
		t.Fatalf("expected JobHandleConflict, got %v", err)
	}
}

func TestSubmitRejectsUnsupportedLanguage(t *testing.T) {
	t.Parallel()
	env := newSubmissionEnv(t)
	env.addPracticeProblem(1)

	_, err := env.service.Submit(context.Background(), service.SubmitInput{
		UserID:     7,
		ProblemID:  1,
		Language:   "brainfuck",
		SourceCode: "+",
	})
	if !appErr.Is(err, appErr.LanguageNotSupported) {
		t.Fatalf("expected LanguageNotSupported, got %v", err)
	}
	if _, ok := env.jobStore.lastJob(); ok {
		t.Fatal("expected no job for rejected submission")
	}
}

func TestSubmitRejectsOversizedSource(t *testing.T) {
	t.Parallel()
	env := newSubmissionEnv(t)
	env.addPracticeProblem(1)

	big := make([]byte, 2048)
	for i := range big {
		big[i] = 'a'
	}
	_, err := env.service.Submit(context.Background(), service.SubmitInput{
		UserID:     7,
		ProblemID:  1,
		Language:   "cpp",
		SourceCode: string(big),
	})
	if !appErr.Is(err, appErr.CodeTooLarge) {
		t.Fatalf("expected CodeTooLarge, got %v", err)
	}
}

func TestSubmitStorageFailureAbortsBeforePersist(t *testing.T) {
	t.Parallel()
	env := newSubmissionEnv(t)
	env.addPracticeProblem(1)
	env.storage.putErr = context.DeadlineExceeded

	_, err := env.service.Submit(context.Background(), service.SubmitInput{
		UserID:     7,
		ProblemID:  1,
		Language:   "cpp",
		SourceCode: "int main() {}",
	})
	if !appErr.Is(err, appErr.StorageError) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if len(env.submissionRepo.byID) != 0 {
		t.Fatal("expected no submission persisted after storage failure")
	}
}

func TestGetSubmissionNotFound(t *testing.T) {
	t.Parallel()
	env := newSubmissionEnv(t)

	_, err := env.service.GetSubmission(context.Background(), 999)
	if !appErr.Is(err, appErr.SubmissionNotFound) {
		t.Fatalf("expected SubmissionNotFound, got %v", err)
	}
}
