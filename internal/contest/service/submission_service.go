package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"arbiter/internal/common/storage"
	"arbiter/internal/contest/model"
	"arbiter/internal/contest/repository"
	"arbiter/internal/jobstore"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultSourcePrefix = "submissions"
	defaultListLimit    = 50
)

var defaultLanguages = []string{"c", "cpp", "java", "python"}

// Config holds submission service dependencies and settings.
type Config struct {
	SubmissionRepo   repository.SubmissionRepository
	ProblemRepo      repository.ProblemRepository
	ContestRepo      repository.ContestRepository
	RegistrationRepo repository.RegistrationRepository
	JobStore         jobstore.JobStore
	Storage          storage.ObjectStorage

	SourceBucket    string
	SourceKeyPrefix string
	MaxCodeBytes    int
	Languages       []string
	Timeouts        TimeoutConfig
}

// SubmissionService handles submission intake and dispatch to the
// evaluation queue.
type SubmissionService struct {
	submissionRepo   repository.SubmissionRepository
	problemRepo      repository.ProblemRepository
	contestRepo      repository.ContestRepository
	registrationRepo repository.RegistrationRepository
	jobStore         jobstore.JobStore
	storage          storage.ObjectStorage

	sourceBucket    string
	sourceKeyPrefix string
	maxCodeBytes    int
	languages       map[string]struct{}
	timeouts        TimeoutConfig
}

// SubmitInput describes a submission request.
type SubmitInput struct {
	UserID     int64
	ProblemID  int64
	Language   string
	SourceCode string
}

// NewSubmissionService creates a new submission service.
func NewSubmissionService(cfg Config) (*SubmissionService, error) {
	if cfg.SubmissionRepo == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if cfg.ProblemRepo == nil {
		return nil, fmt.Errorf("problem repository is required")
	}
	if cfg.ContestRepo == nil {
		return nil, fmt.Errorf("contest repository is required")
	}
	if cfg.RegistrationRepo == nil {
		return nil, fmt.Errorf("registration repository is required")
	}
	if cfg.JobStore == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.SourceBucket == "" {
		return nil, fmt.Errorf("source bucket is required")
	}
	if cfg.SourceKeyPrefix == "" {
		cfg.SourceKeyPrefix = defaultSourcePrefix
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = defaultLanguages
	}
	languages := make(map[string]struct{}, len(cfg.Languages))
	for _, lang := range cfg.Languages {
		languages[strings.ToLower(lang)] = struct{}{}
	}
	return &SubmissionService{
		submissionRepo:   cfg.SubmissionRepo,
		problemRepo:      cfg.ProblemRepo,
		contestRepo:      cfg.ContestRepo,
		registrationRepo: cfg.RegistrationRepo,
		jobStore:         cfg.JobStore,
		storage:          cfg.Storage,
		sourceBucket:     cfg.SourceBucket,
		sourceKeyPrefix:  cfg.SourceKeyPrefix,
		maxCodeBytes:     cfg.MaxCodeBytes,
		languages:        languages,
		timeouts:         cfg.Timeouts,
	}, nil
}

// Submit records a submission and dispatches it for evaluation.
// The record is persisted before the dispatch attempt, so a dispatch
// failure leaves a never-dispatched submission behind and surfaces the
// error to the caller.
func (s *SubmissionService) Submit(ctx context.Context, input SubmitInput) (*model.Submission, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	problem, err := s.getProblem(ctx, input.ProblemID)
	if err != nil {
		return nil, err
	}

	submission := &model.Submission{
		UserID:      input.UserID,
		ProblemID:   problem.ID,
		Language:    strings.ToLower(input.Language),
		Status:      model.StatusPending,
		Progress:    model.DefaultProgress,
		SubmittedAt: time.Now().UTC(),
	}

	if err := s.createSubmission(ctx, submission, input.SourceCode); err != nil {
		return nil, err
	}

	if err := s.Dispatch(ctx, submission, problem, input.SourceCode); err != nil {
		logger.Warn(ctx, "submission recorded but not dispatched",
			zap.Int64("submission_id", submission.ID),
			zap.Error(err),
		)
		return submission, err
	}
	return submission, nil
}

// Dispatch runs the eligibility check, enqueues the evaluation job and
// persists the returned handle. The handle write happens synchronously:
// a submission either ends up with its handle stored or with the
// dispatch error surfaced and no handle at all.
func (s *SubmissionService) Dispatch(ctx context.Context, submission *model.Submission, problem *model.Problem, sourceCode string) error {
	registrationID, points, err := s.resolveScoring(ctx, submission, problem)
	if err != nil {
		return err
	}

	job := jobstore.EvaluationJob{
		SubmissionID:     submission.ID,
		Language:         submission.Language,
		SourceCode:       sourceCode,
		MemoryLimitBytes: problem.MemoryLimitMB << 20,
		TimeLimitMS:      problem.TimeLimitSec * 1000,
		ProblemID:        problem.ID,
		RegistrationID:   registrationID,
		Points:           points,
	}

	ctxJob := withTimeout(ctx, s.timeouts.JobStore)
	defer ctxJob.cancel()
	jobID, err := s.jobStore.Enqueue(ctxJob.ctx, job)
	if err != nil {
		return appErr.Wrapf(err, appErr.DispatchFailed, "enqueue evaluation job failed")
	}

	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	if err := s.submissionRepo.SetJobID(ctxDB.ctx, nil, submission.ID, jobID); err != nil {
		if errors.Is(err, repository.ErrJobIDAlreadySet) {
			return appErr.Wrap(err, appErr.JobHandleConflict)
		}
		return appErr.Wrapf(err, appErr.DispatchFailed, "persist job handle failed")
	}
	submission.JobID = jobID
	return nil
}

// GetSubmission returns one submission by id.
func (s *SubmissionService) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	if id <= 0 {
		return nil, appErr.ValidationError("id", "required")
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	submission, err := s.submissionRepo.GetByID(ctxDB.ctx, nil, id)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return nil, appErr.New(appErr.SubmissionNotFound)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get submission failed")
	}
	return submission, nil
}

// ListByProblem returns recent submissions for a problem.
func (s *SubmissionService) ListByProblem(ctx context.Context, problemID int64, limit int) ([]*model.Submission, error) {
	if problemID <= 0 {
		return nil, appErr.ValidationError("problem_id", "required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if _, err := s.getProblem(ctx, problemID); err != nil {
		return nil, err
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	submissions, err := s.submissionRepo.ListByProblem(ctxDB.ctx, problemID, limit)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list submissions failed")
	}
	return submissions, nil
}

// resolveScoring decides whether this submission competes for points.
// It qualifies when the problem belongs to a contest, the user is
// registered, the submission landed before the contest closed, and the
// user has no accepted submission for the problem yet. The accepted
// check is a fresh point-in-time read; concurrent completions may still
// slip through it.
func (s *SubmissionService) resolveScoring(ctx context.Context, submission *model.Submission, problem *model.Problem) (*int64, int, error) {
	if problem.ContestID == nil {
		return nil, 0, nil
	}

	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()

	registration, err := s.registrationRepo.GetByUserAndContest(ctxDB.ctx, submission.UserID, *problem.ContestID)
	if err != nil {
		if errors.Is(err, repository.ErrRegistrationNotFound) {
			return nil, 0, nil
		}
		return nil, 0, appErr.Wrapf(err, appErr.DatabaseError, "get registration failed")
	}

	contest, err := s.contestRepo.GetByID(ctxDB.ctx, *problem.ContestID)
	if err != nil {
		if errors.Is(err, repository.ErrContestNotFound) {
			return nil, 0, nil
		}
		return nil, 0, appErr.Wrapf(err, appErr.DatabaseError, "get contest failed")
	}
	if submission.SubmittedAt.After(contest.EndTime) {
		return nil, 0, nil
	}

	accepted, err := s.submissionRepo.HasAcceptedSubmission(ctxDB.ctx, submission.UserID, problem.ID)
	if err != nil {
		return nil, 0, appErr.Wrapf(err, appErr.DatabaseError, "check accepted submissions failed")
	}
	if accepted {
		return nil, 0, nil
	}

	registrationID := registration.ID
	return &registrationID, problem.Points, nil
}

func (s *SubmissionService) validateInput(input SubmitInput) error {
	if input.UserID <= 0 {
		return appErr.ValidationError("user_id", "required")
	}
	if input.ProblemID <= 0 {
		return appErr.ValidationError("problem_id", "required")
	}
	if strings.TrimSpace(input.Language) == "" {
		return appErr.ValidationError("language", "required")
	}
	if _, ok := s.languages[strings.ToLower(input.Language)]; !ok {
		return appErr.New(appErr.LanguageNotSupported).WithDetail("language", input.Language)
	}
	if strings.TrimSpace(input.SourceCode) == "" {
		return appErr.ValidationError("source_code", "required")
	}
	if s.maxCodeBytes > 0 && len(input.SourceCode) > s.maxCodeBytes {
		return appErr.New(appErr.CodeTooLarge).WithDetail("max_bytes", s.maxCodeBytes)
	}
	return nil
}

func (s *SubmissionService) getProblem(ctx context.Context, problemID int64) (*model.Problem, error) {
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	problem, err := s.problemRepo.GetByID(ctxDB.ctx, problemID)
	if err != nil {
		if errors.Is(err, repository.ErrProblemNotFound) {
			return nil, appErr.New(appErr.ProblemNotFound)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get problem failed")
	}
	return problem, nil
}

func (s *SubmissionService) createSubmission(ctx context.Context, submission *model.Submission, sourceCode string) error {
	// The row id only exists after the insert, so the object key is
	// derived from a fresh uuid instead. Upload first: a storage
	// failure aborts before anything is persisted.
	submission.SourceKey = fmt.Sprintf("%s/%s/source.code", s.sourceKeyPrefix, uuid.NewString())

	ctxStorage := withTimeout(ctx, s.timeouts.Storage)
	defer ctxStorage.cancel()
	if err := s.storage.PutObject(ctxStorage.ctx, s.sourceBucket, submission.SourceKey, strings.NewReader(sourceCode), int64(len(sourceCode)), "text/plain; charset=utf-8"); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "upload source failed")
	}

	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	if err := s.submissionRepo.Create(ctxDB.ctx, nil, submission); err != nil {
		return appErr.Wrapf(err, appErr.SubmissionCreateFailed, "create submission failed")
	}
	return nil
}
