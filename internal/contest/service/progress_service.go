package service

import (
	"context"
	"errors"
	"fmt"

	"arbiter/internal/contest/model"
	"arbiter/internal/contest/repository"
	"arbiter/internal/jobstore"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/logger"

	"go.uber.org/zap"
)

// ProgressService answers live progress polls against the job store,
// falling back to the persisted counter whenever the live metadata is
// unavailable. A reachable submission record always yields an answer.
type ProgressService struct {
	submissionRepo repository.SubmissionRepository
	jobStore       jobstore.JobStore
	timeouts       TimeoutConfig
}

// ProgressInfo is the poll response: the persisted lifecycle status and
// the freshest progress counter available.
type ProgressInfo struct {
	SubmissionID int64                  `json:"submission_id"`
	Status       model.SubmissionStatus `json:"status"`
	Progress     string                 `json:"progress"`
}

// NewProgressService creates a progress service.
func NewProgressService(submissionRepo repository.SubmissionRepository, store jobstore.JobStore, timeouts TimeoutConfig) (*ProgressService, error) {
	if submissionRepo == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if store == nil {
		return nil, fmt.Errorf("job store is required")
	}
	return &ProgressService{
		submissionRepo: submissionRepo,
		jobStore:       store,
		timeouts:       timeouts,
	}, nil
}

// GetProgress reports progress for a submission. Missing handle,
// unknown job and job store connectivity failures all degrade to the
// persisted progress; only a missing submission is an error.
func (p *ProgressService) GetProgress(ctx context.Context, submissionID int64) (ProgressInfo, error) {
	if submissionID <= 0 {
		return ProgressInfo{}, appErr.ValidationError("id", "required")
	}

	ctxDB := withTimeout(ctx, p.timeouts.DB)
	defer ctxDB.cancel()
	submission, err := p.submissionRepo.GetByID(ctxDB.ctx, nil, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return ProgressInfo{}, appErr.New(appErr.SubmissionNotFound)
		}
		return ProgressInfo{}, appErr.Wrapf(err, appErr.DatabaseError, "get submission failed")
	}

	info := ProgressInfo{
		SubmissionID: submission.ID,
		Status:       submission.Status,
		Progress:     persistedProgress(submission),
	}

	// Terminal records carry their final progress; never dispatched
	// ones have no job to ask.
	if submission.Status.Terminal() || submission.JobID == "" {
		return info, nil
	}

	ctxJob := withTimeout(ctx, p.timeouts.JobStore)
	defer ctxJob.cancel()
	status, err := p.jobStore.FetchStatus(ctxJob.ctx, submission.JobID)
	if err != nil {
		if !errors.Is(err, jobstore.ErrJobNotFound) {
			logger.Warn(ctx, "job store unavailable, serving persisted progress",
				zap.Int64("submission_id", submission.ID),
				zap.Error(err),
			)
		}
		return info, nil
	}

	if status.Progress != "" {
		info.Progress = status.Progress
	}
	return info, nil
}

func persistedProgress(submission *model.Submission) string {
	if submission.Progress == "" {
		return model.DefaultProgress
	}
	return submission.Progress
}
