package service

import (
	"context"
	"encoding/json"
	"fmt"

	"arbiter/internal/common/db"
	"arbiter/internal/common/mq"
	"arbiter/internal/contest/model"
	"arbiter/internal/contest/repository"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/logger"

	"go.uber.org/zap"
)

// ResultConsumer applies the evaluator's completion events. It is the
// only writer of terminal submission state: the verdict, final progress
// and per-test detail land here, and scored accepted submissions add
// their points to the registration in the same transaction.
type ResultConsumer struct {
	db               db.Database
	submissionRepo   repository.SubmissionRepository
	registrationRepo repository.RegistrationRepository
	timeouts         TimeoutConfig
}

// NewResultConsumer creates a result consumer.
func NewResultConsumer(database db.Database, submissionRepo repository.SubmissionRepository, registrationRepo repository.RegistrationRepository, timeouts TimeoutConfig) (*ResultConsumer, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	if submissionRepo == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if registrationRepo == nil {
		return nil, fmt.Errorf("registration repository is required")
	}
	return &ResultConsumer{
		db:               database,
		submissionRepo:   submissionRepo,
		registrationRepo: registrationRepo,
		timeouts:         timeouts,
	}, nil
}

// HandleResultMessage is the mq handler for the results topic.
// Malformed or non-terminal payloads are dropped after logging; they
// would fail identically on every redelivery. Transient database
// errors are returned so the queue retries.
func (c *ResultConsumer) HandleResultMessage(ctx context.Context, message *mq.Message) error {
	var result model.EvaluationResult
	if err := json.Unmarshal(message.Body, &result); err != nil {
		logger.Error(ctx, "drop undecodable evaluation result",
			zap.String("message_id", message.ID),
			zap.Error(err),
		)
		return nil
	}
	if result.SubmissionID <= 0 {
		logger.Error(ctx, "drop evaluation result without submission id",
			zap.String("message_id", message.ID),
		)
		return nil
	}
	if !result.Status.Terminal() {
		logger.Error(ctx, "drop evaluation result with non-terminal status",
			zap.Int64("submission_id", result.SubmissionID),
			zap.String("status", string(result.Status)),
		)
		return nil
	}
	return c.Apply(ctx, &result)
}

// Apply writes the terminal result. Transitions are forward-only: when
// the record is already terminal the event is treated as a duplicate
// and ignored.
func (c *ResultConsumer) Apply(ctx context.Context, result *model.EvaluationResult) error {
	ctxDB := withTimeout(ctx, c.timeouts.DB)
	defer ctxDB.cancel()

	submission, err := c.submissionRepo.GetByID(ctxDB.ctx, nil, result.SubmissionID)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "load submission for result failed")
	}

	err = c.db.Transaction(ctxDB.ctx, func(tx db.Transaction) error {
		applied, err := c.submissionRepo.ApplyFinalResult(ctxDB.ctx, tx, result)
		if err != nil {
			return err
		}
		if !applied {
			logger.Info(ctx, "skip duplicate evaluation result",
				zap.Int64("submission_id", result.SubmissionID),
			)
			return nil
		}
		if result.Status == model.StatusAccepted && result.RegistrationID != nil {
			// The leaderboard tie-break uses the submission time, not
			// the evaluation time.
			if err := c.registrationRepo.ApplyScore(ctxDB.ctx, tx, *result.RegistrationID, result.Points, submission.SubmittedAt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "applied evaluation result",
			zap.Int64("submission_id", result.SubmissionID),
			zap.String("status", string(result.Status)),
		)
		return nil
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.ScoreUpdateFailed, "apply evaluation result failed")
	}
	return nil
}
