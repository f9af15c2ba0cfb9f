package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"arbiter/internal/common/db"
	"arbiter/internal/contest/model"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrJobIDAlreadySet is returned when a dispatch tries to overwrite
	// an existing job handle. Handles are write-once.
	ErrJobIDAlreadySet = errors.New("submission job id already set")
)

// SubmissionRepository defines submission persistence interfaces.
type SubmissionRepository interface {
	Create(ctx context.Context, tx db.Transaction, submission *model.Submission) error
	GetByID(ctx context.Context, tx db.Transaction, id int64) (*model.Submission, error)

	// SetJobID stores the evaluation job handle. Fails with
	// ErrJobIDAlreadySet when a handle is already present.
	SetJobID(ctx context.Context, tx db.Transaction, id int64, jobID string) error

	// HasAcceptedSubmission reports whether the user already has an
	// accepted submission for the problem. Always a fresh read.
	HasAcceptedSubmission(ctx context.Context, userID, problemID int64) (bool, error)

	// ApplyFinalResult writes a terminal verdict. Returns false without
	// error when the record was already terminal.
	ApplyFinalResult(ctx context.Context, tx db.Transaction, result *model.EvaluationResult) (bool, error)

	ListByProblem(ctx context.Context, problemID int64, limit int) ([]*model.Submission, error)

	// EarliestAcceptedByProblem returns, per user, that user's earliest
	// accepted submission for the problem.
	EarliestAcceptedByProblem(ctx context.Context, problemID int64) ([]*AcceptedSubmission, error)
}

// AcceptedSubmission is one row of the earliest-accepted query.
type AcceptedSubmission struct {
	SubmissionID int64
	UserID       int64
	SubmittedAt  time.Time
}

// MySQLSubmissionRepository implements SubmissionRepository with MySQL.
type MySQLSubmissionRepository struct {
	db db.Database
}

// NewSubmissionRepository creates a submission repository.
func NewSubmissionRepository(database db.Database) SubmissionRepository {
	return &MySQLSubmissionRepository{db: database}
}

const submissionColumns = "id, user_id, problem_id, language, source_key, status, job_id, progress, testcase_results, submitted_at"

// Create inserts a submission record and fills in the generated id.
func (r *MySQLSubmissionRepository) Create(ctx context.Context, tx db.Transaction, submission *model.Submission) error {
	if submission == nil {
		return errors.New("submission is nil")
	}
	if submission.UserID <= 0 {
		return errors.New("userID is required")
	}
	if submission.ProblemID <= 0 {
		return errors.New("problemID is required")
	}
	if submission.Language == "" {
		return errors.New("language is required")
	}
	if submission.SourceKey == "" {
		return errors.New("sourceKey is required")
	}
	if submission.Status == "" {
		submission.Status = model.StatusPending
	}
	if submission.Progress == "" {
		submission.Progress = model.DefaultProgress
	}

	query := `
		INSERT INTO submissions
		(user_id, problem_id, language, source_key, status, progress, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		submission.UserID,
		submission.ProblemID,
		submission.Language,
		submission.SourceKey,
		string(submission.Status),
		submission.Progress,
		submission.SubmittedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	submission.ID = id
	return nil
}

// GetByID retrieves a submission by id.
func (r *MySQLSubmissionRepository) GetByID(ctx context.Context, tx db.Transaction, id int64) (*model.Submission, error) {
	if id <= 0 {
		return nil, errors.New("id is required")
	}
	query := "SELECT " + submissionColumns + " FROM submissions WHERE id = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, id)
	submission, err := scanSubmission(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return submission, nil
}

// SetJobID persists the job handle, guarded so an existing handle is
// never overwritten.
func (r *MySQLSubmissionRepository) SetJobID(ctx context.Context, tx db.Transaction, id int64, jobID string) error {
	if id <= 0 {
		return errors.New("id is required")
	}
	if jobID == "" {
		return errors.New("jobID is required")
	}
	query := "UPDATE submissions SET job_id = ? WHERE id = ? AND job_id IS NULL"
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query, jobID, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		existing, err := r.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing.JobID != "" {
			return ErrJobIDAlreadySet
		}
		return ErrSubmissionNotFound
	}
	return nil
}

// HasAcceptedSubmission runs a point-in-time count of accepted
// submissions by the user for the problem.
func (r *MySQLSubmissionRepository) HasAcceptedSubmission(ctx context.Context, userID, problemID int64) (bool, error) {
	query := "SELECT COUNT(*) FROM submissions WHERE user_id = ? AND problem_id = ? AND status = ?"
	row := r.db.QueryRow(ctx, query, userID, problemID, string(model.StatusAccepted))
	var count int64
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// ApplyFinalResult writes the terminal verdict, progress and per-test
// detail. The status guard makes redelivered results a no-op.
func (r *MySQLSubmissionRepository) ApplyFinalResult(ctx context.Context, tx db.Transaction, result *model.EvaluationResult) (bool, error) {
	if result == nil {
		return false, errors.New("result is nil")
	}
	if result.SubmissionID <= 0 {
		return false, errors.New("submissionID is required")
	}
	if !result.Status.Terminal() {
		return false, errors.New("status is not terminal")
	}

	var detail interface{}
	if len(result.TestcaseResults) > 0 {
		detail = []byte(result.TestcaseResults)
	}

	query := "UPDATE submissions SET status = ?, progress = ?, testcase_results = ? WHERE id = ? AND status NOT IN (" + terminalStatusPlaceholders + ")"
	args := []interface{}{string(result.Status), result.Progress, detail, result.SubmissionID}
	args = append(args, terminalStatusArgs()...)

	res, err := db.GetQuerier(r.db, tx).Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListByProblem returns the most recent submissions for a problem.
func (r *MySQLSubmissionRepository) ListByProblem(ctx context.Context, problemID int64, limit int) ([]*model.Submission, error) {
	if problemID <= 0 {
		return nil, errors.New("problemID is required")
	}
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + submissionColumns + " FROM submissions WHERE problem_id = ? ORDER BY submitted_at DESC, id DESC LIMIT ?"
	rows, err := r.db.Query(ctx, query, problemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []*model.Submission
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return submissions, nil
}

// EarliestAcceptedByProblem selects each user's earliest accepted
// submission for the problem, ties broken by lowest id.
func (r *MySQLSubmissionRepository) EarliestAcceptedByProblem(ctx context.Context, problemID int64) ([]*AcceptedSubmission, error) {
	if problemID <= 0 {
		return nil, errors.New("problemID is required")
	}
	query := `
		SELECT s.id, s.user_id, s.submitted_at
		FROM submissions s
		WHERE s.problem_id = ? AND s.status = ?
		  AND s.id = (
			SELECT s2.id FROM submissions s2
			WHERE s2.problem_id = s.problem_id AND s2.user_id = s.user_id AND s2.status = s.status
			ORDER BY s2.submitted_at ASC, s2.id ASC
			LIMIT 1
		  )
	`
	rows, err := r.db.Query(ctx, query, problemID, string(model.StatusAccepted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accepted []*AcceptedSubmission
	for rows.Next() {
		row := &AcceptedSubmission{}
		if err := rows.Scan(&row.SubmissionID, &row.UserID, &row.SubmittedAt); err != nil {
			return nil, err
		}
		accepted = append(accepted, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accepted, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	submission := &model.Submission{}
	var (
		jobID  *string
		status string
		detail []byte
	)
	if err := row.Scan(
		&submission.ID,
		&submission.UserID,
		&submission.ProblemID,
		&submission.Language,
		&submission.SourceKey,
		&status,
		&jobID,
		&submission.Progress,
		&detail,
		&submission.SubmittedAt,
	); err != nil {
		return nil, err
	}
	submission.Status = model.SubmissionStatus(status)
	if jobID != nil {
		submission.JobID = *jobID
	}
	if len(detail) > 0 {
		submission.TestcaseResults = detail
	}
	return submission, nil
}

var terminalStatuses = []model.SubmissionStatus{
	model.StatusAccepted,
	model.StatusWrongAnswer,
	model.StatusTimeLimitExceeded,
	model.StatusMemoryLimitExceeded,
	model.StatusRuntimeError,
	model.StatusCompileError,
	model.StatusJudgeError,
}

var terminalStatusPlaceholders = strings.TrimSuffix(strings.Repeat("?, ", len(terminalStatuses)), ", ")

func terminalStatusArgs() []interface{} {
	args := make([]interface{}, 0, len(terminalStatuses))
	for _, s := range terminalStatuses {
		args = append(args, string(s))
	}
	return args
}
