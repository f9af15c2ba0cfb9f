package controller

import (
	"strconv"

	"arbiter/internal/contest/model"
	"arbiter/internal/contest/service"
	"arbiter/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// SubmissionController handles submission HTTP endpoints.
type SubmissionController struct {
	submissionService *service.SubmissionService
	progressService   *service.ProgressService
}

// NewSubmissionController creates a new SubmissionController.
func NewSubmissionController(submissionService *service.SubmissionService, progressService *service.ProgressService) *SubmissionController {
	return &SubmissionController{
		submissionService: submissionService,
		progressService:   progressService,
	}
}

// Create records a submission and dispatches it for evaluation.
func (h *SubmissionController) Create(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	submission, err := h.submissionService.Submit(c.Request.Context(), service.SubmitInput{
		UserID:     req.UserID,
		ProblemID:  req.ProblemID,
		Language:   req.Language,
		SourceCode: req.SourceCode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, SubmitResponse{
		SubmissionID: submission.ID,
		Status:       string(submission.Status),
		Progress:     submission.Progress,
		SubmittedAt:  submission.SubmittedAt.Unix(),
	})
}

// Get returns one submission with parsed per-test detail.
func (h *SubmissionController) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	submission, err := h.submissionService.GetSubmission(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toSubmissionView(submission))
}

// GetProgress answers the progress poll for a submission.
func (h *SubmissionController) GetProgress(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	info, err := h.progressService.GetProgress(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ProgressResponse{
		Progress: info.Progress,
		Status:   string(info.Status),
	})
}

// ListByProblem returns recent submissions for a problem.
func (h *SubmissionController) ListByProblem(c *gin.Context) {
	problemID, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	submissions, err := h.submissionService.ListByProblem(c.Request.Context(), problemID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]SubmissionView, 0, len(submissions))
	for _, submission := range submissions {
		views = append(views, toSubmissionView(submission))
	}
	response.Success(c, SubmissionListResponse{Items: views})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid id")
		return 0, false
	}
	return id, true
}

// SubmitRequest defines submission payload.
type SubmitRequest struct {
	UserID     int64  `json:"user_id" binding:"required"`
	ProblemID  int64  `json:"problem_id" binding:"required"`
	Language   string `json:"language" binding:"required"`
	SourceCode string `json:"source_code" binding:"required"`
}

// SubmitResponse defines submission response payload.
type SubmitResponse struct {
	SubmissionID int64  `json:"submission_id"`
	Status       string `json:"status"`
	Progress     string `json:"progress"`
	SubmittedAt  int64  `json:"submitted_at"`
}

// ProgressResponse defines the progress poll payload.
type ProgressResponse struct {
	Progress string `json:"progress"`
	Status   string `json:"status"`
}

// SubmissionView is the submission detail payload.
type SubmissionView struct {
	SubmissionID    int64                  `json:"submission_id"`
	UserID          int64                  `json:"user_id"`
	ProblemID       int64                  `json:"problem_id"`
	Language        string                 `json:"language"`
	Status          string                 `json:"status"`
	Progress        string                 `json:"progress"`
	JobID           string                 `json:"job_id,omitempty"`
	TestcaseResults []model.TestcaseResult `json:"testcase_results"`
	SubmittedAt     string                 `json:"submitted_at"`
}

// SubmissionListResponse wraps a submission list.
type SubmissionListResponse struct {
	Items []SubmissionView `json:"items"`
}

func toSubmissionView(submission *model.Submission) SubmissionView {
	return SubmissionView{
		SubmissionID:    submission.ID,
		UserID:          submission.UserID,
		ProblemID:       submission.ProblemID,
		Language:        submission.Language,
		Status:          string(submission.Status),
		Progress:        submission.Progress,
		JobID:           submission.JobID,
		TestcaseResults: submission.ParsedTestcaseResults(),
		SubmittedAt:     submission.SubmittedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
