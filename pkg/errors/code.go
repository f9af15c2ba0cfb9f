package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Submission & Dispatch errors
// 12000-12999: Contest & Leaderboard errors
// 13000-13999: Job Store errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError     ErrorCode = 10100
	RecordNotFound    ErrorCode = 10101
	TransactionFailed ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Storage errors (10300-10399)
	StorageError ErrorCode = 10300

	// Validation errors (10400-10499)
	ValidationFailed ErrorCode = 10400

	// ========== Submission & Dispatch Errors (11000-11999) ==========

	// Submission (11000-11099)
	SubmissionNotFound     ErrorCode = 11000
	SubmissionCreateFailed ErrorCode = 11001
	CodeTooLarge           ErrorCode = 11002
	LanguageNotSupported   ErrorCode = 11003

	// Dispatch (11100-11199)
	DispatchFailed    ErrorCode = 11100
	JobHandleConflict ErrorCode = 11101

	// Result intake (11200-11299)
	ResultDecodeFailed  ErrorCode = 11200
	ResultStatusInvalid ErrorCode = 11201

	// ========== Contest & Leaderboard Errors (12000-12999) ==========

	// Contest basic (12000-12099)
	ContestNotFound ErrorCode = 12000
	ProblemNotFound ErrorCode = 12001

	// Registration (12100-12199)
	NotRegistered     ErrorCode = 12100
	ScoreUpdateFailed ErrorCode = 12101

	// Leaderboard (12200-12299)
	LeaderboardUnavailable ErrorCode = 12200

	// ========== Job Store Errors (13000-13999) ==========

	JobStoreError  ErrorCode = 13000
	JobNotFound    ErrorCode = 13001
	EnqueueFailed  ErrorCode = 13002
	JobStoreClosed ErrorCode = 13003
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:     "Database operation failed",
	RecordNotFound:    "Record not found in database",
	TransactionFailed: "Database transaction failed",

	// Cache
	CacheError: "Cache operation failed",

	// Storage
	StorageError: "Object storage operation failed",

	// Validation
	ValidationFailed: "Validation failed",

	// Submission
	SubmissionNotFound:     "Submission not found",
	SubmissionCreateFailed: "Failed to create submission",
	CodeTooLarge:           "Code is too large",
	LanguageNotSupported:   "Programming language not supported",

	// Dispatch
	DispatchFailed:    "Failed to dispatch submission for evaluation",
	JobHandleConflict: "Submission already has a job handle",

	// Result intake
	ResultDecodeFailed:  "Failed to decode evaluation result",
	ResultStatusInvalid: "Evaluation result carries a non-terminal status",

	// Contest
	ContestNotFound: "Contest not found",
	ProblemNotFound: "Problem not found",

	// Registration
	NotRegistered:     "Not registered for this contest",
	ScoreUpdateFailed: "Failed to update registration score",

	// Leaderboard
	LeaderboardUnavailable: "Leaderboard is not available",

	// Job Store
	JobStoreError:  "Job store operation failed",
	JobNotFound:    "Job not found in job store",
	EnqueueFailed:  "Failed to enqueue evaluation job",
	JobStoreClosed: "Job store connection is closed",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == SubmissionNotFound, c == ProblemNotFound, c == ContestNotFound:
		return 404
	case c == TooManyRequests:
		return 429
	case c == ServiceUnavailable, c == DispatchFailed, c == EnqueueFailed, c == LeaderboardUnavailable:
		return 503
	case c == ValidationFailed, c == InvalidParams, c == CodeTooLarge, c == LanguageNotSupported:
		return 400
	case c == JobHandleConflict:
		return 409
	default:
		return 500
	}
}
