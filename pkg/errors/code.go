package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Submission & Statistics errors
// 16000-16999: Permission errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError  ErrorCode = 10100
	RecordNotFound ErrorCode = 10101

	// Cache errors (10200-10299)
	CacheError     ErrorCode = 10200
	CacheSetFailed ErrorCode = 10202

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300

	// Token errors (10400-10499)
	TokenExpired ErrorCode = 10401
	TokenInvalid ErrorCode = 10402

	// ========== Submission & Statistics Errors (13000-13999) ==========

	// Submission (13000-13099)
	SubmissionNotFound ErrorCode = 13000
	ProblemNotFound    ErrorCode = 13001

	// Statistics (13300-13399)
	StatsUnavailable  ErrorCode = 13300
	InvalidWindow     ErrorCode = 13301
	InvalidResultCode ErrorCode = 13302

	// Rejudge & Rescore (13400-13499)
	RejudgeBatchEmpty    ErrorCode = 13400
	RejudgeBatchTooLarge ErrorCode = 13401
	RescoreFailed        ErrorCode = 13402
	PublishFailed        ErrorCode = 13403

	// ========== Permission Errors (16000-16999) ==========

	PermissionDenied       ErrorCode = 16000
	InsufficientPermission ErrorCode = 16001
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:  "Database operation failed",
	RecordNotFound: "Record not found in database",

	// Cache
	CacheError:     "Cache operation failed",
	CacheSetFailed: "Failed to set cache",

	// Validation
	ValidationFailed: "Validation failed",

	// Token
	TokenExpired: "Token has expired",
	TokenInvalid: "Invalid token",

	// Submission & Statistics
	SubmissionNotFound: "Submission not found",
	ProblemNotFound:    "Problem not found",
	StatsUnavailable:   "Statistics are not available",
	InvalidWindow:      "Invalid time window",
	InvalidResultCode:  "Unknown result code",

	// Rejudge & Rescore
	RejudgeBatchEmpty:    "Rejudge batch is empty",
	RejudgeBatchTooLarge: "Rejudge batch exceeds the allowed size",
	RescoreFailed:        "Failed to rescore submission",
	PublishFailed:        "Failed to publish event",

	// Permission
	PermissionDenied:       "Permission denied",
	InsufficientPermission: "Insufficient permission",
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
	case c == Unauthorized, c == TokenExpired, c == TokenInvalid:
		return 401
	case c == Forbidden, c >= 16000 && c < 17000:
		return 403
	case c == NotFound, c == RecordNotFound, c == SubmissionNotFound, c == ProblemNotFound:
		return 404
	case c == ServiceUnavailable:
		return 503
	case c == InvalidParams, c == ValidationFailed, c == InvalidWindow,
		c == InvalidResultCode, c == RejudgeBatchEmpty, c == RejudgeBatchTooLarge:
		return 400
	default:
		return 500
	}
}
