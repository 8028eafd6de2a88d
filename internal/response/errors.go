package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Authentication
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// Authorization
	ErrForbidden            ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly    ErrCode = "STUDENT_ACCESS_ONLY"
	ErrInstructorAccessOnly ErrCode = "INSTRUCTOR_ACCESS_ONLY"

	// Validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// Resources
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// Attempt lifecycle
	ErrNotEnrolled      ErrCode = "NOT_ENROLLED"
	ErrNotPublished     ErrCode = "ASSESSMENT_NOT_PUBLISHED"
	ErrNotOpenYet       ErrCode = "ASSESSMENT_NOT_OPEN"
	ErrWindowClosed     ErrCode = "ASSESSMENT_WINDOW_CLOSED"
	ErrAttemptNotFound  ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAttemptNotActive ErrCode = "ATTEMPT_NOT_ACTIVE"
	ErrAttemptExpired   ErrCode = "ATTEMPT_EXPIRED"

	// Rate limiting
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// Server
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Invalid email or password."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrInstructorAccessOnly:
		return "This resource is restricted to instructors."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	case ErrNotEnrolled:
		return "You are not enrolled in this assessment."
	case ErrNotPublished:
		return "This assessment has not been published."
	case ErrNotOpenYet:
		return "This assessment has not opened yet."
	case ErrWindowClosed:
		return "The window for this assessment has closed."
	case ErrAttemptNotFound:
		return "Attempt not found."
	case ErrAttemptNotActive:
		return "This attempt is no longer in progress."
	case ErrAttemptExpired:
		return "Time is up for this attempt."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
