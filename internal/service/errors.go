package service

import "errors"

// Domain errors surfaced to the controller layer, which translates them to
// transport responses. Store-level constraint violations on a concurrent
// begin are never surfaced — they resolve to a resume.
var (
	// Enrollment gate denials, in check order.
	ErrNotEnrolled  = errors.New("student is not enrolled in this assessment")
	ErrNotPublished = errors.New("assessment is not published")
	ErrNotYetOpen   = errors.New("assessment window has not opened yet")
	ErrWindowClosed = errors.New("assessment window has closed")

	// Attempt lifecycle violations.
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAttemptNotActive = errors.New("attempt is not in progress")
	ErrAttemptExpired   = errors.New("attempt time has expired")

	ErrAssessmentNotFound = errors.New("assessment not found")
)
