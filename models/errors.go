package models

import "fmt"

// Error codes used in reports and internal error handling.
const (
	// Authentication failures.
	ErrCodeMissingCredentials = "MISSING_CREDENTIALS"
	ErrCodeFieldsNotFound     = "FIELDS_NOT_FOUND"
	ErrCodeRejected           = "LOGIN_REJECTED"
	ErrCodeRedirectAway       = "REDIRECT_AWAY"
	ErrCodeConnectionLost     = "CONNECTION_LOST"

	// Resource failures.
	ErrCodeLaunchFailed = "LAUNCH_FAILED"

	// Operational.
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// PageSnapshot is a best-effort capture of the page a failure happened on,
// attached to auth errors for human diagnosis.
type PageSnapshot struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	// Text is the readable page content, truncated.
	Text string `json:"text"`
}

// AuthError is the typed failure produced by the session authenticator.
// It carries the full action log and a page snapshot so a failure can be
// diagnosed without re-running the flow. It implements the error interface
// and supports error wrapping via Unwrap.
type AuthError struct {
	Code    string
	Message string
	// Challenge is set when a known anti-automation marker was present.
	Challenge bool
	Actions   []Action
	Snapshot  *PageSnapshot
	Err       error // wrapped original error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates a new AuthError.
func NewAuthError(code, message string, err error) *AuthError {
	return &AuthError{Code: code, Message: message, Err: err}
}

// LaunchError is the resource failure raised when a browser instance cannot
// be started at all. It is fatal to the current pass.
type LaunchError struct {
	Attempts int
	Err      error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s: browser launch failed after %d attempts: %v", ErrCodeLaunchFailed, e.Attempts, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
