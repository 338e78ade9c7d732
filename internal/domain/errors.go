package domain

import "errors"

var (
	// ErrConfiguration is returned for invalid or missing startup configuration
	ErrConfiguration = errors.New("configuration error")

	// ErrTransientIO is returned when the remote store stays unreachable after all retries
	ErrTransientIO = errors.New("transient remote I/O failure")

	// ErrNotFound is returned when a work order document no longer exists
	ErrNotFound = errors.New("document not found")

	// ErrLocked is returned when a document stays locked by another process
	ErrLocked = errors.New("document locked")

	// ErrMalformedDocument is returned when a required cell is missing or unreadable
	ErrMalformedDocument = errors.New("malformed document")

	// ErrMalformedSequence is returned when the work order number has no integer prefix
	ErrMalformedSequence = errors.New("malformed sequence number")

	// ErrUserDeclined is returned when the operator rejects a non-increasing number
	ErrUserDeclined = errors.New("declined by operator")

	// ErrConfirmationTimedOut is returned when the operator did not answer in time
	ErrConfirmationTimedOut = errors.New("confirmation timed out")

	// ErrPublishFailure is returned when any artifact upload fails
	ErrPublishFailure = errors.New("publish failure")
)

// RetryableError wraps transient errors that should be attempted again
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err was marked as transient
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}

// IsBusinessOutcome reports whether err is an expected operator decision rather than a failure
func IsBusinessOutcome(err error) bool {
	return errors.Is(err, ErrUserDeclined) || errors.Is(err, ErrConfirmationTimedOut)
}
