package types

import "fmt"

// ErrorCode represents a unified error code across the module.
type ErrorCode string

const (
	// ErrGenerationFailed marks a failed generation call against one
	// participant's backend. Recoverable: the turn is discarded and the
	// conversation continues.
	ErrGenerationFailed ErrorCode = "GENERATION_FAILED"

	// ErrTokenizer marks a token-counting failure. Handled like a failed
	// generation: the turn is discarded without consuming budget.
	ErrTokenizer ErrorCode = "TOKENIZER_ERROR"

	// ErrTooFewParticipants is a start-time precondition failure: a
	// conversation needs at least two participants.
	ErrTooFewParticipants ErrorCode = "TOO_FEW_PARTICIPANTS"

	// ErrInvalidConfig marks a configuration validation failure.
	ErrInvalidConfig ErrorCode = "INVALID_CONFIG"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code        ErrorCode `json:"code"`
	Message     string    `json:"message"`
	Retryable   bool      `json:"retryable"`
	Participant string    `json:"participant,omitempty"`
	Cause       error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithParticipant attributes the error to a participant.
func (e *Error) WithParticipant(participant string) *Error {
	e.Participant = participant
	return e
}

// NewGenerationError wraps a backend failure for the given participant.
func NewGenerationError(participant string, cause error) *Error {
	return &Error{
		Code:        ErrGenerationFailed,
		Message:     fmt.Sprintf("%s failed to generate a response", participant),
		Retryable:   true,
		Participant: participant,
		Cause:       cause,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
