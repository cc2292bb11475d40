package pipeline

import "fmt"

// Error is a domain-specific pipeline error.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	// ErrCodeConfig marks a configuration failure during session
	// setup. These are fatal: the session does not start.
	ErrCodeConfig = "CONFIG_ERROR"
	// ErrCodeSourceUnavailable means the provider could not open the
	// sources for the requested selection.
	ErrCodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	// ErrCodeAlreadyRunning is reserved for callers that want to treat
	// a redundant start as an error; the pipeline itself treats it as
	// a no-op.
	ErrCodeAlreadyRunning = "ALREADY_RUNNING"
	// ErrCodeInvariant marks a programming-contract violation. The
	// session is stopped rather than continuing with invalid data.
	ErrCodeInvariant = "INVARIANT_VIOLATION"
	// ErrCodeSink marks a sink lifecycle failure surfaced at teardown.
	ErrCodeSink = "SINK_ERROR"
)

// NewError creates a new pipeline error.
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
