package inspections

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("inspection not found")
	ErrNotReady        = errors.New("inspection result not ready")
	ErrForbidden       = errors.New("inspection belongs to another user")
	ErrUploadTransport = errors.New("upload transport error")
)

const (
	ErrorCodeValidation      = "validation_error"
	ErrorCodeUploadTransport = "upload_transport_error"
	ErrorCodeAnalysisTimeout = "analysis_timeout"
	ErrorCodeEngine          = "engine_error"
	ErrorCodeCancelled       = "cancelled"
)

// ValidationError marks a user-correctable input problem. It is resolved at
// the component boundary and never reaches the job tracker.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
