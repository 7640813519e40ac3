package operations

import (
	"errors"
	"fmt"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/dataset"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/pipeline"
)

// ErrorType represents the type of a job error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeTransport    ErrorType = "transport"
	ErrorTypeStageFailure ErrorType = "stage_failure"
	ErrorTypeResultParse  ErrorType = "result_parse"
	ErrorTypeMissingJob   ErrorType = "missing_job"
	ErrorTypeInvalidState ErrorType = "invalid_state"
	ErrorTypeCancellation ErrorType = "cancellation"
)

// OperationError is a job error. Message is the warning shown to the user.
type OperationError struct {
	Type    ErrorType `json:"type"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches sentinel errors by type and message
func (e *OperationError) Is(target error) bool {
	t, ok := target.(*OperationError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// NewValidationError wraps a refused series
func NewValidationError(cause error) *OperationError {
	msg := "Invalid data."
	var ve *dataset.ValidationError
	if errors.As(cause, &ve) {
		msg = ve.Message()
	}
	return &OperationError{
		Type:    ErrorTypeValidation,
		Message: msg,
		Cause:   cause,
	}
}

// NewTransportError wraps a failed pipeline call. The remote message is kept
// when the pipeline supplied one.
func NewTransportError(stage string, cause error) *OperationError {
	msg := pipeline.GenericMessage
	var pe *pipeline.Error
	if errors.As(cause, &pe) && pe.Message != "" {
		msg = pe.Message
	}
	return &OperationError{
		Type:    ErrorTypeTransport,
		Stage:   stage,
		Message: msg,
		Cause:   cause,
	}
}

// NewStageFailureError reports a "...FAILED" poll reply
func NewStageFailureError(stage Stage) *OperationError {
	return &OperationError{
		Type:    ErrorTypeStageFailure,
		Stage:   stage.String(),
		Message: fmt.Sprintf("Error: %s Failed", stage.Action()),
	}
}

// NewResultParseError reports a getresult payload that is not a number array
func NewResultParseError(cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeResultParse,
		Stage:   StageComplete.String(),
		Message: "Result data parse Error.",
		Cause:   cause,
	}
}

// NewMissingJobError reports a poll or fetch attempted without a job id
func NewMissingJobError(stage Stage) *OperationError {
	return &OperationError{
		Type:    ErrorTypeMissingJob,
		Stage:   stage.String(),
		Message: "Progress ID is Empty",
	}
}

// NewCancellationError reports a job cancelled by the user or by shutdown
func NewCancellationError(stage string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeCancellation,
		Stage:   stage,
		Message: "Job was cancelled.",
	}
}

// GetErrorType returns the type of the error, or "" when err is not an
// *OperationError
func GetErrorType(err error) ErrorType {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ""
}

// Common operation errors
var (
	// ErrJobInFlight is returned when a submission or data replacement is
	// attempted while a job is running
	ErrJobInFlight = &OperationError{
		Type:    ErrorTypeInvalidState,
		Message: "A job is already in progress.",
	}

	// ErrNoJobInFlight is returned when cancelling with nothing running
	ErrNoJobInFlight = &OperationError{
		Type:    ErrorTypeInvalidState,
		Message: "No job is in progress.",
	}

	// ErrMachineClosed is returned after Close
	ErrMachineClosed = &OperationError{
		Type:    ErrorTypeInvalidState,
		Message: "Controller is shut down.",
	}
)
