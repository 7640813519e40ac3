package pipeline

import (
	"fmt"
	"net/http"
)

// GenericMessage is reported when the remote side gives no usable message
const GenericMessage = "transport error"

// Error describes a failed pipeline call
type Error struct {
	Action     string
	StatusCode int // 0 when no response was received
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("pipeline %s: %s (status %d)", e.Action, e.Message, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("pipeline %s: %s: %v", e.Action, e.Message, e.Cause)
	}
	return fmt.Sprintf("pipeline %s: %s", e.Action, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Temporary reports whether the failure is likely to go away on a later attempt
func (e *Error) Temporary() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

func genericMessage(status int) string {
	if status == 0 {
		return GenericMessage
	}
	return fmt.Sprintf("%s: %d %s", GenericMessage, status, http.StatusText(status))
}
