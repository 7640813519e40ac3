package dataset

import (
	"errors"
	"fmt"
)

const (
	// MinLength is the smallest manually supplied series accepted
	MinLength = 30
	// MaxLength is the largest manually supplied series accepted
	MaxLength = 100
)

// Reason classifies a validation failure
type Reason string

const (
	ReasonParse    Reason = "parse"
	ReasonTooShort Reason = "too_short"
	ReasonTooLong  Reason = "too_long"
	ReasonRead     Reason = "read"
	ReasonKind     Reason = "unknown_kind"
)

// ValidationError reports why a candidate series was refused
type ValidationError struct {
	Reason Reason
	Length int
	Cause  error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message(), e.Cause)
	}
	return e.Message()
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Message is the user facing warning text
func (e *ValidationError) Message() string {
	switch e.Reason {
	case ReasonParse:
		return "Parse Error."
	case ReasonTooShort:
		return fmt.Sprintf("Data Size Error. Please fix Data size %d or more.", MinLength)
	case ReasonTooLong:
		return fmt.Sprintf("Data Size Error. Please fix Data size %d or less.", MaxLength)
	case ReasonRead:
		return "File Read Error."
	case ReasonKind:
		return "Unknown sample data."
	default:
		return "Invalid data."
	}
}

// IsValidationError reports whether err carries a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CheckLength enforces the manual series bounds
func CheckLength(series []float64) error {
	switch n := len(series); {
	case n < MinLength:
		return &ValidationError{Reason: ReasonTooShort, Length: n}
	case n > MaxLength:
		return &ValidationError{Reason: ReasonTooLong, Length: n}
	}
	return nil
}
