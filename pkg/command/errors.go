package command

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is the cooperative stop signal. It is recorded as a step
	// state, never as a step error.
	ErrCancelled         = errors.New("cancelled")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ErrorKind is the failure taxonomy recorded on a step.
type ErrorKind string

const (
	KindPlanning     ErrorKind = "planning"
	KindExecution    ErrorKind = "execution"
	KindVerification ErrorKind = "verification"
)

// Category is the structured signature Error Recovery keys its rules on.
type Category string

const (
	CategoryNoCodeBlock        Category = "no_code_block"
	CategoryCodegenUnavailable Category = "codegen_unavailable"
	CategoryBlocked            Category = "blocked"
	CategoryUnknownAction      Category = "unknown_action"
	CategoryCommandNotFound    Category = "command_not_found"
	CategoryTimeout            Category = "timeout"
	CategoryExitStatus         Category = "exit_status"
	CategoryFailureMarker      Category = "failure_marker"
	CategoryUnconfirmed        Category = "unconfirmed"
	CategoryUnsupported        Category = "unsupported_language"
	CategoryCancelled          Category = "cancelled"
	CategoryInternal           Category = "internal"
)

type StepError struct {
	Kind     ErrorKind
	Category Category
	Message  string
	Err      error
}

func (e *StepError) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s error (%s): %v", e.Kind, e.Category, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Kind, e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Kind, e.Category, e.Message)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func NewPlanningError(category Category, message string, err error) *StepError {
	return &StepError{Kind: KindPlanning, Category: category, Message: message, Err: err}
}

func NewExecutionError(category Category, message string) *StepError {
	return &StepError{Kind: KindExecution, Category: category, Message: message}
}

func NewVerificationFailure(category Category, message string) *StepError {
	return &StepError{Kind: KindVerification, Category: category, Message: message}
}

// AsStepError returns err as a *StepError, wrapping foreign errors as
// internal planning failures.
func AsStepError(err error) *StepError {
	var se *StepError
	if errors.As(err, &se) {
		return se
	}
	return NewPlanningError(CategoryInternal, "", err)
}
