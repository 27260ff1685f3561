package engine

import (
	"errors"
	"fmt"
)

// Причины, по которым описание pipeline отклоняется до запуска.
var (
	ErrEmptySteps        = errors.New("pipeline spec has no steps")
	ErrEmptyStepID       = errors.New("step has empty ID")
	ErrDuplicateStepID   = errors.New("duplicate step ID")
	ErrUnknownStepType   = errors.New("unknown step type")
	ErrMissingDependency = errors.New("step depends on unknown step")
	ErrSelfDependency    = errors.New("step depends on itself")
	ErrCyclicDependency  = errors.New("cyclic dependency detected")
)

// ErrOutputExists — в RunContext уже есть выход этого шага; выход пишется один раз.
var ErrOutputExists = errors.New("step output already set")

// ValidationError указывает на шаг и поле, из-за которых PipelineSpec не прошла проверку.
// errors.Is срабатывает на соответствующую Err* причину.
type ValidationError struct {
	StepID  string
	Field   string // id, type или depends_on
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.StepID == "" {
		return e.Message
	}
	return fmt.Sprintf("step %s: %s", e.StepID, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError — конструктор ValidationError.
func NewValidationError(stepID, field, message string, cause error) *ValidationError {
	return &ValidationError{StepID: stepID, Field: field, Message: message, Err: cause}
}
