package engine

import (
	"fmt"
	"slices"

	"github.com/shaiso/spaicer/internal/domain"
)

// Типы шагов.
const (
	StepTypeFetch     = "fetch"
	StepTypeBranch    = "branch"
	StepTypeAlert     = "alert"
	StepTypeInference = "inference"
	StepTypeForward   = "forward"
)

// Допустимые типы шагов.
var validStepTypes = map[string]bool{
	StepTypeFetch:     true,
	StepTypeBranch:    true,
	StepTypeAlert:     true,
	StepTypeInference: true,
	StepTypeForward:   true,
}

// Validate выполняет валидацию PipelineSpec.
//
// Проверяет:
// - Наличие шагов
// - Уникальность ID шагов
// - Корректность типов шагов
// - Валидность зависимостей (depends_on)
//
// Циклы обнаруживает BuildDAG.
func Validate(spec *domain.PipelineSpec) error {
	if spec == nil || len(spec.Steps) == 0 {
		return ErrEmptySteps
	}

	stepIDs := make(map[string]bool, len(spec.Steps))

	for i := range spec.Steps {
		if err := ValidateStep(&spec.Steps[i], stepIDs); err != nil {
			return err
		}
	}

	for i := range spec.Steps {
		step := &spec.Steps[i]
		for _, dep := range step.DependsOn {
			if !stepIDs[dep] {
				return NewValidationError(step.ID, "depends_on",
					fmt.Sprintf("depends on unknown step: %s", dep), ErrMissingDependency)
			}
		}
	}

	return nil
}

// ValidateStep валидирует один шаг.
// stepIDs — уже встреченные ID шагов (для проверки уникальности).
func ValidateStep(step *domain.StepDef, stepIDs map[string]bool) error {
	if step.ID == "" {
		return NewValidationError("", "id", "step has empty ID", ErrEmptyStepID)
	}

	if stepIDs[step.ID] {
		return NewValidationError(step.ID, "id",
			fmt.Sprintf("duplicate step ID: %s", step.ID), ErrDuplicateStepID)
	}
	stepIDs[step.ID] = true

	if !validStepTypes[step.Type] {
		return NewValidationError(step.ID, "type",
			fmt.Sprintf("unknown step type: %q", step.Type), ErrUnknownStepType)
	}

	if slices.Contains(step.DependsOn, step.ID) {
		return NewValidationError(step.ID, "depends_on",
			"step depends on itself", ErrSelfDependency)
	}

	return nil
}

// IsValidStepType проверяет, является ли тип шага допустимым.
func IsValidStepType(stepType string) bool {
	return validStepTypes[stepType]
}
