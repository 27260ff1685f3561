package pipeline

import "errors"

// Ошибки runner'а.
var (
	// ErrRunInProgress — pipeline уже выполняется.
	ErrRunInProgress = errors.New("run already in progress")

	// ErrRunFailed — run завершился с ошибкой шага.
	ErrRunFailed = errors.New("run failed")

	// ErrInvalidBranch — шаг ветвления выбрал шаг, не являющийся его прямым преемником.
	ErrInvalidBranch = errors.New("invalid branch selection")

	// ErrStepNotRegistered — для шага из PipelineSpec нет реализации.
	ErrStepNotRegistered = errors.New("step not registered")

	// ErrStepTypeMismatch — тип реализации не совпадает с типом в PipelineSpec.
	ErrStepTypeMismatch = errors.New("step type mismatch")
)
