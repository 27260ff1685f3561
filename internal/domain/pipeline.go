package domain

// PipelineSpec — описание фиксированного pipeline.
//
// Порядок шагов в Steps задаёт порядок обхода при равных зависимостях.
type PipelineSpec struct {
	// Name — имя pipeline (DAG id).
	Name string `json:"name"`

	// Description — назначение pipeline.
	Description string `json:"description,omitempty"`

	// Steps — шаги pipeline.
	Steps []StepDef `json:"steps"`
}

// StepDef — определение шага в pipeline.
type StepDef struct {
	// ID — уникальный идентификатор шага.
	// По нему шаги читают результаты друг друга из контекста run.
	ID string `json:"id"`

	// Name — человекочитаемое имя шага.
	Name string `json:"name,omitempty"`

	// Type — тип шага: "fetch", "branch", "alert", "inference", "forward".
	Type string `json:"type"`

	// Phase — состояние pipeline, пока выполняется этот шаг.
	Phase Phase `json:"phase"`

	// DependsOn — шаги, которые должны завершиться до запуска этого.
	DependsOn []string `json:"depends_on,omitempty"`
}

// Step возвращает определение шага по ID.
func (s *PipelineSpec) Step(id string) (*StepDef, bool) {
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return &s.Steps[i], true
		}
	}
	return nil, false
}
