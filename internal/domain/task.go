package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task — выполнение одного шага внутри run.
//
// Task создаётся Runner'ом, когда все зависимости шага завершены,
// или сразу в SKIPPED, если шаг не попал на выбранную ветку.
type Task struct {
	ID     uuid.UUID  `json:"id"`
	RunID  uuid.UUID  `json:"run_id"`
	StepID string     `json:"step_id"`
	Type   string     `json:"type"` // fetch, branch, alert, inference, forward
	Status TaskStatus `json:"status"`

	Output any    `json:"output,omitempty"` // значение, записанное шагом в контекст run
	Next   string `json:"next,omitempty"`   // шаг, выбранный развилкой

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewTask создаёт task для шага run.
func NewTask(runID uuid.UUID, step *StepDef, now time.Time) *Task {
	return &Task{
		ID:        uuid.New(),
		RunID:     runID,
		StepID:    step.ID,
		Type:      step.Type,
		CreatedAt: now,
	}
}

// Duration — время от старта до завершения, 0 пока task не завершён.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

func (t *Task) MarkRunning(now time.Time) {
	t.Status = TaskStatusRunning
	t.StartedAt = &now
}

// MarkSucceeded фиксирует выход шага и, для развилки, выбранную ветку.
func (t *Task) MarkSucceeded(now time.Time, output any, next string) {
	t.Status = TaskStatusSucceeded
	t.FinishedAt = &now
	t.Output = output
	t.Next = next
}

func (t *Task) MarkFailed(now time.Time, err string) {
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.Error = err
}

// MarkSkipped — шаг вне выбранной ветки; StartedAt остаётся пустым.
func (t *Task) MarkSkipped(now time.Time) {
	t.Status = TaskStatusSkipped
	t.FinishedAt = &now
}
