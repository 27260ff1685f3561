package domain

import (
	"time"

	"github.com/google/uuid"
)

// Trigger — источник запуска run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual" // API или CLI
)

// Run — одно выполнение pipeline, по расписанию или вручную.
// У каждого run свой контекст шагов, между runs ничего не переносится.
type Run struct {
	ID       uuid.UUID `json:"id"`
	Pipeline string    `json:"pipeline"`
	Status   RunStatus `json:"status"`
	Phase    Phase     `json:"phase,omitempty"`
	Trigger  Trigger   `json:"trigger"`

	// ScheduledFor — срабатывание расписания, ради которого создан run.
	// Пусто для ручного запуска.
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING.
func NewRun(pipeline string, trigger Trigger, now time.Time) *Run {
	return &Run{
		ID:        uuid.New(),
		Pipeline:  pipeline,
		Status:    RunStatusPending,
		Trigger:   trigger,
		CreatedAt: now,
	}
}

// Duration — время от старта до завершения, 0 пока run не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning(now time.Time) {
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// EnterPhase фиксирует текущее состояние pipeline.
func (r *Run) EnterPhase(phase Phase) {
	r.Phase = phase
}

// MarkSucceeded переводит run в статус SUCCEEDED (phase DONE).
func (r *Run) MarkSucceeded(now time.Time) {
	r.Status = RunStatusSucceeded
	r.Phase = PhaseDone
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *Run) MarkFailed(now time.Time, err string) {
	r.Status = RunStatusFailed
	r.Phase = PhaseFailed
	r.FinishedAt = &now
	r.Error = err
}
