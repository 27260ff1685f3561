package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/spaicer/internal/domain"
	"github.com/shaiso/spaicer/internal/engine"
)

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Pipeline string `json:"pipeline"`
}

// Pipeline DTOs

// StepResponse — шаг pipeline.
type StepResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Type      string   `json:"type"`
	Phase     string   `json:"phase"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// PipelineResponse — структура pipeline: шаги, рёбра и порядок выполнения.
type PipelineResponse struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []StepResponse `json:"steps"`
	Edges       []engine.Edge  `json:"edges"`
	Order       []string       `json:"order"`
	ActiveRunID *uuid.UUID     `json:"active_run_id,omitempty"`
}

// PipelineFromSpec конвертирует PipelineSpec и DAG в PipelineResponse.
func PipelineFromSpec(spec *domain.PipelineSpec, dag *engine.DAG) PipelineResponse {
	steps := make([]StepResponse, len(spec.Steps))
	for i, s := range spec.Steps {
		steps[i] = StepResponse{
			ID:        s.ID,
			Name:      s.Name,
			Type:      s.Type,
			Phase:     string(s.Phase),
			DependsOn: s.DependsOn,
		}
	}
	return PipelineResponse{
		Name:        spec.Name,
		Description: spec.Description,
		Steps:       steps,
		Edges:       dag.Edges(),
		Order:       dag.OrderIDs(),
	}
}

// Run DTOs

// TriggerRunResponse — результат ручного запуска: run и его tasks.
type TriggerRunResponse struct {
	Run   RunResponse    `json:"run"`
	Tasks []TaskResponse `json:"tasks"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID           uuid.UUID  `json:"id"`
	Pipeline     string     `json:"pipeline"`
	Status       string     `json:"status"`
	Phase        string     `json:"phase,omitempty"`
	Trigger      string     `json:"trigger"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	DurationMs   int64      `json:"duration_ms,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:           r.ID,
		Pipeline:     r.Pipeline,
		Status:       string(r.Status),
		Phase:        string(r.Phase),
		Trigger:      string(r.Trigger),
		ScheduledFor: r.ScheduledFor,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		DurationMs:   r.Duration().Milliseconds(),
		Error:        r.Error,
		CreatedAt:    r.CreatedAt,
	}
}

// Task DTOs

// TaskResponse — ответ с task.
type TaskResponse struct {
	ID         uuid.UUID  `json:"id"`
	RunID      uuid.UUID  `json:"run_id"`
	StepID     string     `json:"step_id"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	Output     any        `json:"output,omitempty"`
	Next       string     `json:"next,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:         t.ID,
		RunID:      t.RunID,
		StepID:     t.StepID,
		Type:       t.Type,
		Status:     string(t.Status),
		Output:     t.Output,
		Next:       t.Next,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
		DurationMs: t.Duration().Milliseconds(),
		Error:      t.Error,
		CreatedAt:  t.CreatedAt,
	}
}

// Schedule DTOs

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// ScheduleResponse — ответ с расписанием.
type ScheduleResponse struct {
	CronExpr  string     `json:"cron_expr"`
	Timezone  string     `json:"timezone"`
	StartDate time.Time  `json:"start_date"`
	Catchup   bool       `json:"catchup"`
	Enabled   bool       `json:"enabled"`
	NextDueAt *time.Time `json:"next_due_at,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastRunID *uuid.UUID `json:"last_run_id,omitempty"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		CronExpr:  s.CronExpr,
		Timezone:  s.Timezone,
		StartDate: s.StartDate,
		Catchup:   s.Catchup,
		Enabled:   s.Enabled,
		NextDueAt: s.NextDueAt,
		LastRunAt: s.LastRunAt,
		LastRunID: s.LastRunID,
	}
}
