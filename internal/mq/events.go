package mq

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/spaicer/internal/domain"
)

// RunEventPayload — payload событий run.started и run.finished.
type RunEventPayload struct {
	RunID        uuid.UUID        `json:"run_id"`
	Pipeline     string           `json:"pipeline"`
	Status       domain.RunStatus `json:"status"`
	Phase        domain.Phase     `json:"phase,omitempty"`
	Trigger      domain.Trigger   `json:"trigger"`
	ScheduledFor *time.Time       `json:"scheduled_for,omitempty"`
	Error        string           `json:"error,omitempty"`
	DurationMs   int64            `json:"duration_ms,omitempty"`
}

// StepEventPayload — payload события step.finished.
type StepEventPayload struct {
	RunID      uuid.UUID         `json:"run_id"`
	TaskID     uuid.UUID         `json:"task_id"`
	StepID     string            `json:"step_id"`
	Type       string            `json:"type"`
	Status     domain.TaskStatus `json:"status"`
	Next       string            `json:"next,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMs int64             `json:"duration_ms,omitempty"`
}

// NewRunEventPayload собирает payload из run.
func NewRunEventPayload(run *domain.Run) RunEventPayload {
	return RunEventPayload{
		RunID:        run.ID,
		Pipeline:     run.Pipeline,
		Status:       run.Status,
		Phase:        run.Phase,
		Trigger:      run.Trigger,
		ScheduledFor: run.ScheduledFor,
		Error:        run.Error,
		DurationMs:   run.Duration().Milliseconds(),
	}
}

// NewStepEventPayload собирает payload из task.
func NewStepEventPayload(task *domain.Task) StepEventPayload {
	return StepEventPayload{
		RunID:      task.RunID,
		TaskID:     task.ID,
		StepID:     task.StepID,
		Type:       task.Type,
		Status:     task.Status,
		Next:       task.Next,
		Error:      task.Error,
		DurationMs: task.Duration().Milliseconds(),
	}
}

// EventPublisher — то, что умеет публиковать события (Publisher).
type EventPublisher interface {
	PublishEvent(ctx context.Context, msgType MessageType, payload any) error
}

// Events транслирует ход выполнения pipeline в RabbitMQ.
//
// Реализует pipeline.Observer. Ошибки публикации логируются
// и не влияют на выполнение run.
type Events struct {
	publisher EventPublisher
	logger    *slog.Logger
}

// NewEvents создаёт Events.
func NewEvents(publisher EventPublisher, logger *slog.Logger) *Events {
	if logger == nil {
		logger = slog.Default()
	}
	return &Events{publisher: publisher, logger: logger}
}

// RunStarted публикует run.started.
func (e *Events) RunStarted(ctx context.Context, run *domain.Run) {
	e.publish(ctx, MessageTypeRunStarted, NewRunEventPayload(run))
}

// TaskFinished публикует step.finished.
func (e *Events) TaskFinished(ctx context.Context, _ *domain.Run, task *domain.Task) {
	e.publish(ctx, MessageTypeStepFinished, NewStepEventPayload(task))
}

// RunFinished публикует run.finished.
func (e *Events) RunFinished(ctx context.Context, run *domain.Run) {
	e.publish(ctx, MessageTypeRunFinished, NewRunEventPayload(run))
}

func (e *Events) publish(ctx context.Context, msgType MessageType, payload any) {
	if err := e.publisher.PublishEvent(ctx, msgType, payload); err != nil {
		e.logger.Warn("failed to publish event", "type", msgType, "error", err)
	}
}
