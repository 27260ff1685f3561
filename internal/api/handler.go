package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/spaicer/internal/domain"
	"github.com/shaiso/spaicer/internal/pipeline"
	"github.com/shaiso/spaicer/internal/repo"
	"github.com/shaiso/spaicer/internal/telemetry"
)

// History — чтение истории runs.
//
// Реализуется repo.RunRepo и repo.MemoryRunRepo.
type History interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
	ListTasks(ctx context.Context, runID uuid.UUID) ([]domain.Task, error)
}

// ScheduleSource — доступ к расписанию планировщика.
//
// Реализуется scheduler.Scheduler.
type ScheduleSource interface {
	Schedule() domain.Schedule
	SetEnabled(enabled bool)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runner   *pipeline.Runner
	history  History
	schedule ScheduleSource
	metrics  http.Handler
	httpm    *telemetry.HTTPMetrics
	logger   *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runner   *pipeline.Runner
	History  History
	Schedule ScheduleSource

	// Metrics — обработчик /metrics. Может быть nil.
	Metrics http.Handler

	// HTTPMetrics — счётчики запросов к API. Может быть nil.
	HTTPMetrics *telemetry.HTTPMetrics

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runner:   cfg.Runner,
		history:  cfg.History,
		schedule: cfg.Schedule,
		metrics:  cfg.Metrics,
		httpm:    cfg.HTTPMetrics,
		logger:   logger,
	}
}

// Health отвечает на liveness-проверку.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "idle"
	if h.runner != nil && h.runner.Active() != nil {
		status = "running"
	}
	Success(w, HealthResponse{Status: "ok", Pipeline: status})
}
