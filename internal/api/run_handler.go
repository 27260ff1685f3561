package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/spaicer/internal/domain"
	"github.com/shaiso/spaicer/internal/pipeline"
	"github.com/shaiso/spaicer/internal/repo"
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{}

	// Парсим query параметры
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status, ok := domain.ParseRunStatus(statusStr)
		if !ok {
			BadRequest(w, "invalid status")
			return
		}
		filter.Status = status
	}

	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		BadRequest(w, "invalid limit")
		return
	}
	filter.Limit = limit

	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		BadRequest(w, "invalid offset")
		return
	}
	filter.Offset = offset

	runs, err := h.history.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// TriggerRun запускает pipeline вручную и ждёт завершения run.
// POST /api/v1/runs
//
// Run, завершившийся с FAILED, возвращается как обычный результат.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	// Отключение клиента не прерывает начатый run.
	ctx := context.WithoutCancel(r.Context())

	report, err := h.runner.Execute(ctx, domain.TriggerManual, nil)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		RunInProgress(w)
		return
	}
	if report == nil {
		InternalError(w, h.logger, err)
		return
	}
	if err != nil {
		h.logger.Warn("manual run failed", "run_id", report.Run.ID, "error", err)
	}

	tasks := make([]TaskResponse, len(report.Tasks))
	for i, t := range report.Tasks {
		tasks[i] = TaskFromDomain(*t)
	}

	Created(w, TriggerRunResponse{
		Run:   RunFromDomain(*report.Run),
		Tasks: tasks,
	})
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.history.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// ListRunTasks возвращает задачи run.
// GET /api/v1/runs/{id}/tasks
func (h *Handler) ListRunTasks(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	// Проверяем, что run существует
	_, err = h.history.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	tasks, err := h.history.ListTasks(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(t)
	}

	List(w, result, len(result))
}

// queryInt читает неотрицательный int из query с дефолтным значением.
func queryInt(r *http.Request, key string, defaultVal int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
