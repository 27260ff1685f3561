package api

import (
	"encoding/json"
	"net/http"
)

// GetSchedule возвращает расписание планировщика.
// GET /api/v1/schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	if h.schedule == nil {
		NotFound(w, "scheduler is not configured")
		return
	}
	Success(w, ScheduleFromDomain(h.schedule.Schedule()))
}

// SetScheduleEnabled включает или выключает расписание.
// PUT /api/v1/schedule/enabled
func (h *Handler) SetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	if h.schedule == nil {
		NotFound(w, "scheduler is not configured")
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Enabled == nil {
		BadRequest(w, "enabled is required")
		return
	}

	h.schedule.SetEnabled(*req.Enabled)
	h.logger.Info("schedule toggled", "enabled", *req.Enabled)

	Success(w, ScheduleFromDomain(h.schedule.Schedule()))
}
