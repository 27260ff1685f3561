package api

import (
	"net/http"
)

// GetPipeline возвращает структуру pipeline.
// GET /api/v1/pipeline
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	resp := PipelineFromSpec(h.runner.Spec(), h.runner.DAG())
	if active := h.runner.Active(); active != nil {
		resp.ActiveRunID = &active.ID
	}
	Success(w, resp)
}
