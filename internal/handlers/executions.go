package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"storylab-engine/internal/models"
)

// ExecuteRequest starts a recipe run. Input is the external input the
// recipe's nodes resolve against.
type ExecuteRequest struct {
	Input     map[string]interface{} `json:"input"`
	ProjectID string                 `json:"projectId"`
	StageID   string                 `json:"stageId"`
	UserID    string                 `json:"userId"`
}

// ExecuteRecipe kicks off an asynchronous run and returns the pending
// execution record. Progress is read from the execution endpoints.
func (h *Handlers) ExecuteRecipe(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	execution, err := h.orchestrator.Execute(r.Context(), mux.Vars(r)["id"], req.Input, models.ExecutionContext{
		ProjectID: req.ProjectID,
		StageID:   req.StageID,
		UserID:    req.UserID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"executionId": execution.ID,
		"status":      execution.Status,
	})
}

// GetExecution returns the full execution document including per-node
// results.
func (h *Handlers) GetExecution(w http.ResponseWriter, r *http.Request) {
	execution, err := h.tracker.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, execution)
}

// GetExecutionSummary returns the flattened status view of a run.
func (h *Handlers) GetExecutionSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.tracker.GetSummary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// ListExecutions returns execution summaries filtered by recipeId,
// projectId, and status.
func (h *Handlers) ListExecutions(w http.ResponseWriter, r *http.Request) {
	filters := models.ExecutionFilters{
		RecipeID:  r.URL.Query().Get("recipeId"),
		ProjectID: r.URL.Query().Get("projectId"),
		Status:    models.ExecutionStatus(r.URL.Query().Get("status")),
	}
	limit, offset := pagination(r)

	summaries, total, err := h.tracker.List(filters, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"executions": summaries,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

// CancelExecution requests best-effort cancellation of a running execution.
func (h *Handlers) CancelExecution(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.Cancel(mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "cancelling",
	})
}
