package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"storylab-engine/internal/models"
)

// CreateRecipeRequest is the payload for creating or replacing a recipe
// definition.
type CreateRecipeRequest struct {
	Name      string        `json:"name" validate:"required"`
	StageType string        `json:"stageType"`
	Nodes     []models.Node `json:"nodes" validate:"required,min=1"`
	Edges     []models.Edge `json:"edges"`
}

// CreateRecipe stores a new recipe after structural validation.
func (h *Handlers) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	var req CreateRecipeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	created, err := h.recipes.Create(&models.Recipe{
		Name:      req.Name,
		StageType: req.StageType,
		Nodes:     req.Nodes,
		Edges:     req.Edges,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, created)
}

// GetRecipe returns one recipe by id.
func (h *Handlers) GetRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recipes.Get(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// ListRecipes returns recipes, optionally filtered by stageType and name.
func (h *Handlers) ListRecipes(w http.ResponseWriter, r *http.Request) {
	filters := models.RecipeFilters{
		StageType: r.URL.Query().Get("stageType"),
		Name:      r.URL.Query().Get("name"),
	}
	limit, offset := pagination(r)

	recipes, total, err := h.recipes.List(filters, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"recipes": recipes,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// UpdateRecipe replaces a recipe definition and bumps its version.
func (h *Handlers) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	var req CreateRecipeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	updated, err := h.recipes.Update(&models.Recipe{
		ID:        mux.Vars(r)["id"],
		Name:      req.Name,
		StageType: req.StageType,
		Nodes:     req.Nodes,
		Edges:     req.Edges,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, updated)
}

// DeleteRecipe removes a recipe definition. Past executions are retained.
func (h *Handlers) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := h.recipes.Delete(mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidateRecipe runs structural validation without persisting anything. All
// violations are reported together.
func (h *Handlers) ValidateRecipe(w http.ResponseWriter, r *http.Request) {
	var req CreateRecipeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	result := h.recipes.Validator().Validate(&models.Recipe{
		Name:      req.Name,
		StageType: req.StageType,
		Nodes:     req.Nodes,
		Edges:     req.Edges,
	})

	h.writeJSON(w, http.StatusOK, result)
}

// GetRecipeStats returns aggregate execution outcomes for a recipe.
func (h *Handlers) GetRecipeStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := h.recipes.Get(id); err != nil {
		h.writeError(w, err)
		return
	}

	stats, err := h.recipes.Stats(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// pagination reads limit/offset query parameters with defaults.
func pagination(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
