package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes wires all API endpoints onto the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/recipes", h.CreateRecipe).Methods(http.MethodPost)
	api.HandleFunc("/recipes", h.ListRecipes).Methods(http.MethodGet)
	api.HandleFunc("/recipes/validate", h.ValidateRecipe).Methods(http.MethodPost)
	api.HandleFunc("/recipes/{id}", h.GetRecipe).Methods(http.MethodGet)
	api.HandleFunc("/recipes/{id}", h.UpdateRecipe).Methods(http.MethodPut)
	api.HandleFunc("/recipes/{id}", h.DeleteRecipe).Methods(http.MethodDelete)
	api.HandleFunc("/recipes/{id}/stats", h.GetRecipeStats).Methods(http.MethodGet)
	api.HandleFunc("/recipes/{id}/execute", h.ExecuteRecipe).Methods(http.MethodPost)

	api.HandleFunc("/executions", h.ListExecutions).Methods(http.MethodGet)
	api.HandleFunc("/executions/{id}", h.GetExecution).Methods(http.MethodGet)
	api.HandleFunc("/executions/{id}/summary", h.GetExecutionSummary).Methods(http.MethodGet)
	api.HandleFunc("/executions/{id}/cancel", h.CancelExecution).Methods(http.MethodPost)

	api.HandleFunc("/providers", h.ListProviders).Methods(http.MethodGet)
}
