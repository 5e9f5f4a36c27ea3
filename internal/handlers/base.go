// Package handlers exposes the recipe engine over HTTP: recipe CRUD and
// validation, execution control, provider discovery, and health.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"storylab-engine/internal/common/errors"
	"storylab-engine/internal/common/logging"
	"storylab-engine/internal/config"
	"storylab-engine/internal/engine"
	"storylab-engine/internal/providers"
	"storylab-engine/internal/recipe"
	"storylab-engine/internal/storage"
)

type Handlers struct {
	storage      storage.Storage
	recipes      *recipe.Store
	orchestrator *engine.Orchestrator
	tracker      *engine.Tracker
	providers    *providers.Registry
	config       *config.Config
	validate     *validator.Validate
	logger       logging.Logger
}

func New(store storage.Storage, recipes *recipe.Store, orchestrator *engine.Orchestrator, tracker *engine.Tracker, registry *providers.Registry, cfg *config.Config, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		storage:      store,
		recipes:      recipes,
		orchestrator: orchestrator,
		tracker:      tracker,
		providers:    registry,
		config:       cfg,
		validate:     validator.New(),
		logger:       logger,
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", err)
	}
}

// writeError maps domain error types onto HTTP statuses.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsType(err, errors.ErrTypeValidation), errors.IsType(err, errors.ErrTypeUnresolved):
		status = http.StatusBadRequest
	case errors.IsType(err, errors.ErrTypeNotFound):
		status = http.StatusNotFound
	case errors.IsType(err, errors.ErrTypeTimeout):
		status = http.StatusGatewayTimeout
	case errors.IsType(err, errors.ErrTypeConnection):
		status = http.StatusBadGateway
	}

	h.writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
	})
}

func (h *Handlers) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, errors.ValidationError("invalid JSON body: "+err.Error()))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, errors.ValidationError(err.Error()))
		return false
	}
	return true
}
