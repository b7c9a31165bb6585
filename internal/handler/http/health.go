package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kyle-bartlett/job-ops-sub000/internal/repository"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	storage repository.Storage
	log     *zap.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(storage repository.Storage, log *zap.Logger) *HealthHandler {
	return &HealthHandler{storage: storage, log: log}
}

// Health reports process liveness.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, map[string]string{"status": "ok"}, http.StatusOK)
}

// Ready reports readiness, including storage connectivity.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		h.log.Warn("readiness check failed", zap.Error(err))
		writeJSON(w, h.log, map[string]string{"status": "unavailable"}, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, h.log, map[string]string{"status": "ready"}, http.StatusOK)
}
