package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/user/site-auditor/internal/delivery/http/request"
	"github.com/user/site-auditor/internal/delivery/http/response"
	"github.com/user/site-auditor/internal/repository"
	"github.com/user/site-auditor/internal/usecase"
	"go.uber.org/zap"
)

// HealthCheck pings one backing service.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	manager usecase.AuditManager
	events  repository.EventReader
	checks  map[string]HealthCheck
	logger  *zap.Logger
}

// NewHandler creates the API handler. events and checks may be nil.
func NewHandler(manager usecase.AuditManager, events repository.EventReader, checks map[string]HealthCheck, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		manager: manager,
		events:  events,
		checks:  checks,
		logger:  logger,
	}
}

func (h *Handler) HandleSubmitAudit(w http.ResponseWriter, r *http.Request) {
	var req request.SubmitAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.MaxPages < 0 {
		h.writeJSONError(w, "max_pages must not be negative", http.StatusBadRequest)
		return
	}

	runID, err := h.manager.Submit(r.Context(), req.Target(), req.Force)
	switch {
	case errors.Is(err, usecase.ErrInvalidTarget):
		h.writeJSONError(w, "Invalid website URL", http.StatusBadRequest)
		return
	case errors.Is(err, usecase.ErrSiteRecentlyAudited):
		h.writeJSONError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("failed to submit audit", zap.String("website", req.Website), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, response.SubmitAuditResponse{
		Status:  "success",
		Message: "Site submitted for audit",
		RunID:   runID,
	})
}

func (h *Handler) HandleGetAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.manager.Status(r.Context(), id)
	if errors.Is(err, usecase.ErrRunNotFound) {
		h.writeJSONError(w, "Audit run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to get audit status", zap.String("run_id", id), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, response.AuditStatusResponse{
		RunID:       run.ID,
		Website:     run.Target.Website,
		State:       string(run.State),
		Summary:     run.Summary,
		Error:       run.Error,
		SubmittedAt: run.SubmittedAt,
		FinishedAt:  run.FinishedAt,
	})
}

func (h *Handler) HandleGetAuditEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		h.writeJSONError(w, "Event storage is not configured", http.StatusNotImplemented)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.manager.Status(r.Context(), id); err != nil {
		if errors.Is(err, usecase.ErrRunNotFound) {
			h.writeJSONError(w, "Audit run not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get audit status", zap.String("run_id", id), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	events, err := h.events.FindByRun(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list audit events", zap.String("run_id", id), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.AuditEventsResponse{RunID: id, Events: events})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Error("health check failed", zap.String("service", name), zap.Error(err))
			status[name] = "unhealthy"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "healthy"
	}
	h.writeJSON(w, code, status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
