package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/accesswatch/accesswatch-backend/internal/domain/action"
	"github.com/accesswatch/accesswatch-backend/internal/domain/alert"
	domainerrors "github.com/accesswatch/accesswatch-backend/internal/domain/errors"
	"github.com/accesswatch/accesswatch-backend/internal/infrastructure/repository"
	"github.com/accesswatch/accesswatch-backend/internal/service/analysis"
)

// AlertStore is the alert persistence the API needs.
type AlertStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*alert.Alert, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status alert.Status, resolvedBy, resolution *string) error
}

// ActionStore reads the response action ledger.
type ActionStore interface {
	GetByAlertID(ctx context.Context, alertID uuid.UUID) ([]*action.Action, error)
}

// NameStore resolves pseudonyms back to original identifiers for
// investigators. May be nil when pseudonymization is disabled.
type NameStore interface {
	Lookup(ctx context.Context, pseudonym string) (string, error)
}

// Handler holds the API endpoints.
type Handler struct {
	analysis *analysis.Service
	alerts   AlertStore
	actions  ActionStore
	names    NameStore
	logger   *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(analysisSvc *analysis.Service, alerts AlertStore, actions ActionStore, names NameStore, logger *slog.Logger) *Handler {
	return &Handler{
		analysis: analysisSvc,
		alerts:   alerts,
		actions:  actions,
		names:    names,
		logger:   logger,
	}
}

// RegisterRoutes wires the endpoints onto mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/analysis/trigger", h.triggerAnalysis)
	mux.HandleFunc("GET /api/v1/analysis/progress", h.analysisProgress)
	mux.HandleFunc("PATCH /api/v1/alerts/{id}/status", h.updateAlertStatus)
	mux.HandleFunc("GET /api/v1/alerts/{id}/actions", h.alertActions)
	mux.HandleFunc("GET /api/v1/name-mappings/{pseudonym}", h.lookupName)
	mux.HandleFunc("GET /healthz", h.health)
}

func (h *Handler) triggerAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysis.TriggerRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, r, domainerrors.NewValidationError("INVALID_BODY", "request body is not valid JSON").WithCause(err))
			return
		}
	}

	result, err := h.analysis.RunManual(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) analysisProgress(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.analysis.Progress().Snapshot())
}

type updateStatusRequest struct {
	Status     string `json:"status"`
	ResolvedBy string `json:"resolved_by,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

func (h *Handler) updateAlertStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_ALERT_ID", "alert id is not a valid UUID"))
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_BODY", "request body is not valid JSON").WithCause(err))
		return
	}

	next, err := alert.ParseStatus(req.Status)
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_STATUS", err.Error()))
		return
	}

	a, err := h.alerts.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		h.writeError(w, r, domainerrors.NewNotFoundError("alert"))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if next.IsTerminal() {
		err = a.Resolve(next, req.ResolvedBy, req.Resolution)
	} else {
		err = a.TransitionTo(next)
	}
	if err != nil {
		h.writeError(w, r, domainerrors.NewBusinessError("INVALID_TRANSITION", err.Error()))
		return
	}

	var resolvedBy, resolution *string
	if req.ResolvedBy != "" {
		resolvedBy = &req.ResolvedBy
	}
	if req.Resolution != "" {
		resolution = &req.Resolution
	}
	if err := h.alerts.UpdateStatus(r.Context(), id, next, resolvedBy, resolution); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, a)
}

func (h *Handler) alertActions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_ALERT_ID", "alert id is not a valid UUID"))
		return
	}

	actions, err := h.actions.GetByAlertID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if actions == nil {
		actions = []*action.Action{}
	}
	h.writeJSON(w, http.StatusOK, actions)
}

func (h *Handler) lookupName(w http.ResponseWriter, r *http.Request) {
	if h.names == nil {
		h.writeError(w, r, domainerrors.NewNotFoundError("name mapping"))
		return
	}

	pseudonym := r.PathValue("pseudonym")
	original, err := h.names.Lookup(r.Context(), pseudonym)
	if errors.Is(err, repository.ErrNotFound) {
		h.writeError(w, r, domainerrors.NewNotFoundError("name mapping"))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"pseudonym": pseudonym,
		"original":  original,
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	message := "internal server error"

	var appErr *domainerrors.AppError
	switch {
	case errors.As(err, &appErr):
		status = appErr.StatusCode
		code = appErr.Code
		message = appErr.Message
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
		code = "NOT_FOUND"
		message = "resource not found"
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err)
	}

	var resp errorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
