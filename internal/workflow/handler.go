package workflow

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/barrelbook/barrelbook/internal/platform/httpx"
	"github.com/barrelbook/barrelbook/internal/report"
	"github.com/barrelbook/barrelbook/internal/shared"
)

// Handler wires the monthly report workflow endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs Handler.
func NewHandler(service *Service, validate *validator.Validate, logger *slog.Logger) *Handler {
	return &Handler{service: service, validate: validate, logger: logger}
}

// MountRoutes registers routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Post("/{id}/submit-for-review", h.submitForReview)
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
		r.Post("/{id}/submit-to-ttb", h.submitToTTB)
		r.Post("/{id}/archive", h.archive)
	})
}

type createReportRequest struct {
	Month    int    `json:"month" validate:"required,min=1,max=12"`
	Year     int    `json:"year" validate:"required,min=2020"`
	FormType string `json:"form_type" validate:"required,oneof=INVENTORY_FORM STORAGE_FORM"`
}

type reviewRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type rejectRequest struct {
	Notes string `json:"notes" validate:"required,max=2000"`
}

type ttbRequest struct {
	ConfirmationNumber string `json:"confirmation_number" validate:"required,max=64"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createReportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rpt, err := h.service.Create(r.Context(), actor.TenantID, req.Month, req.Year, FormType(req.FormType), actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rpt)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	reports, err := h.service.List(r.Context(), actor.TenantID, 50, 0)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	rpt, err := h.service.Get(r.Context(), actor.TenantID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rpt)
}

func (h *Handler) submitForReview(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	rpt, err := h.service.SubmitForReview(r.Context(), actor.TenantID, id, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rpt)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && r.ContentLength > 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	rpt, err := h.service.Approve(r.Context(), actor.TenantID, id, req.Notes, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rpt)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "rejection notes are required")
		return
	}
	rpt, err := h.service.Reject(r.Context(), actor.TenantID, id, req.Notes, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rpt)
}

func (h *Handler) submitToTTB(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req ttbRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "confirmation_number is required")
		return
	}
	rpt, err := h.service.SubmitToTTB(r.Context(), actor.TenantID, id, req.ConfirmationNumber, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rpt)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	rpt, err := h.service.Archive(r.Context(), actor.TenantID, id, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rpt)
}

func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (*shared.Actor, uuid.UUID, bool) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "report id must be a UUID")
		return nil, uuid.Nil, false
	}
	return actor, id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var terr *TransitionError
	switch {
	case errors.Is(err, ErrReportNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateReport):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.As(err, &terr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Transition Denied", terr.Error())
	case errors.Is(err, report.ErrInvalidPeriod):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", err.Error())
	case errors.Is(err, report.ErrReconciliation):
		httpx.Problem(w, http.StatusConflict, "Reconciliation Failed", err.Error())
	default:
		h.logger.Error("workflow request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
