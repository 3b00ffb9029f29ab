package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/barrelbook/barrelbook/internal/gauge"
	"github.com/barrelbook/barrelbook/internal/inventory"
	"github.com/barrelbook/barrelbook/internal/platform/httpx"
	"github.com/barrelbook/barrelbook/internal/rbac"
	"github.com/barrelbook/barrelbook/internal/shared"
)

// Handler wires the transaction endpoints.
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
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.createManual)
		r.Put("/{id}", h.updateManual)
		r.Delete("/{id}", h.deleteManual)
		r.Post("/production", h.logProduction)
		r.Post("/loss", h.logLoss)
	})
}

type manualEntryRequest struct {
	Date         string  `json:"date" validate:"required"`
	Type         string  `json:"type" validate:"required"`
	Product      string  `json:"product" validate:"required"`
	SpiritsClass string  `json:"spirits_class" validate:"required,oneof=UNDER_190 NEUTRAL_190_PLUS"`
	TaxStatus    string  `json:"tax_status" validate:"required,oneof=BONDED TAXPAID"`
	EntryProof   float64 `json:"entry_proof" validate:"required,gt=0,lte=200"`
	ProofGallons float64 `json:"proof_gallons" validate:"gte=0"`
	WineGallons  float64 `json:"wine_gallons" validate:"gte=0"`
	Notes        string  `json:"notes" validate:"max=2000"`
}

func (r manualEntryRequest) toInput(actorID int64) (ManualEntryInput, error) {
	date, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return ManualEntryInput{}, errors.New("date must be YYYY-MM-DD")
	}
	return ManualEntryInput{
		Date:         date,
		Type:         TransactionType(r.Type),
		Product:      r.Product,
		SpiritsClass: inventory.SpiritsClass(r.SpiritsClass),
		TaxStatus:    inventory.TaxStatus(r.TaxStatus),
		EntryProof:   r.EntryProof,
		ProofGallons: r.ProofGallons,
		WineGallons:  r.WineGallons,
		Notes:        r.Notes,
		ActorID:      actorID,
	}, nil
}

type productionRequest struct {
	BatchID     string `json:"batch_id" validate:"required,uuid4"`
	CompletedAt string `json:"completed_at" validate:"required"`
}

type lossRequest struct {
	UnitID       string  `json:"unit_id" validate:"required,uuid4"`
	ProofGallons float64 `json:"proof_gallons" validate:"gte=0"`
	Reason       string  `json:"reason" validate:"required,max=2000"`
}

func (h *Handler) createManual(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.mutatingActor(w, r)
	if !ok {
		return
	}
	var req manualEntryRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput(actor.ID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	t, err := h.service.CreateManual(r.Context(), actor.TenantID, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) updateManual(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.mutatingActor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transaction id must be a UUID")
		return
	}
	var req manualEntryRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput(actor.ID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	t, err := h.service.UpdateManual(r.Context(), actor.TenantID, id, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) deleteManual(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.mutatingActor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transaction id must be a UUID")
		return
	}
	if err := h.service.DeleteManual(r.Context(), actor.TenantID, id, actor.ID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logProduction(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.mutatingActor(w, r)
	if !ok {
		return
	}
	var req productionRequest
	if !h.decode(w, r, &req) {
		return
	}
	batchID, err := uuid.Parse(req.BatchID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "batch_id must be a UUID")
		return
	}
	completedAt, err := time.Parse(time.RFC3339, req.CompletedAt)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "completed_at must be RFC3339")
		return
	}
	t, err := h.service.LogProduction(r.Context(), actor.TenantID, batchID, completedAt)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) logLoss(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.mutatingActor(w, r)
	if !ok {
		return
	}
	var req lossRequest
	if !h.decode(w, r, &req) {
		return
	}
	unitID, err := uuid.Parse(req.UnitID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "unit_id must be a UUID")
		return
	}
	t, err := h.service.LogLoss(r.Context(), actor.TenantID, unitID, req.ProofGallons, req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) mutatingActor(w http.ResponseWriter, r *http.Request) (*shared.Actor, bool) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, false
	}
	if !rbac.CanMutateLedger(actor.Role) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return actor, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTransactionNotFound), errors.Is(err, inventory.ErrUnitNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrPeriodLocked):
		httpx.Problem(w, http.StatusLocked, "Period Locked", err.Error())
	case errors.Is(err, ErrImmutable):
		httpx.Problem(w, http.StatusForbidden, "Immutable", err.Error())
	case errors.Is(err, ErrInvalidType), errors.Is(err, ErrNegativeGallons),
		errors.Is(err, ErrGallonMismatch), errors.Is(err, gauge.ErrInvalidProof),
		errors.Is(err, inventory.ErrNoUnits):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("ledger request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
