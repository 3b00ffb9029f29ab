package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/barrelbook/barrelbook/internal/platform/httpx"
	"github.com/barrelbook/barrelbook/internal/shared"
)

// Handler serves on-demand report calculations. Concurrent requests for
// the same tenant and period share a single calculation via singleflight.
type Handler struct {
	calc   *Calculator
	group  singleflight.Group
	logger *slog.Logger
}

// NewHandler constructs Handler.
func NewHandler(calc *Calculator, logger *slog.Logger) *Handler {
	return &Handler{calc: calc, logger: logger}
}

// MountRoutes registers routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/calculations", func(r chi.Router) {
		r.Get("/monthly", h.monthly)
		r.Get("/storage", h.storage)
	})
}

func (h *Handler) monthly(w http.ResponseWriter, r *http.Request) {
	actor, month, year, ok := h.params(w, r)
	if !ok {
		return
	}
	key := fmt.Sprintf("monthly:%s:%04d-%02d", actor.TenantID, year, month)
	// Coalesced waiters must not inherit the first caller's cancellation.
	calcCtx := context.WithoutCancel(r.Context())
	data, err, _ := h.group.Do(key, func() (any, error) {
		return h.calc.CalculateMonthly(calcCtx, actor.TenantID, month, year)
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *Handler) storage(w http.ResponseWriter, r *http.Request) {
	actor, month, year, ok := h.params(w, r)
	if !ok {
		return
	}
	key := fmt.Sprintf("storage:%s:%04d-%02d", actor.TenantID, year, month)
	calcCtx := context.WithoutCancel(r.Context())
	data, err, _ := h.group.Do(key, func() (any, error) {
		return h.calc.CalculateStorage(calcCtx, actor.TenantID, month, year)
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *Handler) params(w http.ResponseWriter, r *http.Request) (*shared.Actor, int, int, bool) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, 0, 0, false
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", "month must be an integer")
		return nil, 0, 0, false
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", "year must be an integer")
		return nil, 0, 0, false
	}
	return actor, month, year, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var recErr *ReconciliationError
	switch {
	case errors.Is(err, ErrInvalidPeriod):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", err.Error())
	case errors.As(err, &recErr):
		httpx.JSON(w, http.StatusConflict, map[string]any{
			"title":      "Reconciliation Failed",
			"status":     http.StatusConflict,
			"detail":     err.Error(),
			"mismatches": recErr.Mismatches,
		})
	default:
		h.logger.Error("report calculation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
