// Package app wires configuration, middleware and routing for the engine.
package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/barrelbook/barrelbook/internal/audit"
	"github.com/barrelbook/barrelbook/internal/auth"
	"github.com/barrelbook/barrelbook/internal/inventory"
	"github.com/barrelbook/barrelbook/internal/ledger"
	"github.com/barrelbook/barrelbook/internal/observability"
	"github.com/barrelbook/barrelbook/internal/report"
	"github.com/barrelbook/barrelbook/internal/workflow"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthService      *auth.Service
	InventoryHandler *inventory.Handler
	LedgerHandler    *ledger.Handler
	ReportHandler    *report.Handler
	WorkflowHandler  *workflow.Handler
	AuditHandler     *audit.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(params.AuthService))
		params.InventoryHandler.MountRoutes(r)
		params.LedgerHandler.MountRoutes(r)
		params.ReportHandler.MountRoutes(r)
		params.WorkflowHandler.MountRoutes(r)
		params.AuditHandler.MountRoutes(r)
	})

	return r
}
