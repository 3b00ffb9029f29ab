package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRequests(t *testing.T) {
	metrics := NewMetrics()
	router := chi.NewRouter()
	router.Use(metrics.Middleware)
	router.Get("/reports", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, scrape.Body.String(), `barrelbook_http_requests_total{code="200",route="/reports"} 1`)
}

func TestDomainCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ReportCalculated("INVENTORY_FORM")
	metrics.ReconciliationFailed("STORAGE_FORM")
	metrics.WorkflowTransition("APPROVE")
	metrics.LockedPeriodRejected()

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()
	require.Contains(t, body, `barrelbook_reports_calculated_total{form_type="INVENTORY_FORM"} 1`)
	require.Contains(t, body, `barrelbook_reconciliation_failures_total{form_type="STORAGE_FORM"} 1`)
	require.Contains(t, body, `barrelbook_workflow_transitions_total{action="APPROVE"} 1`)
	require.Contains(t, body, "barrelbook_locked_period_rejections_total 1")
}

func TestDomainCountersNilSafe(t *testing.T) {
	var metrics *Metrics
	require.NotPanics(t, func() {
		metrics.ReportCalculated("INVENTORY_FORM")
		metrics.ReconciliationFailed("INVENTORY_FORM")
		metrics.WorkflowTransition("APPROVE")
		metrics.LockedPeriodRejected()
	})
}
