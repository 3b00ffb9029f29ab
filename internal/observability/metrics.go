// Package observability exposes Prometheus metrics for the engine.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the application's Prometheus metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	ReportsCalculated      *prometheus.CounterVec
	ReconciliationFailures *prometheus.CounterVec
	WorkflowTransitions    *prometheus.CounterVec
	LockedPeriodRejections prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "barrelbook_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "barrelbook_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "barrelbook_reports_calculated_total",
		Help: "Monthly report calculations by form type.",
	}, []string{"form_type"})
	reconciliation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "barrelbook_reconciliation_failures_total",
		Help: "Fatal snapshot reconciliation failures by form type.",
	}, []string{"form_type"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "barrelbook_workflow_transitions_total",
		Help: "Report workflow transitions by action.",
	}, []string{"action"})
	locked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "barrelbook_locked_period_rejections_total",
		Help: "Ledger mutations rejected because the period is locked.",
	})
	registry.MustRegister(requests, duration, reports, reconciliation, transitions, locked)
	return &Metrics{
		registry:               registry,
		handler:                promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:          requests,
		requestDuration:        duration,
		ReportsCalculated:      reports,
		ReconciliationFailures: reconciliation,
		WorkflowTransitions:    transitions,
		LockedPeriodRejections: locked,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ReportCalculated counts one completed report calculation.
func (m *Metrics) ReportCalculated(formType string) {
	if m == nil {
		return
	}
	m.ReportsCalculated.WithLabelValues(formType).Inc()
}

// ReconciliationFailed counts a fatal snapshot reconciliation mismatch.
func (m *Metrics) ReconciliationFailed(formType string) {
	if m == nil {
		return
	}
	m.ReconciliationFailures.WithLabelValues(formType).Inc()
}

// WorkflowTransition counts a committed report workflow transition.
func (m *Metrics) WorkflowTransition(action string) {
	if m == nil {
		return
	}
	m.WorkflowTransitions.WithLabelValues(action).Inc()
}

// LockedPeriodRejected counts a ledger mutation refused by the period lock.
func (m *Metrics) LockedPeriodRejected() {
	if m == nil {
		return
	}
	m.LockedPeriodRejections.Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
