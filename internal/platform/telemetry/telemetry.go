// Package telemetry exposes Prometheus metrics for the HTTP server and the
// account and patient operations. A nil *Provider records nothing, so
// components can be built without metrics in tests.
package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "strokecare"

var defaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Provider holds every metric the server exports.
type Provider struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	authAttemptsTotal *prometheus.CounterVec
	patientOpsTotal   *prometheus.CounterVec
	datasetRowsTotal  *prometheus.CounterVec
}

// NewProvider registers all metrics on a fresh registry, together with the Go
// runtime and process collectors.
func NewProvider() *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Provider{
		registry: reg,
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   defaultDurationBuckets,
			},
			[]string{"method", "route"},
		),
		httpRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		authAttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Login and registration attempts by outcome",
			},
			[]string{"kind", "outcome"},
		),
		patientOpsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "patient_operations_total",
				Help:      "Patient store operations by kind and outcome",
			},
			[]string{"operation", "outcome"},
		),
		datasetRowsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dataset_rows_total",
				Help:      "Dataset rows processed by the loader",
			},
			[]string{"result"},
		),
	}
}

// Registry returns the registry the metrics live in.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// AuthAttempt counts a login or registration ("login", "register") that
// ended with outcome ("success", "invalid", "error").
func (p *Provider) AuthAttempt(kind, outcome string) {
	if p == nil {
		return
	}
	p.authAttemptsTotal.WithLabelValues(kind, outcome).Inc()
}

// PatientOperation counts one patient store operation.
func (p *Provider) PatientOperation(op string, err error) {
	if p == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	p.patientOpsTotal.WithLabelValues(op, outcome).Inc()
}

// DatasetLoaded counts the rows inserted and skipped by one dataset import.
func (p *Provider) DatasetLoaded(inserted, skipped int) {
	if p == nil {
		return
	}
	p.datasetRowsTotal.WithLabelValues("inserted").Add(float64(inserted))
	p.datasetRowsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// MetricsMiddleware returns an Echo middleware that records HTTP server
// metrics labelled by route pattern.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p.httpRequestsInFlight.Inc()
			defer p.httpRequestsInFlight.Dec()

			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			p.httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			p.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(responseStatus(c, err))).Inc()

			return err
		}
	}
}

// responseStatus is the status the client will see. A returned error has not
// been rendered yet, so its code wins over the recorder default.
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// PrometheusHandler serves the registry in Prometheus text exposition format.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry}))
}
