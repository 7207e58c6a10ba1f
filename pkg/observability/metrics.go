package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Dispatch metrics
	DispatchDeliveriesTotal *prometheus.CounterVec
	DispatchDuration        *prometheus.HistogramVec
	RegisteredClients       *prometheus.GaugeVec

	// Manifest metrics
	ManifestReloadsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beacon_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		DispatchDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_dispatch_deliveries_total",
				Help: "Total number of client invocations by dispatch operation",
			},
			[]string{"operation", "client", "status"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beacon_dispatch_duration_seconds",
				Help:    "Client invocation duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		RegisteredClients: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "beacon_registered_clients",
				Help: "Number of currently registered clients by type",
			},
			[]string{"type"},
		),
		ManifestReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_manifest_reloads_total",
				Help: "Total number of client manifest reloads",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DispatchDeliveriesTotal,
		m.DispatchDuration,
		m.RegisteredClients,
		m.ManifestReloadsTotal,
	)

	return m
}

// ObserveDelivery records one client invocation made by the dispatcher
func (m *Metrics) ObserveDelivery(operation, client string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.DispatchDeliveriesTotal.WithLabelValues(operation, client, status).Inc()
	m.DispatchDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveRegistry records the size of the registered client views
func (m *Metrics) ObserveRegistry(analytics, errors int) {
	m.RegisteredClients.WithLabelValues("analytics").Set(float64(analytics))
	m.RegisteredClients.WithLabelValues("error").Set(float64(errors))
}

// ObserveManifestReload records a manifest reload outcome
func (m *Metrics) ObserveManifestReload(err error) {
	if err != nil {
		m.ManifestReloadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.ManifestReloadsTotal.WithLabelValues("success").Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled with the mux route template to keep cardinality bounded.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, gatherer prometheus.Gatherer) {
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
