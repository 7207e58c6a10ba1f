package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	// Vectors only appear once a label set is used.
	m.ObserveDelivery("page", "ga", time.Millisecond, nil)
	m.ObserveRegistry(1, 1)
	m.ObserveManifestReload(nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Subset(t, names, []string{
		"beacon_dispatch_deliveries_total",
		"beacon_dispatch_duration_seconds",
		"beacon_registered_clients",
		"beacon_manifest_reloads_total",
	})
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestMetrics_ObserveDelivery(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveDelivery("send_event", "ga", 2*time.Millisecond, nil)
	m.ObserveDelivery("send_event", "ga", 3*time.Millisecond, errors.New("down"))
	m.ObserveDelivery("send_event", "mixpanel", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchDeliveriesTotal.WithLabelValues("send_event", "ga", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchDeliveriesTotal.WithLabelValues("send_event", "ga", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchDeliveriesTotal.WithLabelValues("send_event", "mixpanel", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DispatchDuration))
}

func TestMetrics_ObserveRegistry(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRegistry(3, 1)
	m.ObserveRegistry(2, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RegisteredClients.WithLabelValues("analytics")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegisteredClients.WithLabelValues("error")))
}

func TestMetrics_ObserveManifestReload(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveManifestReload(nil)
	m.ObserveManifestReload(nil)
	m.ObserveManifestReload(errors.New("bad yaml"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ManifestReloadsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ManifestReloadsTotal.WithLabelValues("error")))
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusTeapot)

	assert.Equal(t, http.StatusTeapot, rw.statusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/v1/clients/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)

	for _, name := range []string{"ga", "mixpanel"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/clients/"+name, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	// Path variables collapse into the route template.
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodDelete, "/v1/clients/{name}", "204")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestHTTPMetricsMiddleware_Unmatched(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "200")))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveRegistry(4, 2)

	serveMux := http.NewServeMux()
	RegisterMetricsEndpoint(serveMux, reg)

	rec := httptest.NewRecorder()
	serveMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `beacon_registered_clients{type="analytics"} 4`), body)
}
