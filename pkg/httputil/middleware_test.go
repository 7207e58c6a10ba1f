package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/beacon/pkg/observability"
)

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &buf)

	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler bug")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "handler bug")
}

func TestRequestIDMiddleware(t *testing.T) {
	logger := observability.NopLogger()
	var seen string
	handler := RequestIDMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	handler.ServeHTTP(w, req)
	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "req-1", seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestMaxBytesMiddleware(t *testing.T) {
	handler := MaxBytesMiddleware(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var dest map[string]any
		if !ParseJSONOrError(w, r, &dest) {
			return
		}
		WriteNoContent(w)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"name":"too long"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
