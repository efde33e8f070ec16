package requestctx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddleware(t *testing.T) {
	var requestID, clientIP string
	handler := middleware.RequestID(Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID, _ = domain.GetRequestID(r.Context())
		clientIP, _ = domain.GetClientIP(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotEmpty(t, requestID)
	assert.Equal(t, "198.51.100.4", clientIP)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))

	req.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}

func TestLogger_OmitsQuery(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recovery/abort?token=secret-token", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/v1/recovery/abort", fields["path"])
	assert.Equal(t, int64(http.StatusAccepted), fields["status"])
	for _, v := range fields {
		assert.NotContains(t, v, "secret-token")
	}
}
