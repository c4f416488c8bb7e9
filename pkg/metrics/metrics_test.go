package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPayment(t *testing.T) {
	before := testutil.ToFloat64(PaymentsTotal.WithLabelValues("approved"))

	RecordPayment("approved")

	assert.Equal(t, before+1, testutil.ToFloat64(PaymentsTotal.WithLabelValues("approved")))
}

func TestRecordRefund(t *testing.T) {
	before := testutil.ToFloat64(RefundsTotal.WithLabelValues("excessive"))

	RecordRefund("excessive")
	RecordRefund("excessive")

	assert.Equal(t, before+2, testutil.ToFloat64(RefundsTotal.WithLabelValues("excessive")))
}

func TestRecordAccountCall(t *testing.T) {
	RecordAccountCall("place_hold", "ok", 15*time.Millisecond)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(AccountCallDuration), 1)
}

func TestServer_Readyz(t *testing.T) {
	tests := []struct {
		name       string
		check      ReadinessChecker
		wantStatus int
	}{
		{name: "без проверки", check: nil, wantStatus: http.StatusOK},
		{name: "зависимости доступны", check: func(context.Context) error { return nil }, wantStatus: http.StatusOK},
		{name: "MySQL недоступен", check: func(context.Context) error { return errors.New("mysql down") }, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.check != nil {
				opts = append(opts, WithReadinessCheck(tt.check))
			}
			srv := NewServer(":0", "bank", opts...)

			w := httptest.NewRecorder()
			srv.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestServer_Healthz(t *testing.T) {
	srv := NewServer(":0", "bank")

	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())
}

func TestGinMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMetricsMiddleware("bank-test"))
	r.GET("/api/v1/payments/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	matched := HTTPRequests.WithLabelValues("bank-test", "/api/v1/payments/:id", http.MethodGet, "404")
	unmatched := HTTPRequests.WithLabelValues("bank-test", unmatchedRoute, http.MethodGet, "404")
	beforeMatched := testutil.ToFloat64(matched)
	beforeUnmatched := testutil.ToFloat64(unmatched)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/abc", nil))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wp-admin", nil))

	assert.Equal(t, beforeMatched+1, testutil.ToFloat64(matched))
	assert.Equal(t, beforeUnmatched+1, testutil.ToFloat64(unmatched))
	assert.Equal(t, float64(0), testutil.ToFloat64(HTTPInFlight.WithLabelValues("bank-test")))
}
