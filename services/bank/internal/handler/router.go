package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/card-settlement/pkg/metrics"
	"example.com/card-settlement/services/bank/internal/middleware"
	"example.com/card-settlement/services/bank/internal/service"
)

// serviceName: имя сервиса в метриках и спанах.
const serviceName = "bank"

// readinessTimeout ограничивает /readyz основного порта.
const readinessTimeout = 3 * time.Second

// ReadinessChecker возвращает nil, если сервис готов принимать трафик.
type ReadinessChecker func(ctx context.Context) error

// RouterConfig: зависимости HTTP API. AuthMW и RateLimitMW опциональны.
type RouterConfig struct {
	Payments       service.PaymentService
	Refunds        service.RefundService
	AuthMW         *middleware.AuthMiddleware
	RateLimitMW    *middleware.RateLimitMiddleware
	ReadinessCheck ReadinessChecker
	Debug          bool
}

// NewRouter собирает gin.Engine с API платежей и возвратов.
//
// Порядок middleware: recovery, заголовки безопасности, спан otelgin,
// метрики, идентификаторы запроса (после otelgin, чтобы взять trace_id спана),
// access log. На /api/v1 дальше идут auth и rate limit: лимит считается по мерчанту.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.SecurityHeaders(),
		otelgin.Middleware(serviceName),
		metrics.GinMetricsMiddleware(serviceName),
		middleware.RequestIDs(),
		middleware.AccessLog(),
	)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	})
	engine.GET("/readyz", readinessHandler(cfg.ReadinessCheck))

	v1 := engine.Group("/api/v1")
	if cfg.AuthMW != nil {
		v1.Use(cfg.AuthMW.Handle())
	}
	if cfg.RateLimitMW != nil {
		v1.Use(cfg.RateLimitMW.Handle())
	}

	payments := NewPaymentHandler(cfg.Payments)
	refunds := NewRefundHandler(cfg.Refunds)

	v1.POST("/payments", payments.CreatePayment)
	v1.GET("/payments/:payment_id", payments.GetPayment)
	v1.POST("/payments/:payment_id/refunds", refunds.CreateRefund)
	v1.GET("/payments/:payment_id/refunds/:refund_id", refunds.GetRefund)

	return engine
}

func readinessHandler(check ReadinessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		if err := check(ctx); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
