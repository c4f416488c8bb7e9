// Package middleware содержит HTTP middleware сервиса расчётов.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"example.com/card-settlement/pkg/logger"
)

// Заголовки идентификаторов запроса.
const (
	HeaderTraceID       = "X-Trace-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
)

// Ключи gin.Context.
const (
	ContextTraceID       = "trace_id"
	ContextCorrelationID = "correlation_id"
)

// maxIDLength: входящие ID длиннее считаются мусором и заменяются.
const maxIDLength = 128

// RequestIDs кладёт trace_id и correlation_id в контекст запроса и в ответ.
// trace_id берётся из X-Trace-ID, затем X-Request-ID, затем из спана otelgin.
// Без входящего correlation_id он совпадает с trace_id.
func RequestIDs() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := firstValidID(c.GetHeader(HeaderTraceID), c.GetHeader(HeaderRequestID))
		if traceID == "" {
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
				traceID = sc.TraceID().String()
			} else {
				traceID = uuid.NewString()
			}
		}

		correlationID := firstValidID(c.GetHeader(HeaderCorrelationID))
		if correlationID == "" {
			correlationID = traceID
		}

		c.Request = c.Request.WithContext(logger.NewContextWithIDs(c.Request.Context(), traceID, correlationID))
		c.Set(ContextTraceID, traceID)
		c.Set(ContextCorrelationID, correlationID)
		c.Header(HeaderTraceID, traceID)
		c.Header(HeaderCorrelationID, correlationID)

		c.Next()
	}
}

// firstValidID возвращает первый ID из печатных ASCII символов без пробелов.
// Значение попадает в логи и заголовки сервиса счетов.
func firstValidID(candidates ...string) string {
	for _, id := range candidates {
		if isValidID(id) {
			return id
		}
	}
	return ""
}

func isValidID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

// AccessLog пишет одну запись на завершённый запрос. Пробы пишутся уровнем debug.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := logger.FromContext(c.Request.Context())
		status := c.Writer.Status()

		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		case c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/readyz":
			event = log.Debug()
		}

		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Int("status", status).
			Int("size", c.Writer.Size()).
			Str("client_ip", c.ClientIP()).
			Dur("duration", time.Since(start)).
			Msg("HTTP запрос")
	}
}
