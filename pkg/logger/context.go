package logger

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// requestFields: идентификаторы, которые попадают в каждую запись лога запроса.
type requestFields struct {
	traceID       string
	correlationID string
	paymentID     string
}

type fieldsKey struct{}

func fieldsFrom(ctx context.Context) requestFields {
	f, _ := ctx.Value(fieldsKey{}).(requestFields)
	return f
}

func withFields(ctx context.Context, update func(*requestFields)) context.Context {
	f := fieldsFrom(ctx)
	update(&f)
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithTraceID сохраняет trace_id запроса.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return withFields(ctx, func(f *requestFields) { f.traceID = traceID })
}

// WithCorrelationID сохраняет correlation_id запроса.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return withFields(ctx, func(f *requestFields) { f.correlationID = correlationID })
}

// WithPaymentID привязывает последующие записи к платежу.
func WithPaymentID(ctx context.Context, paymentID string) context.Context {
	return withFields(ctx, func(f *requestFields) { f.paymentID = paymentID })
}

// NewContextWithIDs сохраняет непустые trace_id и correlation_id одним вызовом.
func NewContextWithIDs(ctx context.Context, traceID, correlationID string) context.Context {
	if traceID == "" && correlationID == "" {
		return ctx
	}
	return withFields(ctx, func(f *requestFields) {
		if traceID != "" {
			f.traceID = traceID
		}
		if correlationID != "" {
			f.correlationID = correlationID
		}
	})
}

// TraceIDFromContext возвращает trace_id. Если он не задан явно,
// берётся из активного спана OpenTelemetry.
func TraceIDFromContext(ctx context.Context) string {
	if id := fieldsFrom(ctx).traceID; id != "" {
		return id
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// CorrelationIDFromContext возвращает correlation_id или пустую строку.
func CorrelationIDFromContext(ctx context.Context) string {
	return fieldsFrom(ctx).correlationID
}

// PaymentIDFromContext возвращает payment_id или пустую строку.
func PaymentIDFromContext(ctx context.Context) string {
	return fieldsFrom(ctx).paymentID
}

// FromContext возвращает глобальный логгер с полями запроса.
//
//	log := logger.FromContext(ctx)
//	log.Info().Int64("amount", amount).Msg("Холд размещён")
func FromContext(ctx context.Context) zerolog.Logger {
	f := fieldsFrom(ctx)
	traceID := TraceIDFromContext(ctx)
	if traceID == "" && f.correlationID == "" && f.paymentID == "" {
		return log
	}

	lctx := log.With()
	if traceID != "" {
		lctx = lctx.Str("trace_id", traceID)
	}
	if f.correlationID != "" {
		lctx = lctx.Str("correlation_id", f.correlationID)
	}
	if f.paymentID != "" {
		lctx = lctx.Str("payment_id", f.paymentID)
	}
	return lctx.Logger()
}

// Ctx: FromContext с указателем, как у zerolog.Ctx.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := FromContext(ctx)
	return &l
}
