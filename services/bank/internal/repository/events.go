package repository

import (
	"context"
	"time"

	"example.com/card-settlement/pkg/kafka"
	"example.com/card-settlement/pkg/logger"
	"example.com/card-settlement/pkg/outbox"
	"example.com/card-settlement/pkg/saga"
	"example.com/card-settlement/services/bank/internal/domain"
)

// eventHeaders переносит идентификаторы запроса в headers события.
func eventHeaders(ctx context.Context) outbox.Headers {
	headers := make(outbox.Headers, 2)
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		headers[kafka.HeaderTraceID] = traceID
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		headers[kafka.HeaderCorrelationID] = correlationID
	}
	return headers
}

// paymentEvent строит запись outbox о новом статусе платежа.
func paymentEvent(ctx context.Context, p *domain.Payment, reason string) (*outbox.Event, error) {
	status := string(p.Status)
	payload := saga.PaymentEvent{
		PaymentID:  p.ID,
		Status:     status,
		Amount:     p.Amount,
		CardMasked: p.CardNumber.Masked(),
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}

	return outbox.NewEvent(outbox.AggregatePayment, p.ID, saga.PaymentEventType(status),
		kafka.TopicPayments, p.ID, payload, eventHeaders(ctx))
}

// refundEvent строит запись outbox о принятом возврате.
// Ключ сообщения равен ID платежа: события платежа и его возвратов идут в одну партицию.
func refundEvent(ctx context.Context, r *domain.Refund, refundedTotal int64) (*outbox.Event, error) {
	payload := saga.RefundEvent{
		RefundID:      r.ID,
		PaymentID:     r.PaymentID,
		Amount:        r.Amount,
		RefundedTotal: refundedTotal,
		OccurredAt:    time.Now().UTC(),
	}

	return outbox.NewEvent(outbox.AggregateRefund, r.ID, saga.EventRefundCreated,
		kafka.TopicRefunds, r.PaymentID, payload, eventHeaders(ctx))
}
