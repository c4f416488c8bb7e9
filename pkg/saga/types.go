// Package saga содержит контракты событий саги расчётов по карте.
// Сервис расчётов публикует их через outbox, внешние consumers читают из Kafka.
// Единый источник правды для payload, исключает рассинхронизацию между producer и consumers.
package saga

import (
	"encoding/json"
	"time"
)

// Типы событий.
const (
	EventPaymentApproved = "payment.approved"
	EventPaymentDeclined = "payment.declined"
	EventPaymentFailed   = "payment.failed"
	EventRefundCreated   = "refund.created"
)

// PaymentEventType возвращает тип события для итогового статуса платежа.
// Для промежуточного статуса (processing) возвращается пустая строка.
func PaymentEventType(status string) string {
	switch status {
	case "approved":
		return EventPaymentApproved
	case "declined":
		return EventPaymentDeclined
	case "failed":
		return EventPaymentFailed
	default:
		return ""
	}
}

// PaymentEvent: смена статуса платежа (топик bank.payments).
type PaymentEvent struct {
	PaymentID  string    `json:"payment_id"`
	Status     string    `json:"status"`
	Amount     int64     `json:"amount"`
	CardMasked string    `json:"card_masked"`      // Номер карты без середины (123456*****2345)
	Reason     string    `json:"reason,omitempty"` // Код отказа сервиса счетов
	OccurredAt time.Time `json:"occurred_at"`
}

// ToJSON сериализует событие в JSON.
func (e *PaymentEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// PaymentEventFromJSON десериализует событие из JSON.
func PaymentEventFromJSON(data []byte) (*PaymentEvent, error) {
	var e PaymentEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// RefundEvent: принятый возврат (топик bank.refunds).
type RefundEvent struct {
	RefundID      string    `json:"refund_id"`
	PaymentID     string    `json:"payment_id"`
	Amount        int64     `json:"amount"`
	RefundedTotal int64     `json:"refunded_total"` // Сумма всех возвратов платежа, включая этот
	OccurredAt    time.Time `json:"occurred_at"`
}

// ToJSON сериализует событие в JSON.
func (e *RefundEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// RefundEventFromJSON десериализует событие из JSON.
func RefundEventFromJSON(data []byte) (*RefundEvent, error) {
	var e RefundEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
