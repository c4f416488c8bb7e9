package domain

import (
	"time"

	"github.com/google/uuid"
)

// Refund: частичный или полный возврат по approved платежу. Неизменяем после записи.
type Refund struct {
	ID        string
	PaymentID string
	Amount    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRefund создаёт возврат с проверкой суммы.
func NewRefund(paymentID string, amount int64) (*Refund, error) {
	if amount <= 0 {
		return nil, ErrInvalidRefundAmount
	}

	now := time.Now().UTC()
	return &Refund{
		ID:        uuid.NewString(),
		PaymentID: paymentID,
		Amount:    amount,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// FitsInto проверяет, что возврат помещается в остаток платежа.
// refunded: сумма уже записанных возвратов.
// Сравнение через остаток: сумма refunded+Amount может переполнить int64.
func (r *Refund) FitsInto(payment *Payment, refunded int64) bool {
	if refunded < 0 || refunded > payment.Amount {
		return false
	}
	return r.Amount <= payment.Amount-refunded
}
