package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus: статус платежа.
type PaymentStatus string

const (
	// PaymentStatusProcessing: строка зарезервирована, сага выполняется.
	PaymentStatusProcessing PaymentStatus = "processing"

	// PaymentStatusApproved: средства зарезервированы и списываются (или списаны).
	PaymentStatusApproved PaymentStatus = "approved"

	// PaymentStatusDeclined: бизнес-отказ сервиса счетов.
	PaymentStatusDeclined PaymentStatus = "declined"

	// PaymentStatusFailed: сбой сервиса счетов или внутренняя ошибка.
	PaymentStatusFailed PaymentStatus = "failed"
)

// IsTerminal возвращает true, если из статуса нет переходов.
// Approved не терминальный: списание после оптимистичного одобрения может не пройти.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusDeclined || s == PaymentStatusFailed
}

// =============================================================================
// Допустимые переходы состояний (State Machine)
// =============================================================================

// allowedTransitions определяет валидные переходы состояний платежа.
var allowedTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusProcessing: {PaymentStatusApproved, PaymentStatusDeclined, PaymentStatusFailed},
	PaymentStatusApproved:   {PaymentStatusDeclined, PaymentStatusFailed},
}

// AllowedFrom возвращает статусы, из которых допустим переход в to.
// Используется для условного UPDATE ... WHERE status IN (...).
func AllowedFrom(to PaymentStatus) []PaymentStatus {
	var from []PaymentStatus
	for status, targets := range allowedTransitions {
		for _, target := range targets {
			if target == to {
				from = append(from, status)
			}
		}
	}
	return from
}

// =============================================================================
// Payment: доменная сущность
// =============================================================================

// Payment: платёж по карте.
type Payment struct {
	ID         string        // UUID платежа
	Amount     int64         // Сумма в минимальных единицах
	CardNumber CardNumber    // Номер карты, одноразовый
	Status     PaymentStatus // Текущий статус
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewPayment создаёт платёж в статусе processing.
func NewPayment(amount int64, card CardNumber) *Payment {
	now := time.Now().UTC()
	return &Payment{
		ID:         uuid.NewString(),
		Amount:     amount,
		CardNumber: card,
		Status:     PaymentStatusProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CanTransitionTo проверяет, допустим ли переход в указанное состояние.
func (p *Payment) CanTransitionTo(newStatus PaymentStatus) bool {
	for _, status := range allowedTransitions[p.Status] {
		if status == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo выполняет переход в новое состояние.
func (p *Payment) TransitionTo(newStatus PaymentStatus) error {
	if !p.CanTransitionTo(newStatus) {
		return ErrInvalidTransition
	}
	p.Status = newStatus
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// ValidateAmount проверяет сумму платежа.
// Ноль и отрицательная сумма дают разные отказы.
func ValidateAmount(amount int64) error {
	switch {
	case amount == 0:
		return ErrZeroAmount
	case amount < 0:
		return ErrNegativeAmount
	}
	return nil
}
