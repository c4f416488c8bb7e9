// Package repository содержит реализацию доступа к данным сервиса расчётов.
package repository

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"example.com/card-settlement/pkg/outbox"
	"example.com/card-settlement/services/bank/internal/domain"
)

// =============================================================================
// GORM модели
// =============================================================================

// PaymentModel: GORM модель для таблицы payments.
// card_number уникален на всё время жизни хранилища: карта одноразовая.
type PaymentModel struct {
	ID         string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Amount     int64     `gorm:"column:amount;not null"`
	CardNumber string    `gorm:"column:card_number;type:varchar(15);not null;uniqueIndex:idx_payments_card_number"`
	Status     string    `gorm:"column:status;type:varchar(20);not null;index:idx_payments_status_created"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime;index:idx_payments_status_created"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (PaymentModel) TableName() string {
	return "payments"
}

// toDomain конвертирует GORM модель в доменную сущность.
func (m *PaymentModel) toDomain() *domain.Payment {
	return &domain.Payment{
		ID:         m.ID,
		Amount:     m.Amount,
		CardNumber: domain.CardNumber(m.CardNumber),
		Status:     domain.PaymentStatus(m.Status),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// paymentModelFromDomain конвертирует доменную сущность в GORM модель.
func paymentModelFromDomain(p *domain.Payment) *PaymentModel {
	return &PaymentModel{
		ID:         p.ID,
		Amount:     p.Amount,
		CardNumber: string(p.CardNumber),
		Status:     string(p.Status),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// RefundModel: GORM модель для таблицы refunds.
type RefundModel struct {
	ID        string        `gorm:"column:id;type:varchar(36);primaryKey"`
	PaymentID string        `gorm:"column:payment_id;type:varchar(36);not null;index"`
	Payment   *PaymentModel `gorm:"foreignKey:PaymentID;references:ID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Amount    int64         `gorm:"column:amount;not null"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (RefundModel) TableName() string {
	return "refunds"
}

func (m *RefundModel) toDomain() *domain.Refund {
	return &domain.Refund{
		ID:        m.ID,
		PaymentID: m.PaymentID,
		Amount:    m.Amount,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func refundModelFromDomain(r *domain.Refund) *RefundModel {
	return &RefundModel{
		ID:        r.ID,
		PaymentID: r.PaymentID,
		Amount:    r.Amount,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Models возвращает модели для миграции в порядке зависимостей.
func Models() []interface{} {
	return []interface{}{&PaymentModel{}, &RefundModel{}, &outbox.Event{}}
}

// isDuplicateKeyError проверяет, является ли ошибка дубликатом ключа.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "1062")
}
