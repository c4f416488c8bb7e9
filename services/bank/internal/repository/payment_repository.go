package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/card-settlement/pkg/outbox"
	"example.com/card-settlement/services/bank/internal/domain"
)

// PaymentRepository определяет интерфейс для работы с платежами в БД.
type PaymentRepository interface {
	// Create резервирует строку платежа в статусе processing.
	// Повторный номер карты возвращает domain.ErrCardAlreadyUsed.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID возвращает платёж по ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// UpdateStatus сохраняет payment.Status, если строка ещё в статусе,
	// из которого этот переход допустим. В той же транзакции пишется событие в outbox.
	// reason: код отказа сервиса счетов (пусто для approved).
	UpdateStatus(ctx context.Context, payment *domain.Payment, reason string) error

	// GetStuckProcessing возвращает платежи в processing старше olderThan.
	GetStuckProcessing(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error)
}

// paymentRepository: GORM реализация PaymentRepository.
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository создаёт новый репозиторий платежей.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create создаёт строку платежа. Уникальный индекс по card_number решает гонку
// двух запросов с одной картой: вставка проходит ровно у одного.
func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	model := paymentModelFromDomain(payment)

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrCardAlreadyUsed
		}
		return err
	}

	payment.CreatedAt = model.CreatedAt
	payment.UpdatedAt = model.UpdatedAt

	return nil
}

// GetByID возвращает платёж по ID.
func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	var model PaymentModel

	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// UpdateStatus выполняет условный UPDATE и пишет событие в outbox.
func (r *paymentRepository) UpdateStatus(ctx context.Context, payment *domain.Payment, reason string) error {
	from := domain.AllowedFrom(payment.Status)
	if len(from) == 0 {
		return domain.ErrInvalidTransition
	}

	fromStatuses := make([]string, len(from))
	for i, s := range from {
		fromStatuses[i] = string(s)
	}

	event, err := paymentEvent(ctx, payment, reason)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&PaymentModel{}).
			Where("id = ? AND status IN ?", payment.ID, fromStatuses).
			Updates(map[string]interface{}{
				"status":     string(payment.Status),
				"updated_at": payment.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}

		// Строки нет или она уже ушла дальше по state machine
		if result.RowsAffected == 0 {
			return domain.ErrInvalidTransition
		}

		return outbox.Append(tx, event)
	})
}

// GetStuckProcessing возвращает платежи в processing старше указанного времени.
func (r *paymentRepository) GetStuckProcessing(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error) {
	var models []PaymentModel

	threshold := time.Now().UTC().Add(-olderThan)

	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(domain.PaymentStatusProcessing), threshold).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	payments := make([]*domain.Payment, 0, len(models))
	for i := range models {
		payments = append(payments, models[i].toDomain())
	}

	return payments, nil
}
