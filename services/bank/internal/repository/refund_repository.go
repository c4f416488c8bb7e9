package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/card-settlement/pkg/outbox"
	"example.com/card-settlement/services/bank/internal/domain"
)

// RefundRepository определяет интерфейс для работы с возвратами в БД.
type RefundRepository interface {
	// Create атомарно проверяет платёж и остаток и записывает возврат.
	// Ошибки: domain.ErrPaymentNotFound, domain.ErrPaymentNotApproved, domain.ErrExcessiveRefund.
	Create(ctx context.Context, refund *domain.Refund) error

	// GetByID возвращает возврат платежа paymentID.
	GetByID(ctx context.Context, paymentID, refundID string) (*domain.Refund, error)
}

// refundRepository: GORM реализация RefundRepository.
type refundRepository struct {
	db *gorm.DB
}

// NewRefundRepository создаёт новый репозиторий возвратов.
func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepository{db: db}
}

// Create выполняет проверку и вставку в одной транзакции.
// SELECT ... FOR UPDATE по строке платежа выстраивает конкурентные возвраты
// одного платежа в очередь: сумма читается только после получения блокировки.
func (r *refundRepository) Create(ctx context.Context, refund *domain.Refund) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment PaymentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", refund.PaymentID).
			First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrPaymentNotFound
			}
			return err
		}

		if domain.PaymentStatus(payment.Status) != domain.PaymentStatusApproved {
			return domain.ErrPaymentNotApproved
		}

		var refunded int64
		if err := tx.Model(&RefundModel{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("payment_id = ?", refund.PaymentID).
			Scan(&refunded).Error; err != nil {
			return err
		}

		if !refund.FitsInto(payment.toDomain(), refunded) {
			return domain.ErrExcessiveRefund
		}

		model := refundModelFromDomain(refund)
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		event, err := refundEvent(ctx, refund, refunded+refund.Amount)
		if err != nil {
			return err
		}
		if err := outbox.Append(tx, event); err != nil {
			return err
		}

		refund.CreatedAt = model.CreatedAt
		refund.UpdatedAt = model.UpdatedAt
		return nil
	})
}

// GetByID возвращает возврат по ID в рамках платежа.
func (r *refundRepository) GetByID(ctx context.Context, paymentID, refundID string) (*domain.Refund, error) {
	var model RefundModel

	if err := r.db.WithContext(ctx).
		Where("id = ? AND payment_id = ?", refundID, paymentID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRefundNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}
