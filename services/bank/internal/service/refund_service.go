package service

import (
	"context"
	"errors"
	"fmt"

	"example.com/card-settlement/pkg/logger"
	"example.com/card-settlement/pkg/metrics"
	"example.com/card-settlement/services/bank/internal/domain"
	"example.com/card-settlement/services/bank/internal/repository"
)

// RefundService: интерфейс бизнес-логики возвратов.
type RefundService interface {
	// RequestRefund записывает возврат, если платёж approved и остаток позволяет.
	// Отказы: domain.ErrInvalidRefundAmount, domain.ErrPaymentNotFound,
	// domain.ErrPaymentNotApproved, domain.ErrExcessiveRefund.
	RequestRefund(ctx context.Context, paymentID string, amount int64) (*domain.Refund, error)

	// GetRefund возвращает возврат платежа.
	GetRefund(ctx context.Context, paymentID, refundID string) (*domain.Refund, error)
}

// refundService: реализация RefundService.
type refundService struct {
	repo repository.RefundRepository
}

// NewRefundService создаёт новый сервис возвратов.
func NewRefundService(repo repository.RefundRepository) RefundService {
	return &refundService{repo: repo}
}

// RequestRefund проверяет сумму и делегирует атомарную проверку и запись хранилищу.
func (s *refundService) RequestRefund(ctx context.Context, paymentID string, amount int64) (*domain.Refund, error) {
	log := logger.Ctx(logger.WithPaymentID(ctx, paymentID))

	refund, err := domain.NewRefund(paymentID, amount)
	if err != nil {
		metrics.RecordRefund("invalid")
		return nil, err
	}

	if err := s.repo.Create(ctx, refund); err != nil {
		switch {
		case errors.Is(err, domain.ErrExcessiveRefund):
			metrics.RecordRefund("excessive")
			log.Info().Int64("amount", amount).Msg("Возврат отклонён: превышена сумма платежа")
			return nil, err
		case errors.Is(err, domain.ErrPaymentNotFound), errors.Is(err, domain.ErrPaymentNotApproved):
			metrics.RecordRefund("not_eligible")
			log.Info().Err(err).Msg("Возврат отклонён: платёж недоступен для возврата")
			return nil, err
		}

		metrics.RecordRefund("error")
		log.Error().Err(err).Msg("Ошибка записи возврата")
		return nil, fmt.Errorf("ошибка записи возврата: %w", err)
	}

	metrics.RecordRefund("accepted")
	log.Info().
		Str("refund_id", refund.ID).
		Int64("amount", refund.Amount).
		Msg("Возврат принят")

	return refund, nil
}

// GetRefund возвращает возврат платежа.
func (s *refundService) GetRefund(ctx context.Context, paymentID, refundID string) (*domain.Refund, error) {
	return s.repo.GetByID(ctx, paymentID, refundID)
}
