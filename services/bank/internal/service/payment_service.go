// Package service содержит бизнес-логику сервиса расчётов.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"example.com/card-settlement/pkg/account"
	"example.com/card-settlement/pkg/logger"
	"example.com/card-settlement/pkg/metrics"
	"example.com/card-settlement/services/bank/internal/domain"
	"example.com/card-settlement/services/bank/internal/repository"
)

// reasonInternal: причина для событий, когда сбой не связан с ответом сервиса счетов.
const reasonInternal = "internal"

// reasonRecovery: причина для платежей, завершённых фоновым восстановлением.
const reasonRecovery = "processing_timeout"

// =============================================================================
// Интерфейс сервиса
// =============================================================================

// CreatePaymentRequest: запрос на проведение платежа.
type CreatePaymentRequest struct {
	Amount     int64
	CardNumber string
}

// CreatePaymentResult: итог саги.
// Payment не nil всегда: если строка не записана, у платежа свежий ID и статус failed.
type CreatePaymentResult struct {
	Payment   *domain.Payment
	Persisted bool
	Outcome   domain.Outcome
	Reason    account.ErrorCode // Код отказа сервиса счетов (пусто при успехе)
}

// PaymentService: интерфейс бизнес-логики платежей.
type PaymentService interface {
	// CreatePayment проводит платёж: резерв → одобрение → списание.
	// Возвращает ошибку только для отказов до записи строки:
	// domain.ErrZeroAmount, domain.ErrNegativeAmount, domain.ErrInvalidCardNumber, domain.ErrCardAlreadyUsed.
	// Отказы и сбои сервиса счетов приходят в CreatePaymentResult.
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)

	// GetPayment возвращает платёж по ID.
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)

	// RecoverStuckPayments помечает зависшие processing платежи как failed.
	RecoverStuckPayments(ctx context.Context) (int, error)
}

// Config: настройки сервиса платежей.
type Config struct {
	StuckAfter    time.Duration // Возраст processing платежа, после которого он считается зависшим
	RecoveryBatch int           // Сколько зависших платежей обрабатывать за проход
	UsedCardTTL   time.Duration // TTL отметки использованной карты в Redis
}

// DefaultConfig возвращает настройки по умолчанию.
func DefaultConfig() Config {
	return Config{
		StuckAfter:    5 * time.Minute,
		RecoveryBatch: 100,
		UsedCardTTL:   defaultUsedCardTTL,
	}
}

// =============================================================================
// Реализация сервиса
// =============================================================================

// paymentService: реализация PaymentService.
type paymentService struct {
	repo     repository.PaymentRepository
	accounts account.Service
	cards    *cardGuard
	tracer   trace.Tracer
	cfg      Config
}

// NewPaymentService создаёт новый сервис платежей.
// redisClient может быть nil: тогда повторные карты отсекает только БД.
func NewPaymentService(repo repository.PaymentRepository, accounts account.Service, redisClient *redis.Client, cfg Config) PaymentService {
	return &paymentService{
		repo:     repo,
		accounts: accounts,
		cards:    newCardGuard(redisClient, cfg.UsedCardTTL),
		tracer:   otel.Tracer("bank/payment-service"),
		cfg:      cfg,
	}
}

// CreatePayment выполняет сагу расчёта по карте.
func (s *paymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.CreatePayment")
	defer span.End()

	// 1. Проверка входа: без записи в БД и без вызова сервиса счетов
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	card, err := domain.ParseCardNumber(req.CardNumber)
	if err != nil {
		return nil, err
	}

	if s.cards.IsUsed(ctx, card) {
		return nil, domain.ErrCardAlreadyUsed
	}

	// 2. Резервируем строку платежа: здесь же срабатывает уникальность номера карты
	payment := domain.NewPayment(req.Amount, card)
	ctx = logger.WithPaymentID(ctx, payment.ID)
	log := logger.Ctx(ctx)
	span.SetAttributes(attribute.String("payment.id", payment.ID), attribute.Int64("payment.amount", payment.Amount))

	if err := s.repo.Create(ctx, payment); err != nil {
		if errors.Is(err, domain.ErrCardAlreadyUsed) {
			s.cards.MarkUsed(ctx, card)
			log.Info().Str("card", card.Masked()).Msg("Карта уже использована")
			return nil, err
		}

		log.Error().Err(err).Msg("Ошибка создания платежа")
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment insert failed")

		// Строка не записана: отвечаем свежим платежом в статусе failed
		payment.Status = domain.PaymentStatusFailed
		metrics.RecordPayment(string(payment.Status))
		return &CreatePaymentResult{Payment: payment, Outcome: domain.Internal}, nil
	}
	s.cards.MarkUsed(ctx, card)

	log.Info().
		Int64("amount", payment.Amount).
		Str("card", card.Masked()).
		Msg("Платёж создан, проводим")

	// Строка записана: сага доводится до конца даже если клиент отключился
	ctx = context.WithoutCancel(ctx)

	outcome, reason := s.settle(ctx, payment)

	span.SetAttributes(attribute.String("payment.status", string(payment.Status)))
	if outcome.Severity == domain.SeverityInternal {
		span.SetStatus(codes.Error, string(reason))
	}
	metrics.RecordPayment(string(payment.Status))

	log.Info().
		Str("status", string(payment.Status)).
		Str("reason", string(reason)).
		Msg("Платёж обработан")

	return &CreatePaymentResult{
		Payment:   payment,
		Persisted: true,
		Outcome:   outcome,
		Reason:    reason,
	}, nil
}

// settle проводит резерв, оптимистичное одобрение и списание.
// Каждый успешный резерв разрешается ровно одним вызовом: withdraw или release.
func (s *paymentService) settle(ctx context.Context, p *domain.Payment) (domain.Outcome, account.ErrorCode) {
	log := logger.Ctx(ctx)

	// 3. Резерв средств
	var hold account.Hold
	err := s.callAccount(ctx, account.OpPlaceHold, func(ctx context.Context) error {
		var err error
		hold, err = s.accounts.PlaceHold(ctx, p.CardNumber.AccountNumber(), p.Amount)
		return err
	})
	if err != nil {
		code := account.CodeOf(err)
		log.Warn().Err(err).Str("code", string(code)).Msg("Резерв не создан")
		return s.finish(ctx, p, domain.Classify(code), string(code)), code
	}

	// 4. Оптимистичное одобрение до списания: резерв уже гарантирует средства
	if err := p.TransitionTo(domain.PaymentStatusApproved); err != nil {
		s.releaseHold(ctx, hold)
		return s.finish(ctx, p, domain.Internal, reasonInternal), account.CodeUnknown
	}
	if err := s.repo.UpdateStatus(ctx, p, ""); err != nil {
		log.Error().Err(err).Msg("Ошибка сохранения статуса approved, снимаем резерв")
		s.releaseHold(ctx, hold)
		return s.finish(ctx, p, domain.Internal, reasonInternal), account.CodeUnknown
	}

	// 5. Списание
	err = s.callAccount(ctx, account.OpWithdrawFunds, func(ctx context.Context) error {
		return s.accounts.WithdrawFunds(ctx, hold)
	})
	if err != nil {
		code := account.CodeOf(err)
		log.Warn().Err(err).Str("code", string(code)).Msg("Списание не прошло, снимаем резерв")
		s.releaseHold(ctx, hold)
		return s.finish(ctx, p, domain.Classify(code), string(code)), code
	}

	return domain.Approved, ""
}

// finish переводит платёж в итоговый статус и сохраняет его.
// Если статус не удалось сохранить, итог считается внутренней ошибкой.
func (s *paymentService) finish(ctx context.Context, p *domain.Payment, outcome domain.Outcome, reason string) domain.Outcome {
	log := logger.Ctx(ctx)

	if err := p.TransitionTo(outcome.Status); err != nil {
		log.Error().Err(err).
			Str("from", string(p.Status)).
			Str("to", string(outcome.Status)).
			Msg("Недопустимый переход статуса платежа")
		return domain.Internal
	}

	if err := s.repo.UpdateStatus(ctx, p, reason); err != nil {
		// Строка останется в processing или approved до фонового восстановления
		log.Error().Err(err).
			Str("status", string(p.Status)).
			Msg("Ошибка сохранения итогового статуса платежа")
		return domain.Internal
	}

	return outcome
}

// releaseHold снимает резерв. Ошибка только логируется: итог платежа уже определён.
func (s *paymentService) releaseHold(ctx context.Context, hold account.Hold) {
	err := s.callAccount(ctx, account.OpReleaseHold, func(ctx context.Context) error {
		return s.accounts.ReleaseHold(ctx, hold)
	})
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("code", string(account.CodeOf(err))).
			Msg("Не удалось снять резерв, требуется ручная сверка")
	}
}

// callAccount оборачивает вызов сервиса счетов в span и метрику длительности.
func (s *paymentService) callAccount(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "account."+op)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	code := "ok"
	if err != nil {
		code = string(account.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
	}
	span.SetAttributes(attribute.String("account.code", code))
	metrics.RecordAccountCall(op, code, time.Since(start))

	return err
}

// GetPayment возвращает платёж по ID.
func (s *paymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.repo.GetByID(ctx, paymentID)
}

// RecoverStuckPayments помечает зависшие processing платежи как failed.
// Такие строки остаются после падения процесса посреди саги.
func (s *paymentService) RecoverStuckPayments(ctx context.Context) (int, error) {
	log := logger.Ctx(ctx)

	stuckPayments, err := s.repo.GetStuckProcessing(ctx, s.cfg.StuckAfter, s.cfg.RecoveryBatch)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения зависших платежей: %w", err)
	}

	recovered := 0
	for _, payment := range stuckPayments {
		if err := payment.TransitionTo(domain.PaymentStatusFailed); err != nil {
			log.Warn().Err(err).Str("payment_id", payment.ID).Msg("Не удалось пометить платёж как failed")
			continue
		}

		if err := s.repo.UpdateStatus(ctx, payment, reasonRecovery); err != nil {
			// ErrInvalidTransition: сага успела завершиться параллельно
			log.Warn().Err(err).Str("payment_id", payment.ID).Msg("Ошибка обновления зависшего платежа")
			continue
		}

		log.Info().
			Str("payment_id", payment.ID).
			Str("card", payment.CardNumber.Masked()).
			Msg("Зависший платёж помечен как failed")
		metrics.StuckPaymentsRecovered.Inc()
		recovered++
	}

	if recovered > 0 {
		log.Info().Int("count", recovered).Msg("Восстановлено зависших платежей")
	}

	return recovered, nil
}
