package service

import (
	"context"
	"time"

	"example.com/card-settlement/pkg/logger"
)

// RecoveryWorker периодически завершает зависшие processing платежи.
type RecoveryWorker struct {
	svc      PaymentService
	interval time.Duration
}

// NewRecoveryWorker создаёт worker восстановления.
func NewRecoveryWorker(svc PaymentService, interval time.Duration) *RecoveryWorker {
	return &RecoveryWorker{svc: svc, interval: interval}
}

// Run блокирует выполнение до отмены контекста.
func (w *RecoveryWorker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().Dur("interval", w.interval).Msg("Запуск восстановления зависших платежей")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Остановка восстановления зависших платежей")
			return
		case <-ticker.C:
			if _, err := w.svc.RecoverStuckPayments(ctx); err != nil {
				log.Error().Err(err).Msg("Ошибка восстановления зависших платежей")
			}
		}
	}
}
