package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentsTotal: итоговые статусы платежей.
	// PromQL: sum by (status) (rate(payments_total[5m]))
	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Количество платежей по итоговому статусу",
		},
		[]string{"status"},
	)

	// RefundsTotal: результаты запросов на возврат (accepted, excessive, not_found, error).
	RefundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_total",
			Help: "Количество запросов на возврат по результату",
		},
		[]string{"result"},
	)

	// AccountCallDuration: latency вызовов Account Service по операции и коду ответа.
	AccountCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "account_call_duration_seconds",
			Help:    "Время вызова сервиса счетов в секундах",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation", "code"},
	)

	// StuckPaymentsRecovered: платежи, помеченные failed фоновым восстановлением.
	StuckPaymentsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stuck_payments_recovered_total",
			Help: "Количество зависших платежей, переведённых в failed",
		},
	)
)

// RecordPayment фиксирует итоговый статус платежа.
func RecordPayment(status string) {
	PaymentsTotal.WithLabelValues(status).Inc()
}

// RecordRefund фиксирует результат запроса на возврат.
func RecordRefund(result string) {
	RefundsTotal.WithLabelValues(result).Inc()
}

// RecordAccountCall фиксирует длительность вызова сервиса счетов.
// code: "ok" или код ошибки сервиса счетов.
func RecordAccountCall(operation, code string, duration time.Duration) {
	AccountCallDuration.WithLabelValues(operation, code).Observe(duration.Seconds())
}

var (
	// OutboxPublished: события, подтверждённые Kafka.
	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Количество событий outbox, опубликованных в Kafka",
		},
		[]string{"topic"},
	)

	// OutboxFailures: неудачные отправки: retry (отложено) или dead (исчерпаны попытки).
	OutboxFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_failures_total",
			Help: "Количество неудачных отправок событий outbox",
		},
		[]string{"topic", "outcome"},
	)
)

// DependencyUp: результат последней проверки зависимости из /readyz: 1 доступна, 0 нет.
var DependencyUp = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "dependency_up",
		Help: "Доступность зависимости по последней проверке готовности",
	},
	[]string{"dependency"},
)

// BreakerState: состояние circuit breaker: 0 closed, 1 half-open, 2 open.
var BreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Состояние circuit breaker: 0 closed, 1 half-open, 2 open",
	},
	[]string{"name"},
)
