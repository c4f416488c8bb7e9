// Package circuitbreaker отсекает вызовы к недоступному сервису счетов,
// пока тот не восстановится: запрос отклоняется сразу, а не по таймауту.
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"example.com/card-settlement/pkg/logger"
	"example.com/card-settlement/pkg/metrics"
)

// ErrOpen: breaker не пропустил вызов.
var ErrOpen = errors.New("сервис временно недоступен (circuit breaker open)")

// Settings: пороги breaker.
type Settings struct {
	// HalfOpenProbes: сколько пробных вызовов пропускается после Timeout.
	HalfOpenProbes uint32
	// Window: период обнуления счётчиков в состоянии closed.
	Window time.Duration
	// Timeout: сколько breaker остаётся открытым.
	Timeout time.Duration
	// Срабатывание: не меньше MinRequests вызовов в окне и доля сбоев >= FailureRatio.
	MinRequests  uint32
	FailureRatio float64
	// IsFailure отделяет отказ транспорта от бизнес-ответа. nil: сбой любая ошибка.
	IsFailure func(err error) bool
}

// DefaultSettings возвращает пороги по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		HalfOpenProbes: 1,
		Window:         time.Minute,
		Timeout:        30 * time.Second,
		MinRequests:    5,
		FailureRatio:   0.5,
	}
}

// Breaker защищает вызовы одного внешнего сервиса.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

// New создаёт Breaker. Состояние публикуется в метрике circuit_breaker_state.
func New(name string, s Settings) *Breaker {
	isFailure := s.IsFailure
	if isFailure == nil {
		isFailure = func(err error) bool { return err != nil }
	}

	metrics.BreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.HalfOpenProbes,
		Interval:    s.Window,
		Timeout:     s.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= s.MinRequests &&
				float64(c.TotalFailures) >= s.FailureRatio*float64(c.Requests)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isFailure(err)
		},
		OnStateChange: onStateChange,
	})

	return &Breaker{cb: cb}
}

func onStateChange(name string, from, to gobreaker.State) {
	metrics.BreakerState.WithLabelValues(name).Set(float64(to))

	event := logger.Info()
	if to == gobreaker.StateOpen {
		event = logger.Warn()
	}
	event.
		Str("breaker", name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("Circuit breaker сменил состояние")
}

// Execute вызывает fn, если breaker пропускает вызов.
// Ошибка fn возвращается как есть, в том числе бизнес-отказ, который сбоем не считается.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) Name() string { return b.cb.Name() }
