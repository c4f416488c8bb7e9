// Package account описывает контракт внешнего сервиса счетов (Account Service).
//
// Сервис расчётов работает со счётом покупателя в три шага:
//   - PlaceHold: резервирует сумму на счёте, возвращает непрозрачный Hold
//   - WithdrawFunds: списывает зарезервированную сумму
//   - ReleaseHold: снимает резерв без списания
//
// Каждый Hold разрешается ровно один раз (withdraw или release).
// Реализации: DummyService (in-process двойник с "магическими" значениями)
// и HTTPClient (удалённый сервис за circuit breaker).
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrorCode: код отказа сервиса счетов.
type ErrorCode string

const (
	CodeInvalidAccountNumber ErrorCode = "invalid_account_number"
	CodeInvalidAmount        ErrorCode = "invalid_amount"
	CodeInsufficientFunds    ErrorCode = "insufficient_funds"
	CodeServiceUnavailable   ErrorCode = "service_unavailable"
	CodeUnknown              ErrorCode = "unknown"
)

// ErrHoldNotFound: резерв не существует или уже разрешён.
var ErrHoldNotFound = errors.New("резерв не найден или уже разрешён")

// ParseCode приводит строку из ответа сервиса к ErrorCode.
// Незнакомые значения становятся CodeUnknown.
func ParseCode(s string) ErrorCode {
	switch code := ErrorCode(s); code {
	case CodeInvalidAccountNumber, CodeInvalidAmount, CodeInsufficientFunds, CodeServiceUnavailable:
		return code
	default:
		return CodeUnknown
	}
}

// Error: ошибка сервиса счетов с кодом отказа.
type Error struct {
	Code ErrorCode
	Op   string // place_hold / withdraw_funds / release_hold
	Err  error  // Исходная ошибка транспорта (если есть)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("account %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("account %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf извлекает код отказа из ошибки.
// Ошибки не из этого пакета считаются CodeUnknown.
func CodeOf(err error) ErrorCode {
	var accErr *Error
	if errors.As(err, &accErr) {
		return accErr.Code
	}
	return CodeUnknown
}

// Hold: непрозрачный дескриптор резерва. Сравним через ==.
// Идентификатор не раскрывается за пределами пакета.
type Hold struct {
	id string
}

// NewHold создаёт Hold со свежим идентификатором.
// Нужен реализациям Service вне пакета (тестовым двойникам).
func NewHold() Hold {
	return Hold{id: uuid.NewString()}
}

// IsZero возвращает true для пустого Hold.
func (h Hold) IsZero() bool {
	return h.id == ""
}

// Service: операции сервиса счетов.
type Service interface {
	// PlaceHold резервирует amount на счёте accountNumber.
	PlaceHold(ctx context.Context, accountNumber string, amount int64) (Hold, error)

	// ReleaseHold снимает резерв без списания.
	ReleaseHold(ctx context.Context, hold Hold) error

	// WithdrawFunds списывает зарезервированную сумму.
	WithdrawFunds(ctx context.Context, hold Hold) error
}

// Операции для логов и метрик.
const (
	OpPlaceHold     = "place_hold"
	OpReleaseHold   = "release_hold"
	OpWithdrawFunds = "withdraw_funds"
)
