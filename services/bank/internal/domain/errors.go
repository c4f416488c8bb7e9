// Package domain содержит бизнес-сущности сервиса расчётов.
package domain

import "errors"

// Ошибки валидации запроса (до записи в хранилище и вызова сервиса счетов).
var (
	// ErrZeroAmount: нулевая сумма платежа.
	ErrZeroAmount = errors.New("сумма платежа равна нулю")

	// ErrNegativeAmount: отрицательная сумма платежа.
	ErrNegativeAmount = errors.New("сумма платежа отрицательна")

	// ErrInvalidCardNumber: номер карты не из 15 цифр.
	ErrInvalidCardNumber = errors.New("номер карты должен состоять ровно из 15 цифр")

	// ErrInvalidRefundAmount: сумма возврата не положительна.
	ErrInvalidRefundAmount = errors.New("сумма возврата должна быть больше нуля")
)

// Конфликты, обнаруженные ограничениями хранилища.
var (
	// ErrCardAlreadyUsed: номер карты уже использован другим платежом.
	ErrCardAlreadyUsed = errors.New("card_number already used")

	// ErrExcessiveRefund: сумма возвратов превысила бы сумму платежа.
	ErrExcessiveRefund = errors.New("excessive refund amount requested")
)

// Ошибки поиска и состояния.
var (
	// ErrPaymentNotFound: платёж не найден.
	ErrPaymentNotFound = errors.New("платёж не найден")

	// ErrPaymentNotApproved: возврат возможен только для approved платежа.
	ErrPaymentNotApproved = errors.New("платёж не в статусе approved")

	// ErrRefundNotFound: возврат не найден.
	ErrRefundNotFound = errors.New("возврат не найден")

	// ErrInvalidTransition: недопустимый переход состояния.
	ErrInvalidTransition = errors.New("недопустимый переход состояния платежа")
)
