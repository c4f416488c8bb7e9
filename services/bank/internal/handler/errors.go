package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/card-settlement/pkg/logger"
	"example.com/card-settlement/services/bank/internal/domain"
)

// ErrorResponse: стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorMapping: HTTP статус и код ошибки для доменной ошибки.
type errorMapping struct {
	status  int
	code    string
	message string
}

// domainErrors: единая таблица соответствия доменных ошибок и HTTP ответов.
var domainErrors = []struct {
	err     error
	mapping errorMapping
}{
	{domain.ErrNegativeAmount, errorMapping{http.StatusBadRequest, "invalid_amount", "Сумма платежа должна быть положительной"}},
	{domain.ErrInvalidCardNumber, errorMapping{http.StatusUnprocessableEntity, "invalid_card_number", "Номер карты должен состоять из 15 цифр"}},
	{domain.ErrCardAlreadyUsed, errorMapping{http.StatusUnprocessableEntity, "card_already_used", "Карта уже использована"}},
	{domain.ErrInvalidRefundAmount, errorMapping{http.StatusBadRequest, "invalid_amount", "Сумма возврата должна быть положительной"}},
	{domain.ErrExcessiveRefund, errorMapping{http.StatusUnprocessableEntity, "excessive_refund", "Сумма возвратов превышает сумму платежа"}},
	{domain.ErrPaymentNotFound, errorMapping{http.StatusNotFound, "payment_not_found", "Платёж не найден"}},
	{domain.ErrPaymentNotApproved, errorMapping{http.StatusNotFound, "payment_not_found", "Платёж не найден или не одобрен"}},
	{domain.ErrRefundNotFound, errorMapping{http.StatusNotFound, "refund_not_found", "Возврат не найден"}},
}

// HandleError преобразует доменную ошибку в HTTP ответ.
// Неизвестные ошибки отдаются как 500 без деталей.
func HandleError(c *gin.Context, err error, method string) {
	log := logger.FromContext(c.Request.Context())

	if err == nil {
		log.Error().Str("method", method).Msg("HandleError вызван с nil ошибкой")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			log.Debug().Err(err).Str("method", method).Msg("Запрос отклонён")
			c.JSON(de.mapping.status, ErrorResponse{
				Error:   de.mapping.code,
				Message: de.mapping.message,
			})
			return
		}
	}

	log.Error().Err(err).Str("method", method).Msg("Внутренняя ошибка")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Внутренняя ошибка сервера",
	})
}

// outcomeStatus возвращает HTTP статус для итога саги.
func outcomeStatus(outcome domain.Outcome) int {
	switch outcome.Severity {
	case domain.SeverityNone:
		return http.StatusCreated
	case domain.SeverityForbidden:
		return http.StatusForbidden
	case domain.SeverityBadRequest:
		return http.StatusBadRequest
	case domain.SeverityPaymentRequired:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// outcomeMessage: текст ответа для неуспешного итога саги.
func outcomeMessage(outcome domain.Outcome) string {
	switch outcome.Severity {
	case domain.SeverityForbidden:
		return "Счёт карты не найден"
	case domain.SeverityBadRequest:
		return "Банк отклонил сумму платежа"
	case domain.SeverityPaymentRequired:
		return "Недостаточно средств"
	default:
		return "Платёж не проведён из-за внутренней ошибки"
	}
}
