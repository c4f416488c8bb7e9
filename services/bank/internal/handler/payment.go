// Package handler содержит HTTP обработчики REST API сервиса расчётов.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/card-settlement/pkg/logger"
	"example.com/card-settlement/services/bank/internal/domain"
	"example.com/card-settlement/services/bank/internal/service"
)

// PaymentHandler: обработчик платежей.
type PaymentHandler struct {
	payments service.PaymentService
}

// NewPaymentHandler создаёт новый обработчик платежей.
func NewPaymentHandler(payments service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreatePaymentRequest: тело запроса на платёж.
type CreatePaymentRequest struct {
	Payment struct {
		Amount     *int64 `json:"amount" binding:"required"`
		CardNumber string `json:"card_number"`
	} `json:"payment" binding:"required"`
}

// PaymentResponse: представление платежа в API.
type PaymentResponse struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	CardNumber string `json:"card_number"`
	Status     string `json:"status"`
}

// PaymentEnvelope: ответ с платежом. Error и Message заполнены для отклонённых платежей.
type PaymentEnvelope struct {
	Data    PaymentResponse `json:"data"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:         p.ID,
		Amount:     p.Amount,
		CardNumber: p.CardNumber.String(),
		Status:     string(p.Status),
	}
}

// CreatePayment проводит платёж по карте.
// POST /api/v1/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug().Err(err).Msg("Невалидный запрос на платёж")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Невалидные данные запроса",
		})
		return
	}

	result, err := h.payments.CreatePayment(ctx, service.CreatePaymentRequest{
		Amount:     *req.Payment.Amount,
		CardNumber: req.Payment.CardNumber,
	})
	if err != nil {
		// Нулевая сумма: отказ без тела
		if errors.Is(err, domain.ErrZeroAmount) {
			c.Status(http.StatusNoContent)
			return
		}
		HandleError(c, err, "CreatePayment")
		return
	}

	envelope := PaymentEnvelope{Data: toPaymentResponse(result.Payment)}
	if result.Outcome.Severity != domain.SeverityNone {
		envelope.Error = string(result.Outcome.Severity)
		envelope.Message = outcomeMessage(result.Outcome)
	}

	c.JSON(outcomeStatus(result.Outcome), envelope)
}

// GetPayment возвращает платёж по ID.
// GET /api/v1/payments/:payment_id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.payments.GetPayment(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		HandleError(c, err, "GetPayment")
		return
	}

	c.JSON(http.StatusOK, PaymentEnvelope{Data: toPaymentResponse(payment)})
}
