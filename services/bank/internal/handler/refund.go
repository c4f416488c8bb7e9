package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/card-settlement/pkg/logger"
	"example.com/card-settlement/services/bank/internal/domain"
	"example.com/card-settlement/services/bank/internal/service"
)

// RefundHandler: обработчик возвратов.
type RefundHandler struct {
	refunds service.RefundService
}

// NewRefundHandler создаёт новый обработчик возвратов.
func NewRefundHandler(refunds service.RefundService) *RefundHandler {
	return &RefundHandler{refunds: refunds}
}

// CreateRefundRequest: тело запроса на возврат.
type CreateRefundRequest struct {
	Refund struct {
		Amount *int64 `json:"amount" binding:"required"`
	} `json:"refund" binding:"required"`
}

// RefundResponse: представление возврата в API.
type RefundResponse struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	PaymentID string `json:"payment_id"`
}

// RefundEnvelope: ответ с возвратом.
type RefundEnvelope struct {
	Data RefundResponse `json:"data"`
}

func toRefundResponse(r *domain.Refund) RefundResponse {
	return RefundResponse{
		ID:        r.ID,
		Amount:    r.Amount,
		PaymentID: r.PaymentID,
	}
}

// CreateRefund создаёт возврат по платежу.
// POST /api/v1/payments/:payment_id/refunds
func (h *RefundHandler) CreateRefund(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	var req CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug().Err(err).Msg("Невалидный запрос на возврат")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Невалидные данные запроса",
		})
		return
	}

	refund, err := h.refunds.RequestRefund(ctx, c.Param("payment_id"), *req.Refund.Amount)
	if err != nil {
		HandleError(c, err, "CreateRefund")
		return
	}

	c.JSON(http.StatusCreated, RefundEnvelope{Data: toRefundResponse(refund)})
}

// GetRefund возвращает возврат платежа.
// GET /api/v1/payments/:payment_id/refunds/:refund_id
func (h *RefundHandler) GetRefund(c *gin.Context) {
	refund, err := h.refunds.GetRefund(c.Request.Context(), c.Param("payment_id"), c.Param("refund_id"))
	if err != nil {
		HandleError(c, err, "GetRefund")
		return
	}

	c.JSON(http.StatusOK, RefundEnvelope{Data: toRefundResponse(refund)})
}
