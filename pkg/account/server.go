package account

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/card-settlement/pkg/logger"
)

// Handler: HTTP фронт для реализации Service.
// Используется симулятором сервиса счетов (services/accounts): оборачивает
// DummyService в тот же протокол, который ожидает HTTPClient.
type Handler struct {
	svc Service
}

// NewHandler создаёт HTTP handler сервиса счетов.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes регистрирует маршруты сервиса счетов.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/holds", h.PlaceHold)
	r.POST("/holds/:id/release", h.ReleaseHold)
	r.POST("/holds/:id/withdraw", h.WithdrawFunds)
}

// PlaceHold обрабатывает POST /holds.
func (h *Handler) PlaceHold(c *gin.Context) {
	var req struct {
		AccountNumber string `json:"account_number" binding:"required"`
		Amount        *int64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: string(CodeInvalidAmount)})
		return
	}

	hold, err := h.svc.PlaceHold(c.Request.Context(), req.AccountNumber, *req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}

	logger.Ctx(c.Request.Context()).Debug().
		Str("account_number", req.AccountNumber).
		Int64("amount", *req.Amount).
		Msg("Резерв создан")

	c.JSON(http.StatusCreated, placeHoldResponse{HoldID: hold.id})
}

// ReleaseHold обрабатывает POST /holds/:id/release.
func (h *Handler) ReleaseHold(c *gin.Context) {
	if err := h.svc.ReleaseHold(c.Request.Context(), Hold{id: c.Param("id")}); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// WithdrawFunds обрабатывает POST /holds/:id/withdraw.
func (h *Handler) WithdrawFunds(c *gin.Context) {
	if err := h.svc.WithdrawFunds(c.Request.Context(), Hold{id: c.Param("id")}); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// writeError переводит ошибку сервиса счетов в HTTP ответ.
func (h *Handler) writeError(c *gin.Context, err error) {
	if errors.Is(err, ErrHoldNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "hold_not_found"})
		return
	}

	code := CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case CodeInvalidAccountNumber:
		status = http.StatusForbidden
	case CodeInvalidAmount:
		status = http.StatusBadRequest
	case CodeInsufficientFunds:
		status = http.StatusPaymentRequired
	case CodeServiceUnavailable:
		status = http.StatusServiceUnavailable
	}

	if status >= 500 {
		logger.Ctx(c.Request.Context()).Error().Err(err).Msg("Ошибка сервиса счетов")
	}

	c.JSON(status, errorResponse{Error: string(code)})
}
