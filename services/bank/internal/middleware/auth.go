package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"example.com/card-settlement/pkg/jwt"
	"example.com/card-settlement/pkg/logger"
)

// Ключи gin.Context после успешной аутентификации.
const (
	ContextMerchantID = "merchant_id"
	ContextTokenID    = "jti"
)

// TokenValidator проверяет токен мерчанта.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*jwt.Claims, error)
}

// AuthMiddleware пускает в API только мерчантов с действующим RS256 токеном.
// Подпись проверяется локально, отзыв по jti через TokenValidator.
type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token := ExtractBearerToken(c)
		if token == "" {
			unauthorized(c, "Требуется авторизация")
			return
		}

		claims, err := m.validator.Validate(ctx, token)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("Токен отклонён")

			if errors.Is(err, jwt.ErrTokenRevoked) {
				unauthorized(c, "Токен отозван")
				return
			}
			unauthorized(c, "Невалидный токен")
			return
		}

		c.Set(ContextMerchantID, claims.MerchantID)
		c.Set(ContextTokenID, claims.ID)
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="bank"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
}

// ExtractBearerToken возвращает токен из "Authorization: Bearer <token>".
// Схема сравнивается без учёта регистра.
func ExtractBearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
