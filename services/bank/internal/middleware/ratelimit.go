package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"example.com/card-settlement/pkg/logger"
)

// fixedWindowScript увеличивает счётчик окна, на первом запросе ставит TTL
// и возвращает {счётчик, остаток окна в мс}.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

const rateKeyPrefix = "bank:rate:"

// RateLimitConfig: параметры лимита.
type RateLimitConfig struct {
	Redis  *redis.Client
	Limit  int           // по умолчанию 100
	Window time.Duration // по умолчанию минута
}

// RateLimitMiddleware ограничивает число запросов в окне.
// Считается по мерчанту, если запрос уже аутентифицирован, иначе по IP.
// При недоступном Redis запросы пропускаются.
type RateLimitMiddleware struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimitMiddleware создаёт middleware.
func NewRateLimitMiddleware(cfg RateLimitConfig) *RateLimitMiddleware {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Window < time.Millisecond {
		cfg.Window = time.Minute
	}
	return &RateLimitMiddleware{redis: cfg.Redis, limit: cfg.Limit, window: cfg.Window}
}

// windowState: состояние окна после учёта текущего запроса.
type windowState struct {
	count   int64
	resetIn time.Duration
}

func (m *RateLimitMiddleware) hit(ctx context.Context, key string) (windowState, error) {
	vals, err := fixedWindowScript.Run(ctx, m.redis, []string{key}, m.window.Milliseconds()).Int64Slice()
	if err != nil {
		return windowState{}, err
	}
	if len(vals) != 2 {
		return windowState{}, fmt.Errorf("rate limit: неожиданный ответ скрипта %v", vals)
	}

	resetIn := time.Duration(vals[1]) * time.Millisecond
	if resetIn <= 0 {
		// ключ без TTL: считаем, что окно только началось
		resetIn = m.window
	}
	return windowState{count: vals[0], resetIn: resetIn}, nil
}

func rateSubject(c *gin.Context) string {
	if merchantID := c.GetString(ContextMerchantID); merchantID != "" {
		return "merchant:" + merchantID
	}
	return c.ClientIP()
}

// Handle возвращает gin.HandlerFunc.
func (m *RateLimitMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := rateSubject(c)

		state, err := m.hit(c.Request.Context(), rateKeyPrefix+subject)
		if err != nil {
			log := logger.FromContext(c.Request.Context())
			log.Warn().Err(err).Msg("Rate limit не проверен, запрос пропущен")
			c.Next()
			return
		}

		remaining := int64(m.limit) - state.count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(m.limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(state.resetIn).Unix(), 10))

		if state.count <= int64(m.limit) {
			c.Next()
			return
		}

		retryAfter := int64((state.resetIn + time.Second - 1) / time.Second)
		log := logger.FromContext(c.Request.Context())
		log.Warn().
			Str("subject", subject).
			Int64("count", state.count).
			Int64("retry_after", retryAfter).
			Msg("Rate limit превышен")

		c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "rate_limit_exceeded",
			"message": fmt.Sprintf("Превышен лимит запросов. Повторите через %d с", retryAfter),
		})
	}
}
