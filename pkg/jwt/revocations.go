package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ключи Redis.
const (
	revokedTokenKey      = "jwt:revoked:"     // + jti
	merchantNotBeforeKey = "jwt:invalidated:" // + merchant_id, unix время отсечки
)

// Revocations хранит отзывы в Redis: по одному токену (jti) и по мерчанту целиком
// (все токены, выпущенные раньше отсечки).
type Revocations struct {
	redis *redis.Client
}

func NewRevocations(client *redis.Client) *Revocations {
	return &Revocations{redis: client}
}

// RevokeToken отзывает токен до истечения его срока. Истёкший токен не записывается.
func (r *Revocations) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.redis.Set(ctx, revokedTokenKey+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("ошибка отзыва токена %s: %w", jti, err)
	}
	return nil
}

// InvalidateMerchant отзывает все токены мерчанта, выпущенные до этого момента.
// maxTokenTTL: наибольший срок жизни токена: после него отсечка не нужна.
func (r *Revocations) InvalidateMerchant(ctx context.Context, merchantID string, maxTokenTTL time.Duration) error {
	cutoff := time.Now().Unix()
	if err := r.redis.Set(ctx, merchantNotBeforeKey+merchantID, cutoff, maxTokenTTL).Err(); err != nil {
		return fmt.Errorf("ошибка отзыва токенов мерчанта %s: %w", merchantID, err)
	}
	return nil
}

// IsRevoked проверяет оба вида отзыва за один round trip.
func (r *Revocations) IsRevoked(ctx context.Context, claims *Claims) (bool, error) {
	var (
		tokenCmd  *redis.IntCmd
		cutoffCmd *redis.StringCmd
	)
	_, err := r.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		if claims.ID != "" {
			tokenCmd = pipe.Exists(ctx, revokedTokenKey+claims.ID)
		}
		cutoffCmd = pipe.Get(ctx, merchantNotBeforeKey+claims.MerchantID)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("ошибка проверки отзыва: %w", err)
	}

	if tokenCmd != nil && tokenCmd.Val() > 0 {
		return true, nil
	}

	raw, err := cutoffCmd.Result()
	if errors.Is(err, redis.Nil) || claims.IssuedAt == nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка проверки отзыва мерчанта: %w", err)
	}

	cutoff, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("некорректная отсечка мерчанта %q: %w", raw, err)
	}
	return claims.IssuedAt.Unix() < cutoff, nil
}
