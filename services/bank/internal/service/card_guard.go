package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/card-settlement/pkg/logger"
	"example.com/card-settlement/services/bank/internal/domain"
)

const (
	// usedCardKeyPrefix: префикс ключей использованных карт в Redis.
	usedCardKeyPrefix = "bank:card:used:"

	// defaultUsedCardTTL: время жизни отметки об использованной карте.
	defaultUsedCardTTL = 24 * time.Hour
)

// cardGuard: быстрый отказ для повторно использованных карт.
// Источник правды: уникальный индекс payments.card_number; Redis только
// избавляет от лишней попытки вставки. Ошибки Redis не блокируют платёж.
type cardGuard struct {
	redis *redis.Client
	ttl   time.Duration
}

func newCardGuard(client *redis.Client, ttl time.Duration) *cardGuard {
	if ttl <= 0 {
		ttl = defaultUsedCardTTL
	}
	return &cardGuard{redis: client, ttl: ttl}
}

// usedCardKey хранит хеш номера, а не сам номер карты.
func usedCardKey(card domain.CardNumber) string {
	sum := sha256.Sum256([]byte(card))
	return usedCardKeyPrefix + hex.EncodeToString(sum[:])
}

// IsUsed возвращает true, если карта точно уже использована.
func (g *cardGuard) IsUsed(ctx context.Context, card domain.CardNumber) bool {
	if g.redis == nil {
		return false
	}

	n, err := g.redis.Exists(ctx, usedCardKey(card)).Result()
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Ошибка Redis при проверке карты, продолжаем через БД")
		return false
	}
	return n > 0
}

// MarkUsed запоминает карту после успешной (или отклонённой по дубликату) вставки.
func (g *cardGuard) MarkUsed(ctx context.Context, card domain.CardNumber) {
	if g.redis == nil {
		return
	}

	if err := g.redis.Set(ctx, usedCardKey(card), "1", g.ttl).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Ошибка записи отметки карты в Redis")
	}
}
