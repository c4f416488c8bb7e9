package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/card-settlement/pkg/config"
)

// ConnectRedis создаёт клиент с короткими таймаутами: Redis в сервисе расчётов
// необязателен, и медленный Redis не должен задерживать платёж.
func ConnectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  time.Second,
		ReadTimeout:  300 * time.Millisecond,
		WriteTimeout: 300 * time.Millisecond,
		MaxRetries:   1,
	})
}

// PingRedis проверяет Redis при старте. Решение падать или нет за вызывающим.
func PingRedis(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s недоступен: %w", rdb.Options().Addr, err)
	}
	return nil
}
