// Package db открывает соединения с MySQL и Redis для сервиса расчётов.
package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"example.com/card-settlement/pkg/config"
	"example.com/card-settlement/pkg/logger"
)

// Параметры ожидания MySQL при старте: в docker-compose база поднимается дольше сервиса.
const (
	pingAttempts = 5
	pingTimeout  = 3 * time.Second
	pingDelay    = 2 * time.Second
)

// slowQueryThreshold: запросы дольше этого порога пишутся в лог уровнем warn.
const slowQueryThreshold = 200 * time.Millisecond

// gormWriter направляет сообщения GORM в zerolog.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	logger.Warn().Str("component", "gorm").Msgf(format, args...)
}

// newGormLogger возвращает логгер GORM. В debug пишутся все запросы,
// иначе только медленные и ошибки. ErrRecordNotFound не считается ошибкой:
// ненайденный платёж это обычный ответ API.
func newGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// ConnectMySQL открывает пул соединений и ждёт, пока MySQL ответит на ping.
func ConnectMySQL(ctx context.Context, cfg config.MySQLConfig, debug bool) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: newGormLogger(debug),
		// 1062 приходит как gorm.ErrDuplicatedKey: на этом держится запрет повторного использования карты
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := waitForMySQL(ctx, db, pingAttempts, pingDelay); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// waitForMySQL повторяет ping до attempts раз с паузой delay.
func waitForMySQL(ctx context.Context, db *gorm.DB, attempts int, delay time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("ошибка получения sql.DB: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = sqlDB.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			return nil
		}

		logger.Warn().Err(lastErr).Int("attempt", attempt).Msg("MySQL не отвечает")
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("ожидание MySQL прервано: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("ошибка ping MySQL после %d попыток: %w", attempts, lastErr)
}

// Migrate приводит схему к моделям. Таблица payments идёт раньше refunds.
func Migrate(ctx context.Context, db *gorm.DB, models ...interface{}) error {
	if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("ошибка миграции схемы: %w", err)
	}
	return nil
}
