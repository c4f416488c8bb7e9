// Bank Service: сервис расчётов по картам.
// Проводит платёж через резерв и списание в сервисе счетов, ведёт возвраты.
// Итоговые статусы и возвраты пишутся в outbox и публикуются в Kafka.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"example.com/card-settlement/pkg/account"
	"example.com/card-settlement/pkg/config"
	dbpkg "example.com/card-settlement/pkg/db"
	"example.com/card-settlement/pkg/healthcheck"
	"example.com/card-settlement/pkg/jwt"
	"example.com/card-settlement/pkg/kafka"
	"example.com/card-settlement/pkg/logger"
	"example.com/card-settlement/pkg/metrics"
	"example.com/card-settlement/pkg/outbox"
	"example.com/card-settlement/pkg/tracing"
	"example.com/card-settlement/services/bank/internal/handler"
	"example.com/card-settlement/services/bank/internal/middleware"
	"example.com/card-settlement/services/bank/internal/repository"
	"example.com/card-settlement/services/bank/internal/service"
)

const serviceName = "bank-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:   cfg.App.LogLevel,
		Pretty:  cfg.App.LogPretty,
		Service: serviceName,
	})
	log := logger.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info().
		Str("env", cfg.App.Env).
		Str("addr", cfg.HTTP.Addr()).
		Str("account_mode", cfg.AccountService.Mode).
		Msg("Запуск Bank Service")

	// === Observability: Tracing ===

	tracer, err := tracing.Setup(ctx, tracing.Config{
		ServiceName: serviceName,
		Version:     cfg.App.Version,
		Environment: cfg.App.Env,
		Endpoint:    cfg.Jaeger.OTLPEndpoint(),
		SampleRatio: cfg.Jaeger.SampleRatio,
		Enabled:     cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Подключение к зависимостям ===

	db, err := dbpkg.ConnectMySQL(ctx, cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	if cfg.MySQL.AutoMigrate {
		migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := dbpkg.Migrate(migrateCtx, db, repository.Models()...); err != nil {
			migrateCancel()
			log.Fatal().Err(err).Msg("Ошибка миграции схемы")
		}
		migrateCancel()
	}

	// Redis необязателен: быстрый отказ по картам и rate limit работают в режиме fail-open
	rdb := dbpkg.ConnectRedis(cfg.Redis)
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Redis")
		}
	}()
	if err := dbpkg.PingRedis(ctx, rdb); err != nil {
		log.Warn().Err(err).Msg("Redis недоступен, продолжаем без него")
	} else {
		log.Info().Msg("Подключение к Redis установлено")
	}

	readiness := healthcheck.NewChecker(3*time.Second,
		healthcheck.MySQL(db),
		healthcheck.Redis(rdb),
	)

	// === Observability: Metrics ===

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(
			cfg.Metrics.Addr(),
			serviceName,
			metrics.WithReadinessCheck(readiness.Ready),
		)
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === Сервис счетов ===

	accounts, err := newAccountService(cfg.AccountService)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания клиента сервиса счетов")
	}

	// === Инициализация бизнес-логики ===

	paymentRepo := repository.NewPaymentRepository(db)
	refundRepo := repository.NewRefundRepository(db)

	paymentService := service.NewPaymentService(paymentRepo, accounts, rdb, service.Config{
		StuckAfter:    cfg.Recovery.StuckAfter,
		RecoveryBatch: cfg.Recovery.BatchSize,
	})
	refundService := service.NewRefundService(refundRepo)

	var workersWg sync.WaitGroup

	if cfg.Recovery.Enabled {
		recoveryWorker := service.NewRecoveryWorker(paymentService, cfg.Recovery.Interval)
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			recoveryWorker.Run(ctx)
		}()
	}

	// === Kafka: публикация событий через outbox ===

	var kafkaPublisher *kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaCfg := kafka.Config{Brokers: cfg.Kafka.Brokers}
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Инициализация Kafka")

		topicsCtx, topicsCancel := context.WithTimeout(ctx, 15*time.Second)
		if err := kafka.EnsureTopics(topicsCtx, kafkaCfg, kafka.DefaultTopics()...); err != nil {
			log.Warn().Err(err).Msg("Не удалось создать топики (возможно Kafka недоступна)")
		}
		topicsCancel()

		kafkaPublisher, err = kafka.NewPublisher(kafkaCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Publisher")
		}

		relay := outbox.NewRelay(outbox.NewStore(db), kafkaPublisher, outbox.RelayConfig{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			MaxAttempts:  cfg.Outbox.MaxAttempts,
			BaseBackoff:  cfg.Outbox.BaseBackoff,
			MaxBackoff:   cfg.Outbox.MaxBackoff,
			Retention:    cfg.Outbox.Retention,
		})
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Outbox Relay")
				}
			}()
			relay.Run(ctx)
		}()
	} else {
		log.Warn().Msg("Kafka не настроена, события остаются в outbox")
	}

	// === HTTP API ===

	routerCfg := handler.RouterConfig{
		Payments:       paymentService,
		Refunds:        refundService,
		ReadinessCheck: readiness.Ready,
		Debug:          cfg.IsDevelopment(),
	}

	if cfg.Auth.Enabled {
		publicKey, err := jwt.LoadPublicKey(cfg.Auth.PublicKeyPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка загрузки публичного ключа JWT")
		}
		validator := jwt.NewValidator(publicKey,
			jwt.WithIssuer(cfg.Auth.Issuer),
			jwt.WithLeeway(cfg.Auth.Leeway),
			jwt.WithRevocations(jwt.NewRevocations(rdb)),
		)
		routerCfg.AuthMW = middleware.NewAuthMiddleware(validator)
	}

	if cfg.RateLimit.Enabled {
		routerCfg.RateLimitMW = middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			Redis:  rdb,
			Limit:  cfg.RateLimit.RequestsLimit,
			Window: cfg.RateLimit.Window,
		})
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      handler.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr()).Msg("HTTP сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	// === Graceful Shutdown ===

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Сначала HTTP: запущенные саги доходят до итогового статуса
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки HTTP сервера")
	}

	cancel()
	workersWg.Wait()

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Kafka Publisher")
		}
	}

	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
		metricsWg.Wait()
	}

	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки Tracing")
	}

	log.Info().Msg("Bank Service остановлен")
}

// newAccountService выбирает реализацию сервиса счетов по режиму из конфигурации.
func newAccountService(cfg config.AccountServiceConfig) (account.Service, error) {
	switch cfg.Mode {
	case config.AccountModeDummy:
		logger.Warn().Msg("Сервис счетов в режиме dummy: деньги не двигаются")
		return account.NewDummyService(), nil
	case config.AccountModeHTTP:
		client, err := account.NewHTTPClient(cfg.BaseURL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("неизвестный режим сервиса счетов: %q", cfg.Mode)
	}
}
