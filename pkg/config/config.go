// Package config загружает конфигурацию сервисов из переменных окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config: полная конфигурация процесса.
type Config struct {
	App            AppConfig
	HTTP           HTTPConfig
	MySQL          MySQLConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	Auth           AuthConfig
	RateLimit      RateLimitConfig
	Jaeger         JaegerConfig
	Metrics        MetricsConfig
	AccountService AccountServiceConfig
	Recovery       RecoveryConfig
	Outbox         OutboxConfig
}

// AppConfig: общие настройки приложения.
type AppConfig struct {
	Name      string `env:"APP_NAME" envDefault:"card-settlement"`
	Version   string `env:"APP_VERSION" envDefault:"dev"`
	Env       string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// HTTPConfig: настройки HTTP сервера.
type HTTPConfig struct {
	Host         string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port         int           `env:"HTTP_PORT" envDefault:"4000"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

// Addr возвращает адрес HTTP сервера.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MySQLConfig: настройки подключения к MySQL.
type MySQLConfig struct {
	Host            string        `env:"MYSQL_HOST" envDefault:"localhost"`
	Port            int           `env:"MYSQL_PORT" envDefault:"3306"`
	User            string        `env:"MYSQL_USER" envDefault:"root"`
	Password        string        `env:"MYSQL_PASSWORD" envDefault:"root"`
	Database        string        `env:"MYSQL_DATABASE" envDefault:"bank"`
	MaxOpenConns    int           `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MYSQL_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"MYSQL_CONN_MAX_LIFETIME" envDefault:"5m"`
	AutoMigrate     bool          `env:"MYSQL_AUTO_MIGRATE" envDefault:"true"`
}

// DSN возвращает строку подключения к MySQL.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig: настройки подключения к Redis.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Addr возвращает адрес Redis сервера.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig: настройки Kafka. Пустой список брокеров отключает публикацию событий.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
}

// AuthConfig: проверка JWT мерчантов (RS256, только публичный ключ).
type AuthConfig struct {
	Enabled       bool          `env:"AUTH_ENABLED" envDefault:"false"`
	PublicKeyPath string        `env:"JWT_PUBLIC_KEY_PATH"`
	Issuer        string        `env:"JWT_ISSUER" envDefault:"card-settlement"`
	Leeway        time.Duration `env:"JWT_LEEWAY" envDefault:"30s"`
}

// RateLimitConfig: ограничение частоты запросов к API.
type RateLimitConfig struct {
	Enabled       bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RequestsLimit int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	Window        time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// JaegerConfig: настройки трассировки.
type JaegerConfig struct {
	Enabled  bool   `env:"JAEGER_ENABLED" envDefault:"true"`
	Host     string `env:"JAEGER_HOST" envDefault:"localhost"`
	OTLPPort int    `env:"JAEGER_OTLP_PORT" envDefault:"4317"`
	// SampleRatio: доля новых трасс, которые записываются. Входящий traceparent решает сам.
	SampleRatio float64 `env:"JAEGER_SAMPLE_RATIO" envDefault:"1"`
}

// OTLPEndpoint возвращает OTLP gRPC endpoint.
func (c JaegerConfig) OTLPEndpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.OTLPPort)
}

// MetricsConfig: настройки Prometheus.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	Port    int  `env:"METRICS_PORT" envDefault:"9090"`
}

// Addr возвращает адрес сервера /metrics.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Режимы клиента Account Service.
const (
	AccountModeDummy = "dummy" // in-process двойник с "магическими" значениями
	AccountModeHTTP  = "http"  // удалённый сервис счетов
)

// AccountServiceConfig: настройки клиента сервиса счетов.
type AccountServiceConfig struct {
	Mode    string        `env:"ACCOUNT_SERVICE_MODE" envDefault:"dummy"`
	BaseURL string        `env:"ACCOUNT_SERVICE_URL" envDefault:"http://localhost:4100"`
	Timeout time.Duration `env:"ACCOUNT_SERVICE_TIMEOUT" envDefault:"5s"`

	// ListenPort: порт симулятора сервиса счетов (services/accounts).
	ListenPort int `env:"ACCOUNT_SERVICE_PORT" envDefault:"4100"`
}

// RecoveryConfig: фоновая пометка зависших платежей в processing.
type RecoveryConfig struct {
	Enabled    bool          `env:"RECOVERY_ENABLED" envDefault:"true"`
	Interval   time.Duration `env:"RECOVERY_INTERVAL" envDefault:"1m"`
	StuckAfter time.Duration `env:"RECOVERY_STUCK_AFTER" envDefault:"5m"`
	BatchSize  int           `env:"RECOVERY_BATCH_SIZE" envDefault:"100"`
}

// OutboxConfig: доставка событий из outbox_events в Kafka.
type OutboxConfig struct {
	PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	BatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	MaxAttempts  int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"10"`
	BaseBackoff  time.Duration `env:"OUTBOX_BASE_BACKOFF" envDefault:"1s"`
	MaxBackoff   time.Duration `env:"OUTBOX_MAX_BACKOFF" envDefault:"5m"`
	Retention    time.Duration `env:"OUTBOX_RETENTION" envDefault:"168h"`
}

// Load загружает конфигурацию из окружения. Файл .env подхватывается, если он есть.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse()
}

// LoadFromFile загружает конфигурацию из указанного .env файла.
func LoadFromFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("ошибка загрузки .env файла %s: %w", path, err)
	}
	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate проверяет сочетания параметров, которые env-теги выразить не могут.
func (c *Config) validate() error {
	switch c.AccountService.Mode {
	case AccountModeDummy, AccountModeHTTP:
	default:
		return fmt.Errorf("неизвестный ACCOUNT_SERVICE_MODE: %q", c.AccountService.Mode)
	}
	if c.Auth.Enabled && c.Auth.PublicKeyPath == "" {
		return fmt.Errorf("AUTH_ENABLED=true требует JWT_PUBLIC_KEY_PATH")
	}
	if c.Outbox.MaxAttempts < 1 {
		return fmt.Errorf("OUTBOX_MAX_ATTEMPTS должен быть не меньше 1")
	}
	return nil
}

// IsDevelopment возвращает true в development окружении.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction возвращает true в production окружении.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
