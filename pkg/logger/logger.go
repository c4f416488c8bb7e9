// Package logger пишет структурированные логи на zerolog.
// В production JSON, локально ConsoleWriter (LOG_PRETTY=true).
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

// Config: настройки логгера.
type Config struct {
	Level   string // trace, debug, info, warn, error; пустое или неизвестное значение даёт info
	Pretty  bool
	Output  io.Writer // по умолчанию os.Stdout
	Service string    // поле service в каждой записи
}

// Пакет готов к работе до загрузки конфигурации.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Init(Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Pretty: strings.EqualFold(os.Getenv("LOG_PRETTY"), "true"),
	})
}

// New собирает логгер по конфигурации, не трогая глобальный.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	lctx := zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Caller()
	if cfg.Service != "" {
		lctx = lctx.Str("service", cfg.Service)
	}
	return lctx.Logger()
}

// Init заменяет глобальный логгер.
func Init(cfg Config) {
	log = New(cfg)
}

func parseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

func Debug() *zerolog.Event { return log.Debug() }

func Info() *zerolog.Event { return log.Info() }

func Warn() *zerolog.Event { return log.Warn() }

func Error() *zerolog.Event { return log.Error() }

// Fatal завершает процесс с кодом 1 после Msg().
func Fatal() *zerolog.Event { return log.Fatal() }

// With начинает дочерний логгер:
//
//	accountsLog := logger.With().Str("component", "account-client").Logger()
func With() zerolog.Context { return log.With() }

// Logger возвращает глобальный логгер.
func Logger() zerolog.Logger { return log }

// SetGlobalLogger подменяет глобальный логгер, для тестов.
func SetGlobalLogger(l zerolog.Logger) { log = l }
