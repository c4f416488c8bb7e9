// Package healthcheck проверяет зависимости сервиса для /readyz.
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"example.com/card-settlement/pkg/logger"
	"example.com/card-settlement/pkg/metrics"
)

// Check: проверка одной зависимости.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
	// Optional: сбой пишется в лог и метрику, но готовность не снимает.
	Optional bool
}

// MySQL проверяет пул соединений GORM.
func MySQL(db *gorm.DB) Check {
	return Check{
		Name: "mysql",
		Probe: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}

// Redis проверяет клиент Redis. В сервисе расчётов Redis необязателен:
// без него пропадает только быстрый отказ по повторной карте и rate limit.
func Redis(rdb *redis.Client) Check {
	return Check{
		Name:     "redis",
		Probe:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		Optional: true,
	}
}

// Checker запускает проверки параллельно с общим таймаутом.
type Checker struct {
	checks  []Check
	timeout time.Duration
}

// NewChecker создаёт Checker. timeout <= 0 означает 3 секунды.
func NewChecker(timeout time.Duration, checks ...Check) *Checker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Checker{checks: checks, timeout: timeout}
}

// Ready возвращает nil, если все обязательные зависимости отвечают.
// Ошибки обязательных проверок объединяются через errors.Join.
func (c *Checker) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	errs := make([]error, len(c.checks))
	var wg sync.WaitGroup
	for i, check := range c.checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			errs[i] = c.run(ctx, check)
		}(i, check)
	}
	wg.Wait()

	var required []error
	for i, err := range errs {
		if err != nil && !c.checks[i].Optional {
			required = append(required, err)
		}
	}
	return errors.Join(required...)
}

func (c *Checker) run(ctx context.Context, check Check) error {
	err := check.Probe(ctx)
	if err == nil {
		metrics.DependencyUp.WithLabelValues(check.Name).Set(1)
		return nil
	}

	metrics.DependencyUp.WithLabelValues(check.Name).Set(0)
	if check.Optional {
		logger.Warn().Err(err).Str("dependency", check.Name).Msg("Необязательная зависимость недоступна")
	}
	return fmt.Errorf("%s: %w", check.Name, err)
}
