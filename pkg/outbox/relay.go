package outbox

import (
	"context"
	"errors"
	"time"

	"example.com/card-settlement/pkg/kafka"
	"example.com/card-settlement/pkg/logger"
	"example.com/card-settlement/pkg/metrics"
)

// Publisher отправляет пачку сообщений. Результат по каждому сообщению
// возвращается в срезе той же длины.
type Publisher interface {
	PublishBatch(ctx context.Context, msgs []kafka.Message) []error
}

// RelayConfig: настройки Relay.
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	// Retention: сколько хранить опубликованные события. 0 отключает очистку.
	Retention     time.Duration
	PurgeInterval time.Duration
}

// DefaultRelayConfig возвращает конфигурацию по умолчанию.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		PollInterval:  time.Second,
		BatchSize:     100,
		MaxAttempts:   10,
		BaseBackoff:   time.Second,
		MaxBackoff:    5 * time.Minute,
		Retention:     7 * 24 * time.Hour,
		PurgeInterval: time.Hour,
	}
}

// Relay переносит события из outbox в Kafka с гарантией at-least-once.
// Потребители дедуплицируют по header event_id.
type Relay struct {
	store Store
	pub   Publisher
	cfg   RelayConfig
	now   func() time.Time
}

// NewRelay создаёт Relay. Незаданные поля cfg берутся из DefaultRelayConfig.
func NewRelay(store Store, pub Publisher, cfg RelayConfig) *Relay {
	def := DefaultRelayConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = def.PurgeInterval
	}

	return &Relay{
		store: store,
		pub:   pub,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Run опрашивает outbox до отмены ctx. Пока пачки приходят полными,
// следующая читается сразу, не дожидаясь тика.
func (r *Relay) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Dur("poll_interval", r.cfg.PollInterval).
		Int("batch_size", r.cfg.BatchSize).
		Int("max_attempts", r.cfg.MaxAttempts).
		Msg("Запуск Outbox Relay")

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	purgeTicker := time.NewTicker(r.cfg.PurgeInterval)
	defer purgeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Остановка Outbox Relay")
			return
		case <-ticker.C:
			r.drain(ctx)
		case <-purgeTicker.C:
			r.purge(ctx)
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := r.Flush(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log := logger.FromContext(ctx)
				log.Error().Err(err).Msg("Ошибка отправки outbox")
			}
			return
		}
		if n < r.cfg.BatchSize {
			return
		}
	}
}

// Flush обрабатывает одну пачку и возвращает число прочитанных событий.
// Ошибка означает сбой хранилища. Ошибки Kafka учитываются в самих событиях.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.store.Pending(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		msgs[i] = toMessage(e)
	}

	results := r.pub.PublishBatch(ctx, msgs)

	log := logger.FromContext(ctx)
	published := make([]string, 0, len(events))
	for i, e := range events {
		var sendErr error
		if i < len(results) {
			sendErr = results[i]
		} else {
			sendErr = errors.New("нет результата отправки")
		}

		if sendErr == nil {
			published = append(published, e.ID)
			metrics.OutboxPublished.WithLabelValues(e.Topic).Inc()
			continue
		}

		if err := r.handleFailure(ctx, e, sendErr); err != nil {
			log.Error().Err(err).Str("event_id", e.ID).Msg("Не удалось сохранить ошибку отправки")
		}
	}

	if err := r.store.MarkPublished(ctx, published); err != nil {
		// события уйдут повторно, потребитель отбросит дубли по event_id
		return len(events), err
	}

	return len(events), nil
}

func (r *Relay) handleFailure(ctx context.Context, e *Event, cause error) error {
	log := logger.FromContext(ctx).With().
		Str("event_id", e.ID).
		Str("event_type", e.EventType).
		Int("attempt", e.Attempts+1).
		Logger()

	if e.Attempts+1 >= r.cfg.MaxAttempts {
		metrics.OutboxFailures.WithLabelValues(e.Topic, "dead").Inc()
		log.Error().Err(cause).Msg("Событие исчерпало попытки отправки")
		return r.store.Bury(ctx, e.ID, cause)
	}

	next := r.now().Add(r.backoff(e.Attempts + 1))
	metrics.OutboxFailures.WithLabelValues(e.Topic, "retry").Inc()
	log.Warn().Err(cause).Time("next_attempt_at", next).Msg("Отправка события отложена")
	return r.store.Reschedule(ctx, e.ID, cause, next)
}

// backoff возвращает задержку перед попыткой attempt+1: BaseBackoff * 2^(attempt-1), не больше MaxBackoff.
func (r *Relay) backoff(attempt int) time.Duration {
	d := r.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.cfg.MaxBackoff {
			return r.cfg.MaxBackoff
		}
	}
	return d
}

func (r *Relay) purge(ctx context.Context) {
	if r.cfg.Retention <= 0 {
		return
	}
	log := logger.FromContext(ctx)
	deleted, err := r.store.Purge(ctx, r.now().Add(-r.cfg.Retention))
	if err != nil {
		log.Error().Err(err).Msg("Ошибка очистки outbox")
		return
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("Очищены опубликованные события outbox")
	}
}

func toMessage(e *Event) kafka.Message {
	headers := make(map[string]string, len(e.Headers)+3)
	for k, v := range e.Headers {
		headers[k] = v
	}
	headers[kafka.HeaderEventID] = e.ID
	headers[kafka.HeaderEventType] = e.EventType
	headers[kafka.HeaderOccurredAt] = e.CreatedAt.Format(time.RFC3339Nano)

	return kafka.Message{
		Topic:   e.Topic,
		Key:     e.Key,
		Value:   e.Payload,
		Headers: headers,
		Time:    e.CreatedAt,
	}
}
