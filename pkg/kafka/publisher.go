package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/card-settlement/pkg/logger"
)

// messageWriter: часть kafka.Writer, которую использует Publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher синхронно отправляет события в Kafka.
type Publisher struct {
	writer messageWriter
}

// NewPublisher создаёт Publisher. Подтверждение требуется от всех реплик:
// событие о движении денег не должно потеряться при падении лидера.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("не указаны брокеры Kafka")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}

	logger.Info().Strs("brokers", cfg.Brokers).Msg("Создан Kafka Publisher")

	return &Publisher{writer: writer}, nil
}

// PublishBatch отправляет сообщения одним вызовом.
// Возвращает срез той же длины: nil, если сообщение доставлено, иначе причина отказа.
func (p *Publisher) PublishBatch(ctx context.Context, msgs []Message) []error {
	results := make([]error, len(msgs))
	if len(msgs) == 0 {
		return results
	}

	batch := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		batch[i] = m.toKafka()
	}

	err := p.writer.WriteMessages(ctx, batch...)
	if err == nil {
		return results
	}

	// kafka-go сообщает результат по каждому сообщению пачки
	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) && len(writeErrs) == len(msgs) {
		for i, werr := range writeErrs {
			if werr != nil {
				results[i] = fmt.Errorf("ошибка отправки в %s: %w", msgs[i].Topic, werr)
			}
		}
		logger.Warn().
			Int("failed", writeErrs.Count()).
			Int("total", len(msgs)).
			Msg("Часть пачки не отправлена в Kafka")
		return results
	}

	logger.Error().Err(err).Int("total", len(msgs)).Msg("Ошибка отправки пачки в Kafka")
	for i := range results {
		results[i] = fmt.Errorf("ошибка отправки в Kafka: %w", err)
	}
	return results
}

// Close закрывает writer. Вызывается при завершении процесса.
func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия Kafka Publisher: %w", err)
	}
	logger.Info().Msg("Kafka Publisher закрыт")
	return nil
}
