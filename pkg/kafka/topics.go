package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/card-settlement/pkg/logger"
)

// TopicSpec описывает топик, который должен существовать до старта публикации.
type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
}

// DefaultTopics возвращает топики сервиса расчётов.
func DefaultTopics() []TopicSpec {
	return []TopicSpec{
		{Name: TopicPayments, Partitions: 3, ReplicationFactor: 1},
		{Name: TopicRefunds, Partitions: 3, ReplicationFactor: 1},
	}
}

// EnsureTopics создаёт топики через контроллер кластера.
// Уже существующие топики не считаются ошибкой.
func EnsureTopics(ctx context.Context, cfg Config, topics ...TopicSpec) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("не указаны брокеры Kafka")
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second}

	conn, err := dialer.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("ошибка подключения к Kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("ошибка получения контроллера Kafka: %w", err)
	}

	controllerConn, err := dialer.DialContext(ctx, "tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("ошибка подключения к контроллеру Kafka: %w", err)
	}
	defer controllerConn.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, t := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             t.Name,
			NumPartitions:     t.Partitions,
			ReplicationFactor: t.ReplicationFactor,
		})
	}

	if err := controllerConn.CreateTopics(configs...); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("ошибка создания топиков: %w", err)
	}

	for _, t := range topics {
		logger.Info().Str("topic", t.Name).Int("partitions", t.Partitions).Msg("Топик Kafka готов")
	}

	return nil
}
