// Package kafka публикует события сервиса расчётов в Kafka.
// Publisher отправляет пачку сообщений одним запросом и сообщает результат по каждому,
// EnsureTopics создаёт топики при старте.
package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Топики событий сервиса расчётов.
const (
	// TopicPayments: итоговые статусы платежей (approved/declined/failed).
	TopicPayments = "bank.payments"

	// TopicRefunds: принятые возвраты.
	TopicRefunds = "bank.refunds"
)

// Ключи headers сообщений.
const (
	HeaderTraceID       = "trace_id"
	HeaderCorrelationID = "correlation_id"
	HeaderEventType     = "event_type" // payment.approved, refund.created и т.д.
	HeaderEventID       = "event_id"   // ID записи outbox, для дедупликации у потребителя
	HeaderOccurredAt    = "occurred_at"
)

// Config содержит настройки подключения к Kafka.
type Config struct {
	Brokers []string
}

// Message: событие, готовое к отправке.
type Message struct {
	Topic   string
	Key     string // ID платежа: события платежа и его возвратов упорядочены в партиции
	Value   []byte
	Headers map[string]string
	Time    time.Time
}

// toKafka конвертирует Message в сообщение kafka-go.
func (m Message) toKafka() kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers))
	for k, v := range m.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return kafka.Message{
		Topic:   m.Topic,
		Key:     []byte(m.Key),
		Value:   m.Value,
		Headers: headers,
		Time:    m.Time,
	}
}
