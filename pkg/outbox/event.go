// Package outbox гарантирует доставку событий расчётов в Kafka.
//
// Сервис пишет Event в той же транзакции, что и изменение платежа или возврата
// (Append). Relay читает неотправленные события, публикует их пачкой и
// откладывает неудачные с экспоненциальной задержкой. После MaxAttempts
// событие хоронится (dead_at) и больше не выбирается.
package outbox

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Типы агрегатов.
const (
	AggregatePayment = "payment"
	AggregateRefund  = "refund"
)

// Headers: headers сообщения, хранятся в колонке JSON.
type Headers map[string]string

// Value реализует driver.Valuer.
func (h Headers) Value() (driver.Value, error) {
	if len(h) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(map[string]string(h))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan реализует sql.Scanner.
func (h *Headers) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*h = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("headers: неподдерживаемый тип %T", src)
	}
	if len(data) == 0 {
		*h = nil
		return nil
	}
	return json.Unmarshal(data, (*map[string]string)(h))
}

// Event: строка таблицы outbox_events.
type Event struct {
	ID            string     `gorm:"column:id;type:varchar(36);primaryKey"`
	AggregateType string     `gorm:"column:aggregate_type;type:varchar(32);not null;index:idx_outbox_events_aggregate"`
	AggregateID   string     `gorm:"column:aggregate_id;type:varchar(36);not null;index:idx_outbox_events_aggregate"`
	EventType     string     `gorm:"column:event_type;type:varchar(64);not null"`
	Topic         string     `gorm:"column:topic;type:varchar(128);not null"`
	Key           string     `gorm:"column:message_key;type:varchar(64);not null"`
	Payload       []byte     `gorm:"column:payload;type:json;not null"`
	Headers       Headers    `gorm:"column:headers;type:json"`
	Attempts      int        `gorm:"column:attempts;not null;default:0"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null;index:idx_outbox_events_pending"`
	PublishedAt   *time.Time `gorm:"column:published_at;index:idx_outbox_events_pending"`
	DeadAt        *time.Time `gorm:"column:dead_at"`
	LastError     string     `gorm:"column:last_error;type:text"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
}

// TableName возвращает имя таблицы.
func (Event) TableName() string {
	return "outbox_events"
}

// NewEvent сериализует payload и возвращает событие, готовое к отправке сразу.
// key задаёт партицию: события одного платежа и его возвратов идут с его ID.
func NewEvent(aggregateType, aggregateID, eventType, topic, key string, payload any, headers Headers) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации события %s: %w", eventType, err)
	}

	now := time.Now().UTC()
	return &Event{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Topic:         topic,
		Key:           key,
		Payload:       data,
		Headers:       headers,
		NextAttemptAt: now,
		CreatedAt:     now,
	}, nil
}

// Append пишет события в открытой транзакции вызывающего.
func Append(tx *gorm.DB, events ...*Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := tx.Create(events).Error; err != nil {
		return fmt.Errorf("ошибка записи в outbox: %w", err)
	}
	return nil
}
