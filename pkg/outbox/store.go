package outbox

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// maxErrorLength ограничивает текст ошибки, сохраняемый в last_error.
const maxErrorLength = 1024

// Store: хранилище событий для Relay.
type Store interface {
	// Pending возвращает события, срок отправки которых наступил.
	Pending(ctx context.Context, limit int) ([]*Event, error)
	MarkPublished(ctx context.Context, ids []string) error
	// Reschedule увеличивает счётчик попыток и переносит отправку на next.
	Reschedule(ctx context.Context, id string, cause error, next time.Time) error
	// Bury исключает событие из отправки.
	Bury(ctx context.Context, id string, cause error) error
	// Purge удаляет опубликованные события старше before.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore создаёт Store поверх таблицы outbox_events.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *gormStore) Pending(ctx context.Context, limit int) ([]*Event, error) {
	var events []*Event
	err := s.db.WithContext(ctx).
		Where("published_at IS NULL AND dead_at IS NULL AND next_attempt_at <= ?", s.now()).
		Order("next_attempt_at ASC, created_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения outbox: %w", err)
	}
	return events, nil
}

func (s *gormStore) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&Event{}).
		Where("id IN ?", ids).
		Update("published_at", s.now()).Error
	if err != nil {
		return fmt.Errorf("ошибка отметки опубликованных событий: %w", err)
	}
	return nil
}

func (s *gormStore) Reschedule(ctx context.Context, id string, cause error, next time.Time) error {
	return s.fail(ctx, id, map[string]any{
		"attempts":        gorm.Expr("attempts + 1"),
		"last_error":      errorText(cause),
		"next_attempt_at": next,
	})
}

func (s *gormStore) Bury(ctx context.Context, id string, cause error) error {
	return s.fail(ctx, id, map[string]any{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": errorText(cause),
		"dead_at":    s.now(),
	})
}

func (s *gormStore) fail(ctx context.Context, id string, updates map[string]any) error {
	result := s.db.WithContext(ctx).
		Model(&Event{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("ошибка обновления события %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("событие %s не найдено", id)
	}
	return nil
}

func (s *gormStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", before).
		Delete(&Event{})
	if result.Error != nil {
		return 0, fmt.Errorf("ошибка очистки outbox: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorLength {
		msg = msg[:maxErrorLength]
	}
	return msg
}
