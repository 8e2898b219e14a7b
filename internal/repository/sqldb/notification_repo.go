package sqldb

import (
	"context"
	"time"

	"gorm.io/gorm"

	"Forecast_Hub/internal/model"
)

const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2
)

// MaxOutboxRetry is how many failed deliveries an event gets before it stays failed.
const MaxOutboxRetry = 5

type NotificationRepository struct {
	DB *gorm.DB
}

type OutboxRepository struct {
	DB *gorm.DB
}

func (r *NotificationRepository) CreateBatch(ctx context.Context, list []model.Notification) error {
	if len(list) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).CreateInBatches(list, 500).Error
}

// ListForUser pages the recipient's notifications, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.Notification, uint64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := r.DB.WithContext(ctx).Model(&model.Notification{}).Where("recipient_id = ?", userID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var rows []model.Notification
	if err := q.Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	var next uint64
	if len(rows) > limit {
		next = rows[limit-1].ID
		rows = rows[:limit]
	}
	return rows, next, nil
}

// MarkRead marks the given notifications (all unread ones when ids is empty) as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID uint64, ids []uint64, now time.Time) (int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL", userID)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Update("read_at", now)
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) CountOfType(ctx context.Context, userID uint64, typ string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Notification{}).
		Where("recipient_id = ? AND type = ?", userID, typ).
		Count(&n).Error
	return n, err
}

// Add writes a standalone event to the outbox.
func (r *OutboxRepository) Add(ctx context.Context, event string, aggregateID uint64, fields map[string]any) error {
	return insertOutbox(r.DB.WithContext(ctx), event, aggregateID, fields)
}

// List returns pending events plus failed ones that still have retries left.
func (r *OutboxRepository) List(ctx context.Context, batchSize int) ([]model.EventOutbox, error) {
	var list []model.EventOutbox
	if err := r.DB.WithContext(ctx).
		Where("status = ? OR (status = ? AND retry < ?)", OutboxPending, OutboxFailed, MaxOutboxRetry).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *OutboxRepository) RetryUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.EventOutbox{}).Where("id = ?", id).
		Updates(map[string]any{"status": OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error
}

func (r *OutboxRepository) SuccessUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.EventOutbox{}).Where("id = ?", id).
		Update("status", OutboxSent).Error
}
