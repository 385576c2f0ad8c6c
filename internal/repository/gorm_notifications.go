package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"dental-clinic-server/internal/models"
)

type gormNotificationRepo struct{ db *gorm.DB }

func (r *gormNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	return translate(r.db.WithContext(ctx).Create(notification).Error)
}

func (r *gormNotificationRepo) ListForRecipient(ctx context.Context, clinicID string, recipientType models.ActorType, recipientID string, unreadOnly bool) ([]models.Notification, error) {
	query := r.db.WithContext(ctx).
		Where("clinic_id = ? AND recipient_type = ? AND recipient_id = ?", clinicID, recipientType, recipientID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	var notifications []models.Notification
	if err := query.Order("created_at desc").Find(&notifications).Error; err != nil {
		return nil, translate(err)
	}
	return notifications, nil
}

func (r *gormNotificationRepo) MarkRead(ctx context.Context, clinicID, recipientID, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND clinic_id = ? AND recipient_id = ?", id, clinicID, recipientID).
		Update("read_at", at)
	return affected(res)
}

func (r *gormNotificationRepo) MarkAllRead(ctx context.Context, clinicID, recipientID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("clinic_id = ? AND recipient_id = ? AND read_at IS NULL", clinicID, recipientID).
		Update("read_at", at)
	return res.RowsAffected, translate(res.Error)
}

type gormOutboxRepo struct{ db *gorm.DB }

func (r *gormOutboxRepo) Create(ctx context.Context, event *models.OutboxEvent) error {
	return translate(r.db.WithContext(ctx).Create(event).Error)
}

func (r *gormOutboxRepo) ListPending(ctx context.Context, maxRetries, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("processed_at IS NULL AND retry_count < ?", maxRetries).
		Order("created_at asc").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, translate(err)
	}
	return events, nil
}

func (r *gormOutboxRepo) MarkProcessed(ctx context.Context, id string, publishedAt, processedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"processed_at": processedAt, "published_at": publishedAt, "error_message": ""})
	return affected(res)
}

func (r *gormOutboxRepo) MarkFailed(ctx context.Context, id string, message string) error {
	res := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"retry_count": gorm.Expr("retry_count + 1"), "error_message": message})
	return affected(res)
}

func (r *gormOutboxRepo) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).Where("processed_at IS NULL").Count(&count).Error
	return count, translate(err)
}

func (r *gormOutboxRepo) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("processed_at IS NOT NULL AND processed_at < ?", before).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, translate(res.Error)
}
