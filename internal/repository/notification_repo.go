package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"cadenza/backend/internal/model"
)

// NotificationRepository 通知与通知偏好数据访问接口
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	GetByID(ctx context.Context, id string) (*model.Notification, error)
	// UpdateDelivery 回写投递结果（状态、尝试次数、错误信息）
	UpdateDelivery(ctx context.Context, n *model.Notification) error
	// ListRetryable 投递失败且尝试次数未达上限的通知
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]model.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error)
	// MarkRead 仅能标记本人的通知，返回是否命中
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	// GetPreference 不存在时返回默认偏好（全部开启）
	GetPreference(ctx context.Context, userID string) (*model.NotificationPreference, error)
}

type notificationRepo struct {
	db *gorm.DB
}

func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepo) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", id).
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepo) UpdateDelivery(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("notification_id = ?", n.NotificationID).
		Updates(map[string]interface{}{
			"delivery_status": n.DeliveryStatus,
			"attempts":        n.Attempts,
			"last_error":      n.LastError,
			"delivered_at":    n.DeliveredAt,
			"updated_at":      time.Now(),
		}).Error
}

func (r *notificationRepo) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]model.Notification, error) {
	var list []model.Notification
	err := r.db.WithContext(ctx).
		Where("delivery_status = ? AND attempts < ?", model.DeliveryFailed, maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	var list []model.Notification
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		db = db.Where("is_read = ?", false)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("notification_id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "updated_at": time.Now()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *notificationRepo) GetPreference(ctx context.Context, userID string) (*model.NotificationPreference, error) {
	var pref model.NotificationPreference
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.NotificationPreference{
			UserID:                   userID,
			SubstitutionNotification: true,
			TelegramEnabled:          true,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}
