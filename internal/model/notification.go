package model

import "time"

// 通知投递状态
const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
	DeliverySkipped   = "skipped" // 无外部渠道或用户关闭推送，仅站内信
)

// Notification 通知消息表，对应 notifications
type Notification struct {
	NotificationID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	UserID         string     `gorm:"type:uuid;not null"                             json:"user_id"`
	Type           string     `gorm:"type:varchar(50);not null"                      json:"type"`
	Title          string     `gorm:"type:varchar(200);not null"                     json:"title"`
	Content        string     `gorm:"type:text;not null"                             json:"content"`
	IsRead         bool       `gorm:"not null;default:false"                         json:"is_read"`
	RelatedType    *string    `gorm:"type:varchar(30)"                               json:"related_type,omitempty"` // substitution_request | lesson | absence
	RelatedID      *string    `gorm:"type:uuid"                                      json:"related_id,omitempty"`
	DeliveryStatus string     `gorm:"type:varchar(20);not null;default:'pending'"    json:"delivery_status"`
	Attempts       int        `gorm:"not null;default:0"                             json:"attempts"`
	LastError      string     `gorm:"type:varchar(500)"                              json:"-"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	SoftDeleteModel
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }

// NotificationPreference 通知偏好表，对应 notification_preferences（与 users 1:1）
type NotificationPreference struct {
	UserID                   string `gorm:"type:uuid;primaryKey"  json:"user_id"`
	SubstitutionNotification bool   `gorm:"not null;default:true" json:"substitution_notification"`
	TelegramEnabled          bool   `gorm:"not null;default:true" json:"telegram_enabled"`
	BaseModel
}

// TableName 指定表名
func (NotificationPreference) TableName() string { return "notification_preferences" }
