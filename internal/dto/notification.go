package dto

// NotificationListRequest 通知列表查询参数
type NotificationListRequest struct {
	UnreadOnly bool `form:"unread_only"`
	PaginationRequest
}

// NotificationResponse 站内通知
type NotificationResponse struct {
	ID             string  `json:"id"`
	Type           string  `json:"type"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	IsRead         bool    `json:"is_read"`
	RelatedType    *string `json:"related_type,omitempty"`
	RelatedID      *string `json:"related_id,omitempty"`
	DeliveryStatus string  `json:"delivery_status"`
	CreatedAt      string  `json:"created_at"`
}
