package service

import "cadenza/backend/internal/model"

// Caller 当前调用方身份，由 JWT 中间件注入后经 Handler 传入
type Caller struct {
	UserID    string
	Role      string
	TeacherID string // 管理员账号可能为空
}

// IsAdmin 是否管理员
func (c Caller) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}
