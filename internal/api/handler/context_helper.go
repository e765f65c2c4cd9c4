package handler

import (
	"github.com/gin-gonic/gin"

	"cadenza/backend/internal/service"
	"cadenza/backend/pkg/response"
)

const codeUnauthenticated = 10002

// MustGetUserID 读取 JWT 中间件写入的 user_id；缺失时写 401，调用方直接 return
func MustGetUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		response.Unauthorized(c, codeUnauthenticated, "未认证")
		return "", false
	}
	return userID, true
}

// MustGetCaller 组装调用方身份
// 代课响应与日历下载以 teacher_id 判断归属，管理员的 teacher_id 为空
func MustGetCaller(c *gin.Context) (service.Caller, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return service.Caller{}, false
	}
	caller := service.Caller{
		UserID:    userID,
		Role:      c.GetString("role"),
		TeacherID: c.GetString("teacher_id"),
	}
	if caller.Role == "" {
		response.Unauthorized(c, codeUnauthenticated, "未认证")
		return service.Caller{}, false
	}
	return caller, true
}
