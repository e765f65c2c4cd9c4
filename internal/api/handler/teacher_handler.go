package handler

import (
	"github.com/gin-gonic/gin"

	"cadenza/backend/internal/dto"
	"cadenza/backend/internal/service"
	"cadenza/backend/pkg/response"
)

// TeacherHandler 教师可用性 HTTP 处理器
type TeacherHandler struct {
	availabilitySvc service.AvailabilityService
}

// NewTeacherHandler 创建 TeacherHandler
func NewTeacherHandler(availabilitySvc service.AvailabilityService) *TeacherHandler {
	return &TeacherHandler{availabilitySvc: availabilitySvc}
}

// FindSubstitutes 查询可代课教师（管理员）
// POST /api/v1/teachers/find-substitutes
func (h *TeacherHandler) FindSubstitutes(c *gin.Context) {
	var req dto.FindSubstitutesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	result, err := h.availabilitySvc.FindSubstitutes(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, result)
}
