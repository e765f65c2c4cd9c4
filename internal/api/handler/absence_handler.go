package handler

import (
	"github.com/gin-gonic/gin"

	"cadenza/backend/internal/service"
	"cadenza/backend/pkg/response"
)

// AbsenceHandler 缺勤 HTTP 处理器
type AbsenceHandler struct {
	absenceSvc service.AbsenceService
}

// NewAbsenceHandler 创建 AbsenceHandler
func NewAbsenceHandler(absenceSvc service.AbsenceService) *AbsenceHandler {
	return &AbsenceHandler{absenceSvc: absenceSvc}
}

// Get 缺勤详情（含受影响课程与代课进度）
// GET /api/v1/absences/:id
func (h *AbsenceHandler) Get(c *gin.Context) {
	result, err := h.absenceSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, result)
}
