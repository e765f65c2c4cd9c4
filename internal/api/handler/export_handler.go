package handler

import (
	"github.com/gin-gonic/gin"

	"cadenza/backend/internal/dto"
	"cadenza/backend/internal/service"
	"cadenza/backend/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 报表与日历下载 HTTP 处理器
type ExportHandler struct {
	exportSvc   service.ExportService
	calendarSvc service.CalendarService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService, calendarSvc service.CalendarService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc, calendarSvc: calendarSvc}
}

// ExportSubstitutions 导出某次缺勤的代课记录（管理员）
// GET /api/v1/substitute-requests/export?absence_id=xxx
func (h *ExportHandler) ExportSubstitutions(c *gin.Context) {
	var req dto.ExportSubstitutionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		handleBindError(c, err)
		return
	}

	buf, filename, err := h.exportSvc.ExportAbsence(c.Request.Context(), req.AbsenceID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Attachment(c, contentTypeXLSX, filename, buf.Bytes())
}

// CalendarInvite 下载已批准代课的日历邀请
// GET /api/v1/substitute-requests/:id/calendar
func (h *ExportHandler) CalendarInvite(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	data, filename, err := h.calendarSvc.RequestInvite(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Attachment(c, contentTypeICS, filename, data)
}
