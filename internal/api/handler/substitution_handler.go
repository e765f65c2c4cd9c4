package handler

import (
	"github.com/gin-gonic/gin"

	"cadenza/backend/internal/dto"
	"cadenza/backend/internal/service"
	"cadenza/backend/pkg/response"
)

// SubstitutionHandler 代课请求 HTTP 处理器
type SubstitutionHandler struct {
	svc service.SubstitutionService
}

// NewSubstitutionHandler 创建 SubstitutionHandler
func NewSubstitutionHandler(svc service.SubstitutionService) *SubstitutionHandler {
	return &SubstitutionHandler{svc: svc}
}

// Create 发起代课请求（管理员）
// POST /api/v1/substitute-requests
func (h *SubstitutionHandler) Create(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CreateSubstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	result, err := h.svc.Create(c.Request.Context(), &req, caller)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, result)
}

// List 代课请求列表；教师只能看到发给自己的请求
// GET /api/v1/substitute-requests?absence_id=&status=
func (h *SubstitutionHandler) List(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.ListSubstitutionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		handleBindError(c, err)
		return
	}

	list, err := h.svc.List(c.Request.Context(), &req, caller)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, list)
}

// Respond 候选教师确认或拒绝
// POST /api/v1/substitute-requests/:id/respond
func (h *SubstitutionHandler) Respond(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	result, err := h.svc.Respond(c.Request.Context(), c.Param("id"), req.Response, caller)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, result)
}
