package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	pkgerrors "cadenza/backend/pkg/errors"
	"cadenza/backend/pkg/response"
)

// 业务错误码
const (
	codeValidation = 10001
	codeForbidden  = 10003
	codeTooLarge   = 10005
	codeNotFound   = 30001
	codeStale      = 30002
	codeConflict   = 30003
	codeInternal   = 50000
)

// handleServiceError 按错误类别映射 HTTP 状态码
func handleServiceError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, pkgerrors.ErrValidation):
		response.BadRequest(c, codeValidation, err.Error())
	case errors.Is(err, pkgerrors.ErrForbidden):
		response.Forbidden(c, codeForbidden, err.Error())
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.NotFound(c, codeNotFound, err.Error())
	case errors.Is(err, pkgerrors.ErrStale):
		response.Conflict(c, codeStale, err.Error())
	case errors.Is(err, pkgerrors.ErrConflict):
		response.Conflict(c, codeConflict, err.Error())
	default:
		response.InternalError(c)
	}
}

// handleBindError 参数绑定失败：校验错误附带字段明细
func handleBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, codeTooLarge, "请求体过大")
		return
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		response.ErrorWithDetails(c, http.StatusBadRequest, codeValidation, "参数校验失败", verrs.Error())
		return
	}
	response.BadRequest(c, codeValidation, "请求格式无效")
}
