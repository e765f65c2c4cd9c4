package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cadenza/backend/pkg/response"
)

// CodeBodyTooLarge 请求体超限错误码
const CodeBodyTooLarge = 10005

// BodyLimit 请求体大小限制
// 声明了 Content-Length 且超限的请求直接拒绝；未声明长度的由 MaxBytesReader 在读取时截断，
// 绑定阶段得到 *http.MaxBytesError，由 handler 统一转成 413
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 || c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxBytes {
			response.AbortWithError(c, http.StatusRequestEntityTooLarge, CodeBodyTooLarge, "请求体过大")
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
