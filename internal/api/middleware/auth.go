package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cadenza/backend/pkg/jwt"
	"cadenza/backend/pkg/response"
)

const (
	codeUnauthorized = 10002
	codeForbidden    = 10003
)

// TokenBlacklist 已注销 Token 的查询接口，由 Redis 客户端实现
type TokenBlacklist interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// bearerToken 提取 Authorization: Bearer <token>，scheme 不区分大小写
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// JWTAuth 校验 Access Token 并把调用方身份写入上下文
// 黑名单为 nil 或查询出错时降级放行
func JWTAuth(jwtMgr *jwt.Manager, blacklist TokenBlacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.AbortWithError(c, http.StatusUnauthorized, codeUnauthorized, "缺少或无效的认证头")
			return
		}

		claims, err := jwtMgr.ParseToken(token)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			response.AbortWithError(c, http.StatusUnauthorized, codeUnauthorized, "Token 已过期")
			return
		case errors.Is(err, jwt.ErrTokenClaims):
			response.AbortWithError(c, http.StatusUnauthorized, codeUnauthorized, "Token 身份信息不完整")
			return
		case err != nil:
			response.AbortWithError(c, http.StatusUnauthorized, codeUnauthorized, "Token 无效")
			return
		}

		if blacklist != nil && claims.ID != "" {
			if revoked, err := blacklist.IsBlacklisted(c.Request.Context(), claims.ID); err == nil && revoked {
				response.AbortWithError(c, http.StatusUnauthorized, codeUnauthorized, "Token 已注销")
				return
			}
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Set("teacher_id", claims.TeacherID)
		c.Set("token_jti", claims.ID)
		c.Next()
	}
}

// RoleAuth 仅允许指定角色访问
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		if role == "" {
			response.AbortWithError(c, http.StatusUnauthorized, codeUnauthorized, "未认证")
			return
		}
		for _, r := range allowedRoles {
			if role == r {
				c.Next()
				return
			}
		}
		response.AbortWithError(c, http.StatusForbidden, codeForbidden, "无权限访问")
	}
}
