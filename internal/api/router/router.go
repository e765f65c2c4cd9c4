package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cadenza/backend/config"
	"cadenza/backend/internal/api/handler"
	"cadenza/backend/internal/api/middleware"
	"cadenza/backend/internal/model"
	"cadenza/backend/pkg/jwt"
	"cadenza/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 可为 nil：黑名单与限流降级放行
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	var (
		blacklist middleware.TokenBlacklist
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist, limiter = rdb, rdb
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1（全部需要认证） ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, blacklist))
	{
		admin := middleware.RoleAuth(model.RoleAdmin)

		// 代课请求
		requests := v1.Group("/substitute-requests")
		{
			requests.POST("", admin, h.Substitution.Create)
			requests.GET("", h.Substitution.List) // 教师只看自己的（Service 层过滤）
			requests.GET("/export", admin, h.Export.ExportSubstitutions)
			requests.POST("/:id/respond",
				middleware.RateLimit(limiter, cfg.Substitution.RespondRateLimit, time.Minute),
				h.Substitution.Respond,
			)
			requests.GET("/:id/calendar", h.Export.CalendarInvite)
		}

		// 教师
		v1.POST("/teachers/find-substitutes", admin, h.Teacher.FindSubstitutes)

		// 缺勤
		v1.GET("/absences/:id", admin, h.Absence.Get)

		// 站内通知
		notifications := v1.Group("/notifications")
		{
			notifications.GET("", h.Notification.List)
			notifications.PUT("/:id/read", h.Notification.MarkRead)
		}
	}

	return r
}
