package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"cadenza/backend/config"
	"cadenza/backend/internal/api/handler"
	"cadenza/backend/internal/api/router"
	"cadenza/backend/internal/repository"
	"cadenza/backend/internal/scheduler"
	"cadenza/backend/internal/service"
	"cadenza/backend/pkg/database"
	"cadenza/backend/pkg/jwt"
	applogger "cadenza/backend/pkg/logger"
	"cadenza/backend/pkg/redis"
	"cadenza/backend/pkg/telegram"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("CADENZA_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("lock_backend", cfg.Substitution.LockBackend),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. Redis 可选：不可用时黑名单与限流降级放行
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单与限流将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 课程锁：redis 后端要求 Redis 可用
	var locker service.GroupLocker
	switch {
	case cfg.Substitution.LockBackend == "redis" && rdb != nil:
		locker = service.NewRedisGroupLocker(rdb, cfg.Substitution.LockTTL, cfg.Substitution.LockWait)
	case cfg.Substitution.LockBackend == "redis":
		logger.Fatal("substitution.lock_backend=redis 但 Redis 不可用")
	default:
		locker = service.NewLocalGroupLocker(cfg.Substitution.LockWait)
	}

	// 6. 外部推送渠道
	var channels []service.Channel
	if cfg.Notify.TelegramToken != "" {
		sender, err := telegram.NewSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramTimeout)
		if err != nil {
			logger.Fatal("初始化 Telegram 失败", zap.Error(err))
		}
		channels = append(channels, service.NewTelegramChannel(sender))
	}

	// 7. 依赖注入: Repository → Service → Handler
	if err := handler.RegisterValidators(); err != nil {
		logger.Fatal("注册参数校验规则失败", zap.Error(err))
	}
	jwtMgr := jwt.NewManager(&cfg.Auth)
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, locker, channels, logger)
	h := handler.NewHandler(svc)

	// 8. 后台任务
	svc.Notification.Start()
	sched := scheduler.New(svc.Notification, svc.Absence, cfg.Notify.RetryCron, cfg.Notify.AbsenceSweepCron, svc.Location, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("启动定时任务失败", zap.Error(err))
	}

	// 9. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 10. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 11. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 先停止接收请求，再排空通知队列
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	if err := sched.Stop(ctx); err != nil {
		logger.Error("定时任务关闭异常", zap.Error(err))
	}
	if err := svc.Notification.Stop(ctx); err != nil {
		logger.Error("通知队列未能排空", zap.Error(err))
	}

	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Warn("关闭 Redis 连接失败", zap.Error(err))
		}
	}

	logger.Info("服务器已关闭")
}
