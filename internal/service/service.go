package service

import (
	"time"

	"go.uber.org/zap"

	"cadenza/backend/config"
	"cadenza/backend/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Availability AvailabilityService
	Substitution SubstitutionService
	Absence      AbsenceService
	Notification NotificationService
	Export       ExportService
	Calendar     CalendarService

	// Location 业务时区，日历邀请与定时任务共用
	Location *time.Location
}

// NewService 创建 Service 聚合；locker 与 channels 由 main 按配置选择
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	locker GroupLocker,
	channels []Channel,
	logger *zap.Logger,
) *Service {
	loc, err := time.LoadLocation(cfg.Database.Timezone)
	if err != nil {
		logger.Warn("加载时区失败，改用 UTC", zap.String("timezone", cfg.Database.Timezone), zap.Error(err))
		loc = time.UTC
	}

	notification := NewNotificationService(repo, &cfg.Notify, channels, logger)

	return &Service{
		Availability: NewAvailabilityService(repo, logger),
		Substitution: NewSubstitutionService(repo, locker, notification, logger),
		Absence:      NewAbsenceService(repo, logger),
		Notification: notification,
		Export:       NewExportService(repo, logger),
		Calendar:     NewCalendarService(repo, loc, logger),
		Location:     loc,
	}
}
