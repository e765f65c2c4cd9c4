package repository

import (
	"context"

	"gorm.io/gorm"

	"cadenza/backend/internal/model"
)

// LessonChangeLogRepository 课程变更日志数据访问接口
type LessonChangeLogRepository interface {
	Create(ctx context.Context, log *model.LessonChangeLog) error
	ListByLesson(ctx context.Context, lessonID string) ([]model.LessonChangeLog, error)
}

type lessonChangeLogRepo struct {
	db *gorm.DB
}

func NewLessonChangeLogRepo(db *gorm.DB) LessonChangeLogRepository {
	return &lessonChangeLogRepo{db: db}
}

func (r *lessonChangeLogRepo) Create(ctx context.Context, log *model.LessonChangeLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *lessonChangeLogRepo) ListByLesson(ctx context.Context, lessonID string) ([]model.LessonChangeLog, error) {
	var logs []model.LessonChangeLog
	err := r.db.WithContext(ctx).
		Where("lesson_id = ?", lessonID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}
