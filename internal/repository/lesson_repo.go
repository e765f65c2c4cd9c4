package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cadenza/backend/internal/model"
	pkgerrors "cadenza/backend/pkg/errors"
)

// LessonRepository 课程数据访问接口
// 课程由课程管理模块维护，这里只提供查询与代课改派
type LessonRepository interface {
	GetByID(ctx context.Context, id string) (*model.Lesson, error)
	// GetByIDForUpdate SELECT ... FOR UPDATE，须在事务内调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.Lesson, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Lesson, error)
	// ListAffected 教师在 [from,to] 内仍为 scheduled 的课程
	ListAffected(ctx context.Context, teacherID string, from, to time.Time) ([]model.Lesson, error)
	// ListBusyOnDate 指定教师在某日占用时间的课程（scheduled 与 completed）
	ListBusyOnDate(ctx context.Context, teacherIDs []string, date time.Time) ([]model.Lesson, error)
	// ReassignTeacher 乐观锁改派教师
	ReassignTeacher(ctx context.Context, lesson *model.Lesson, teacherID, operatorID string) error
}

type lessonRepo struct {
	db *gorm.DB
}

func NewLessonRepo(db *gorm.DB) LessonRepository {
	return &lessonRepo{db: db}
}

func (r *lessonRepo) GetByID(ctx context.Context, id string) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.db.WithContext(ctx).
		Where("lesson_id = ?", id).
		First(&lesson).Error
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *lessonRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("lesson_id = ?", id).
		First(&lesson).Error
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *lessonRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Lesson, error) {
	var lessons []model.Lesson
	if len(ids) == 0 {
		return lessons, nil
	}
	err := r.db.WithContext(ctx).
		Where("lesson_id IN ?", ids).
		Find(&lessons).Error
	return lessons, err
}

func (r *lessonRepo) ListAffected(ctx context.Context, teacherID string, from, to time.Time) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.db.WithContext(ctx).
		Where("teacher_id = ? AND status = ?", teacherID, model.LessonStatusScheduled).
		Where("lesson_date BETWEEN ? AND ?", from.Format(dateLayout), to.Format(dateLayout)).
		Order("lesson_date ASC, start_time ASC").
		Find(&lessons).Error
	return lessons, err
}

func (r *lessonRepo) ListBusyOnDate(ctx context.Context, teacherIDs []string, date time.Time) ([]model.Lesson, error) {
	var lessons []model.Lesson
	if len(teacherIDs) == 0 {
		return lessons, nil
	}
	err := r.db.WithContext(ctx).
		Where("teacher_id IN ? AND lesson_date = ?", teacherIDs, date.Format(dateLayout)).
		Where("status IN ?", []string{model.LessonStatusScheduled, model.LessonStatusCompleted}).
		Find(&lessons).Error
	return lessons, err
}

func (r *lessonRepo) ReassignTeacher(ctx context.Context, lesson *model.Lesson, teacherID, operatorID string) error {
	oldVersion := lesson.Version
	result := r.db.WithContext(ctx).
		Model(&model.Lesson{}).
		Where("lesson_id = ? AND version = ?", lesson.LessonID, oldVersion).
		Updates(map[string]interface{}{
			"teacher_id": teacherID,
			"updated_by": operatorID,
			"updated_at": time.Now(),
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	lesson.TeacherID = teacherID
	lesson.UpdatedBy = &operatorID
	lesson.Version = oldVersion + 1
	return nil
}
