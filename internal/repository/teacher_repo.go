package repository

import (
	"context"

	"gorm.io/gorm"

	"cadenza/backend/internal/model"
)

// TeacherRepository 教师数据访问接口
type TeacherRepository interface {
	GetByID(ctx context.Context, id string) (*model.Teacher, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Teacher, error)
	ListActiveByInstrument(ctx context.Context, instrument string) ([]model.Teacher, error)
	// CountCompletedLessons 批量统计已完成课时数，未出现的教师计为 0
	CountCompletedLessons(ctx context.Context, teacherIDs []string) (map[string]int64, error)
}

type teacherRepo struct {
	db *gorm.DB
}

func NewTeacherRepo(db *gorm.DB) TeacherRepository {
	return &teacherRepo{db: db}
}

func (r *teacherRepo) GetByID(ctx context.Context, id string) (*model.Teacher, error) {
	var teacher model.Teacher
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("teacher_id = ?", id).
		First(&teacher).Error
	if err != nil {
		return nil, err
	}
	return &teacher, nil
}

func (r *teacherRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Teacher, error) {
	var teachers []model.Teacher
	if len(ids) == 0 {
		return teachers, nil
	}
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("teacher_id IN ?", ids).
		Find(&teachers).Error
	return teachers, err
}

func (r *teacherRepo) ListActiveByInstrument(ctx context.Context, instrument string) ([]model.Teacher, error) {
	var teachers []model.Teacher
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("EXISTS (SELECT 1 FROM unnest(instruments) AS i WHERE lower(i) = lower(?))", instrument).
		Order("name ASC").
		Find(&teachers).Error
	return teachers, err
}

func (r *teacherRepo) CountCompletedLessons(ctx context.Context, teacherIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(teacherIDs))
	if len(teacherIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		TeacherID string
		Total     int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Lesson{}).
		Select("teacher_id, COUNT(*) AS total").
		Where("teacher_id IN ? AND status = ?", teacherIDs, model.LessonStatusCompleted).
		Group("teacher_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.TeacherID] = row.Total
	}
	return counts, nil
}
