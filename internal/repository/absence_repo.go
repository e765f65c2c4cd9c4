package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"cadenza/backend/internal/model"
	pkgerrors "cadenza/backend/pkg/errors"
)

// AbsenceRepository 缺勤数据访问接口
type AbsenceRepository interface {
	GetByID(ctx context.Context, id string) (*model.Absence, error)
	ListOpen(ctx context.Context) ([]model.Absence, error)
	// ListOpenCovering 指定教师中在 date 当天处于 open 缺勤的记录
	ListOpenCovering(ctx context.Context, teacherIDs []string, date time.Time) ([]model.Absence, error)
	Update(ctx context.Context, absence *model.Absence) error
}

type absenceRepo struct {
	db *gorm.DB
}

func NewAbsenceRepo(db *gorm.DB) AbsenceRepository {
	return &absenceRepo{db: db}
}

func (r *absenceRepo) GetByID(ctx context.Context, id string) (*model.Absence, error) {
	var absence model.Absence
	err := r.db.WithContext(ctx).
		Preload("Teacher").
		Where("absence_id = ?", id).
		First(&absence).Error
	if err != nil {
		return nil, err
	}
	return &absence, nil
}

func (r *absenceRepo) ListOpen(ctx context.Context) ([]model.Absence, error) {
	var absences []model.Absence
	err := r.db.WithContext(ctx).
		Where("status = ?", model.AbsenceStatusOpen).
		Order("start_date ASC").
		Find(&absences).Error
	return absences, err
}

func (r *absenceRepo) ListOpenCovering(ctx context.Context, teacherIDs []string, date time.Time) ([]model.Absence, error) {
	var absences []model.Absence
	if len(teacherIDs) == 0 {
		return absences, nil
	}
	day := date.Format(dateLayout)
	err := r.db.WithContext(ctx).
		Where("teacher_id IN ? AND status = ?", teacherIDs, model.AbsenceStatusOpen).
		Where("start_date <= ? AND end_date >= ?", day, day).
		Find(&absences).Error
	return absences, err
}

func (r *absenceRepo) Update(ctx context.Context, absence *model.Absence) error {
	oldVersion := absence.Version
	result := r.db.WithContext(ctx).
		Model(&model.Absence{}).
		Where("absence_id = ? AND version = ?", absence.AbsenceID, oldVersion).
		Updates(map[string]interface{}{
			"status":      absence.Status,
			"resolved_at": absence.ResolvedAt,
			"updated_by":  absence.UpdatedBy,
			"updated_at":  time.Now(),
			"version":     oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	absence.Version = oldVersion + 1
	return nil
}
