package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cadenza/backend/internal/dto"
	"cadenza/backend/internal/model"
	"cadenza/backend/internal/repository"
	pkgerrors "cadenza/backend/pkg/errors"
)

// AbsenceService 缺勤查询与收尾
// 缺勤的创建归管理后台，这里只读取并在代课全部结束后标记 resolved
type AbsenceService interface {
	Get(ctx context.Context, id string) (*dto.AbsenceResponse, error)
	// SweepResolved 将已有代课请求且全部进入终态的 open 缺勤标记为 resolved，返回处理条数
	SweepResolved(ctx context.Context) (int, error)
}

type absenceService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewAbsenceService 创建 AbsenceService 实例
func NewAbsenceService(repo *repository.Repository, logger *zap.Logger) AbsenceService {
	return &absenceService{repo: repo, logger: logger, now: time.Now}
}

func (s *absenceService) Get(ctx context.Context, id string) (*dto.AbsenceResponse, error) {
	absence, err := s.repo.Absence.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAbsenceNotFound
		}
		s.logger.Error("查询缺勤失败", zap.String("absence_id", id), zap.Error(err))
		return nil, err
	}

	lessons, err := s.repo.Lesson.ListAffected(ctx, absence.TeacherID, absence.StartDate, absence.EndDate)
	if err != nil {
		s.logger.Error("查询受影响课程失败", zap.String("absence_id", id), zap.Error(err))
		return nil, err
	}
	progress, err := s.repo.SubstitutionRequest.Progress(ctx, id)
	if err != nil {
		s.logger.Error("统计代课进度失败", zap.String("absence_id", id), zap.Error(err))
		return nil, err
	}

	resp := &dto.AbsenceResponse{
		ID:              absence.AbsenceID,
		Teacher:         dto.TeacherBrief{ID: absence.TeacherID},
		StartDate:       absence.StartDate.Format(dateLayout),
		EndDate:         absence.EndDate.Format(dateLayout),
		Reason:          absence.Reason,
		Status:          absence.Status,
		AffectedLessons: make([]dto.LessonBrief, 0, len(lessons)),
		Progress: dto.AbsenceProgress{
			Total:    progress.Total,
			Awaiting: progress.Awaiting,
			Approved: progress.Approved,
		},
	}
	if absence.Teacher != nil {
		resp.Teacher.Name = absence.Teacher.Name
	}
	if absence.ResolvedAt != nil {
		t := absence.ResolvedAt.Format(time.RFC3339)
		resp.ResolvedAt = &t
	}
	for i := range lessons {
		resp.AffectedLessons = append(resp.AffectedLessons, toLessonBrief(&lessons[i]))
	}
	return resp, nil
}

func (s *absenceService) SweepResolved(ctx context.Context) (int, error) {
	absences, err := s.repo.Absence.ListOpen(ctx)
	if err != nil {
		s.logger.Error("查询进行中的缺勤失败", zap.Error(err))
		return 0, err
	}

	resolved := 0
	for i := range absences {
		a := &absences[i]
		progress, err := s.repo.SubstitutionRequest.Progress(ctx, a.AbsenceID)
		if err != nil {
			s.logger.Warn("统计代课进度失败", zap.String("absence_id", a.AbsenceID), zap.Error(err))
			continue
		}
		if progress.Total == 0 || progress.Awaiting > 0 {
			continue
		}

		now := s.now()
		a.Status = model.AbsenceStatusResolved
		a.ResolvedAt = &now
		if err := s.repo.Absence.Update(ctx, a); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				s.logger.Info("缺勤已被并发修改，跳过", zap.String("absence_id", a.AbsenceID))
				continue
			}
			s.logger.Error("标记缺勤已解决失败", zap.String("absence_id", a.AbsenceID), zap.Error(err))
			continue
		}
		resolved++
	}

	if resolved > 0 {
		s.logger.Info("缺勤收尾完成", zap.Int("resolved", resolved))
	}
	return resolved, nil
}
