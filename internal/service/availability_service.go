package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"cadenza/backend/internal/dto"
	"cadenza/backend/internal/model"
	"cadenza/backend/internal/repository"
)

// AvailabilityService 代课教师可用性查询
type AvailabilityService interface {
	// FindSubstitutes 返回会该乐器、该时段空闲、在职且非原教师的教师
	// 按已完成课时升序排列；无人可用时返回空列表
	FindSubstitutes(ctx context.Context, req *dto.FindSubstitutesRequest) (*dto.FindSubstitutesResponse, error)
}

type availabilityService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAvailabilityService 创建 AvailabilityService 实例
func NewAvailabilityService(repo *repository.Repository, logger *zap.Logger) AvailabilityService {
	return &availabilityService{repo: repo, logger: logger}
}

func (s *availabilityService) FindSubstitutes(ctx context.Context, req *dto.FindSubstitutesRequest) (*dto.FindSubstitutesResponse, error) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, ErrInvalidDate
	}
	start, end, err := parseWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	// 1. 会该乐器的在职教师
	teachers, err := s.repo.Teacher.ListActiveByInstrument(ctx, req.Instrument)
	if err != nil {
		s.logger.Error("查询乐器教师失败", zap.String("instrument", req.Instrument), zap.Error(err))
		return nil, err
	}

	candidates := make([]model.Teacher, 0, len(teachers))
	for _, t := range teachers {
		if t.TeacherID == req.OriginalTeacherID || !t.IsActive || !t.Teaches(req.Instrument) {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return &dto.FindSubstitutesResponse{AvailableTeachers: []dto.AvailableTeacherResponse{}}, nil
	}
	ids := teacherIDs(candidates)

	// 2. 当天时间冲突
	busy, err := busyTeachers(ctx, s.repo, ids, date, start, end, "")
	if err != nil {
		s.logger.Error("查询教师当日课程失败", zap.Error(err))
		return nil, err
	}

	// 3. 当天本人也在缺勤中
	absences, err := s.repo.Absence.ListOpenCovering(ctx, ids, date)
	if err != nil {
		s.logger.Error("查询教师缺勤失败", zap.Error(err))
		return nil, err
	}
	for _, a := range absences {
		busy[a.TeacherID] = true
	}

	free := candidates[:0]
	for _, t := range candidates {
		if !busy[t.TeacherID] {
			free = append(free, t)
		}
	}

	// 4. 负载均衡排序
	counts, err := s.repo.Teacher.CountCompletedLessons(ctx, teacherIDs(free))
	if err != nil {
		s.logger.Error("统计已完成课时失败", zap.Error(err))
		return nil, err
	}
	sort.SliceStable(free, func(i, j int) bool {
		ci, cj := counts[free[i].TeacherID], counts[free[j].TeacherID]
		if ci != cj {
			return ci < cj
		}
		if free[i].Name != free[j].Name {
			return free[i].Name < free[j].Name
		}
		return free[i].TeacherID < free[j].TeacherID
	})

	result := make([]dto.AvailableTeacherResponse, 0, len(free))
	for _, t := range free {
		result = append(result, dto.AvailableTeacherResponse{
			ID:               t.TeacherID,
			Name:             t.Name,
			Instruments:      []string(t.Instruments),
			CompletedLessons: counts[t.TeacherID],
		})
	}

	s.logger.Debug("代课候选查询完成",
		zap.String("instrument", req.Instrument),
		zap.String("date", req.Date),
		zap.Int("qualified", len(candidates)),
		zap.Int("available", len(result)),
	)
	return &dto.FindSubstitutesResponse{AvailableTeachers: result}, nil
}

// ── 辅助函数 ──

const dateLayout = "2006-01-02"

func parseWindow(startTime, endTime string) (int, int, error) {
	start, err := model.ClockMinutes(startTime)
	if err != nil {
		return 0, 0, ErrInvalidTimeRange
	}
	end, err := model.ClockMinutes(endTime)
	if err != nil {
		return 0, 0, ErrInvalidTimeRange
	}
	if start >= end {
		return 0, 0, ErrInvalidTimeRange
	}
	return start, end, nil
}

// busyTeachers 返回在 date 当天 [start,end) 内已有课程的教师集合，skipLessonID 不参与判断
func busyTeachers(ctx context.Context, repo *repository.Repository, ids []string, date time.Time, start, end int, skipLessonID string) (map[string]bool, error) {
	lessons, err := repo.Lesson.ListBusyOnDate(ctx, ids, date)
	if err != nil {
		return nil, err
	}
	busy := make(map[string]bool)
	for i := range lessons {
		l := &lessons[i]
		if l.LessonID == skipLessonID {
			continue
		}
		ls, le, err := l.Window()
		if err != nil {
			continue
		}
		if model.Overlaps(start, end, ls, le) {
			busy[l.TeacherID] = true
		}
	}
	return busy, nil
}

func teacherIDs(teachers []model.Teacher) []string {
	ids := make([]string, 0, len(teachers))
	for _, t := range teachers {
		ids = append(ids, t.TeacherID)
	}
	return ids
}
