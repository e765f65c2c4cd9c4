package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cadenza/backend/internal/dto"
	"cadenza/backend/internal/model"
	"cadenza/backend/internal/repository"
)

// 候选教师回复
const (
	DecisionApprove = "approve"
	DecisionDecline = "decline"
)

// SubstitutionService 代课请求业务接口
type SubstitutionService interface {
	// Create 为缺勤下的课程向候选教师发起代课请求（≥2 人且开启广播时按课程分组抢单）
	Create(ctx context.Context, req *dto.CreateSubstitutionRequest, caller Caller) (*dto.CreateSubstitutionResponse, error)
	// List 管理员按条件查询；教师只能看到发给自己的请求
	List(ctx context.Context, req *dto.ListSubstitutionRequest, caller Caller) ([]dto.SubstitutionRequestResponse, error)
	// Respond 候选教师确认或拒绝
	Respond(ctx context.Context, requestID, decision string, caller Caller) (*dto.SubstitutionRequestResponse, error)
}

type substitutionService struct {
	repo     *repository.Repository
	locker   GroupLocker
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewSubstitutionService 创建 SubstitutionService 实例
func NewSubstitutionService(repo *repository.Repository, locker GroupLocker, notifier Notifier, logger *zap.Logger) SubstitutionService {
	return &substitutionService{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// ════════════════════════════════════════════════════════════
// Create 发起代课请求
// ════════════════════════════════════════════════════════════

func (s *substitutionService) Create(ctx context.Context, req *dto.CreateSubstitutionRequest, caller Caller) (*dto.CreateSubstitutionResponse, error) {
	// 1. 缺勤
	absence, err := s.repo.Absence.GetByID(ctx, req.AbsenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAbsenceNotFound
		}
		s.logger.Error("查询缺勤失败", zap.String("absence_id", req.AbsenceID), zap.Error(err))
		return nil, err
	}
	if absence.Status != model.AbsenceStatusOpen {
		return nil, ErrAbsenceClosed
	}

	// 2. 课程：必须存在且属于该缺勤的受影响课程
	lessonIDs := dedupe(req.LessonIDs)
	if len(lessonIDs) == 0 {
		return nil, ErrEmptyLessons
	}
	lessons, err := s.repo.Lesson.ListByIDs(ctx, lessonIDs)
	if err != nil {
		s.logger.Error("查询课程失败", zap.Error(err))
		return nil, err
	}
	lessonMap := make(map[string]*model.Lesson, len(lessons))
	for i := range lessons {
		lessonMap[lessons[i].LessonID] = &lessons[i]
	}
	for _, id := range lessonIDs {
		lesson, ok := lessonMap[id]
		if !ok {
			return nil, ErrLessonNotFound
		}
		if !absence.Affects(lesson) {
			return nil, ErrLessonNotAffected
		}
	}

	// 3. 候选教师：去重后非空，且均为在职教师
	candidateIDs := dedupe(req.SubstituteTeacherIDs)
	if len(candidateIDs) == 0 {
		return nil, ErrEmptyCandidates
	}
	teachers, err := s.repo.Teacher.ListByIDs(ctx, candidateIDs)
	if err != nil {
		s.logger.Error("查询候选教师失败", zap.Error(err))
		return nil, err
	}
	teacherMap := make(map[string]*model.Teacher, len(teachers))
	for i := range teachers {
		teacherMap[teachers[i].TeacherID] = &teachers[i]
	}
	for _, id := range candidateIDs {
		t, ok := teacherMap[id]
		if !ok || !t.IsActive {
			return nil, ErrTeacherNotFound
		}
		if id == absence.TeacherID {
			return nil, ErrSubstituteIsAbsent
		}
	}

	// 4. 生成请求
	broadcast := req.BroadcastMode && len(candidateIDs) >= 2
	if !broadcast && len(candidateIDs) > 1 {
		s.logger.Info("未开启广播，仅向第一位候选教师发起请求",
			zap.String("absence_id", absence.AbsenceID),
			zap.Int("candidates", len(candidateIDs)),
		)
		candidateIDs = candidateIDs[:1]
	}

	now := s.now()
	requests := make([]model.SubstitutionRequest, 0, len(lessonIDs)*len(candidateIDs))
	for _, lessonID := range lessonIDs {
		lesson := lessonMap[lessonID]
		var groupID *string
		if broadcast {
			g := uuid.NewString()
			groupID = &g
		}
		for _, teacherID := range candidateIDs {
			requests = append(requests, model.SubstitutionRequest{
				RequestID:           uuid.NewString(),
				AbsenceID:           absence.AbsenceID,
				LessonID:            lesson.LessonID,
				OriginalTeacherID:   absence.TeacherID,
				SubstituteTeacherID: teacherID,
				StudentID:           lesson.StudentID,
				RoomID:              lesson.RoomID,
				BroadcastGroupID:    groupID,
				Status:              model.RequestStatusAwaiting,
				BaseModel: model.BaseModel{
					CreatedAt: now,
					CreatedBy: &caller.UserID,
					UpdatedAt: now,
				},
			})
		}
	}

	if err := s.repo.SubstitutionRequest.BatchCreate(ctx, requests); err != nil {
		s.logger.Error("批量创建代课请求失败", zap.String("absence_id", absence.AbsenceID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("代课请求已发起",
		zap.String("absence_id", absence.AbsenceID),
		zap.Int("lessons", len(lessonIDs)),
		zap.Int("candidates", len(candidateIDs)),
		zap.Bool("broadcast", broadcast),
		zap.String("operator", caller.UserID),
	)

	// 5. 提交后通知
	notifyType := NotifyRequestCreated
	if broadcast {
		notifyType = NotifyRequestCreatedBroadcast
	}
	result := make([]dto.SubstitutionRequestResponse, 0, len(requests))
	for i := range requests {
		r := &requests[i]
		r.Lesson = lessonMap[r.LessonID]
		r.SubstituteTeacher = teacherMap[r.SubstituteTeacherID]

		payload := lessonPayload(r.Lesson, r)
		payload.CandidateCount = len(candidateIDs)
		s.notifier.Notify(ctx, Message{
			Type:      notifyType,
			Recipient: Recipient{TeacherID: r.SubstituteTeacherID},
			Payload:   payload,
		})
		result = append(result, toRequestResponse(r))
	}

	return &dto.CreateSubstitutionResponse{Requests: result, BroadcastMode: broadcast}, nil
}

// ════════════════════════════════════════════════════════════
// List
// ════════════════════════════════════════════════════════════

func (s *substitutionService) List(ctx context.Context, req *dto.ListSubstitutionRequest, caller Caller) ([]dto.SubstitutionRequestResponse, error) {
	filter := repository.RequestFilter{AbsenceID: req.AbsenceID, Status: req.Status}
	if !caller.IsAdmin() {
		if caller.TeacherID == "" {
			return []dto.SubstitutionRequestResponse{}, nil
		}
		filter.SubstituteTeacherID = caller.TeacherID
	}

	if req.AbsenceID != "" {
		if _, err := s.repo.Absence.GetByID(ctx, req.AbsenceID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrAbsenceNotFound
			}
			s.logger.Error("查询缺勤失败", zap.String("absence_id", req.AbsenceID), zap.Error(err))
			return nil, err
		}
	}

	requests, err := s.repo.SubstitutionRequest.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询代课请求失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.SubstitutionRequestResponse, 0, len(requests))
	for i := range requests {
		result = append(result, toRequestResponse(&requests[i]))
	}
	return result, nil
}

// ── 转换与辅助 ──

func toRequestResponse(r *model.SubstitutionRequest) dto.SubstitutionRequestResponse {
	resp := dto.SubstitutionRequestResponse{
		ID:                  r.RequestID,
		AbsenceID:           r.AbsenceID,
		LessonID:            r.LessonID,
		OriginalTeacherID:   r.OriginalTeacherID,
		SubstituteTeacherID: r.SubstituteTeacherID,
		StudentID:           r.StudentID,
		RoomID:              r.RoomID,
		BroadcastGroupID:    r.BroadcastGroupID,
		Status:              r.Status,
		CreatedAt:           r.CreatedAt.Format(time.RFC3339),
	}
	if r.ResolvedAt != nil {
		t := r.ResolvedAt.Format(time.RFC3339)
		resp.ResolvedAt = &t
	}
	if r.SubstituteTeacher != nil {
		resp.SubstituteTeacher = &dto.TeacherBrief{ID: r.SubstituteTeacher.TeacherID, Name: r.SubstituteTeacher.Name}
	}
	if r.Lesson != nil {
		brief := toLessonBrief(r.Lesson)
		resp.Lesson = &brief
	}
	return resp
}

func toLessonBrief(l *model.Lesson) dto.LessonBrief {
	return dto.LessonBrief{
		ID:         l.LessonID,
		TeacherID:  l.TeacherID,
		StudentID:  l.StudentID,
		RoomID:     l.RoomID,
		Instrument: l.Instrument,
		Date:       l.LessonDate.Format(dateLayout),
		StartTime:  shortClock(l.StartTime),
		EndTime:    shortClock(l.EndTime),
		Status:     l.Status,
	}
}

// lessonPayload lesson 可能为空（课程已被删除）
func lessonPayload(l *model.Lesson, r *model.SubstitutionRequest) Payload {
	p := Payload{RequestID: r.RequestID, AbsenceID: r.AbsenceID, LessonID: r.LessonID}
	if l != nil {
		p.Instrument = l.Instrument
		p.LessonDate = l.LessonDate
		p.StartTime = l.StartTime
		p.EndTime = l.EndTime
	}
	return p
}

// dedupe 去重并保留首次出现的顺序
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
