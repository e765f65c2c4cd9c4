package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cadenza/backend/internal/model"
	"cadenza/backend/internal/repository"
)

// CalendarService 为已批准的代课生成 iCalendar 邀请
type CalendarService interface {
	// RequestInvite 仅该请求的代课教师或管理员可下载
	RequestInvite(ctx context.Context, requestID string, caller Caller) ([]byte, string, error)
}

type calendarService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例；loc 为课程时间所在时区
func NewCalendarService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) CalendarService {
	if loc == nil {
		loc = time.UTC
	}
	return &calendarService{repo: repo, loc: loc, logger: logger}
}

func (s *calendarService) RequestInvite(ctx context.Context, requestID string, caller Caller) ([]byte, string, error) {
	req, err := s.repo.SubstitutionRequest.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrRequestNotFound
		}
		s.logger.Error("查询代课请求失败", zap.String("request_id", requestID), zap.Error(err))
		return nil, "", err
	}
	if !caller.IsAdmin() && req.SubstituteTeacherID != caller.TeacherID {
		s.logger.Warn("越权下载日历邀请",
			zap.Bool("security_event", true),
			zap.String("request_id", requestID),
			zap.String("caller_user_id", caller.UserID),
		)
		return nil, "", ErrNotInviteRecipient
	}
	if req.Status != model.RequestStatusApproved {
		return nil, "", ErrRequestNotApproved
	}
	if req.Lesson == nil {
		return nil, "", ErrLessonGone
	}

	start, err := s.lessonTime(req.Lesson.LessonDate, req.Lesson.StartTime)
	if err != nil {
		return nil, "", err
	}
	end, err := s.lessonTime(req.Lesson.LessonDate, req.Lesson.EndTime)
	if err != nil {
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//cadenza//substitution//ZH")

	event := cal.AddEvent(req.RequestID + "@cadenza")
	stamp := time.Now()
	if req.ResolvedAt != nil {
		stamp = *req.ResolvedAt
	}
	event.SetDtStampTime(stamp)
	event.SetStartAt(start)
	event.SetEndAt(end)
	event.SetSummary(fmt.Sprintf("代课：%s课", req.Lesson.Instrument))
	event.SetLocation(req.RoomID)
	event.SetDescription(fmt.Sprintf("学员 %s 的%s课，原授课教师 %s。", req.StudentID, req.Lesson.Instrument, req.OriginalTeacherID))

	filename := fmt.Sprintf("substitution_%s.ics", req.Lesson.LessonDate.Format("20060102"))
	return []byte(cal.Serialize()), filename, nil
}

func (s *calendarService) lessonTime(date time.Time, clock string) (time.Time, error) {
	minutes, err := model.ClockMinutes(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, s.loc), nil
}
