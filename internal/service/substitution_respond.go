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

// ════════════════════════════════════════════════════════════
// Respond 候选教师回复
// ════════════════════════════════════════════════════════════
//
// 状态机：awaiting_approval → approved | declined（候选人发起）
//         awaiting_approval → cancelled（同组他人批准，或课程失效）
// 三个终态均不可再迁移。
//
// 批准：课程锁 → 事务 { 按 request_id 锁定全组行 → 读状态 → 锁定课程并复核
//       → 本请求 approved → 同组待确认 cancelled → 改派课程 → 写变更日志 } → 解锁 → 通知
// 拒绝：事务 { 仅锁定本行 → 读状态 → declined } → 通知；不影响同组其他请求

func (s *substitutionService) Respond(ctx context.Context, requestID, decision string, caller Caller) (*dto.SubstitutionRequestResponse, error) {
	if decision != DecisionApprove && decision != DecisionDecline {
		return nil, ErrInvalidDecision
	}

	req, err := s.repo.SubstitutionRequest.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		s.logger.Error("查询代课请求失败", zap.String("request_id", requestID), zap.Error(err))
		return nil, err
	}

	// 被邀请教师不可变，鉴权无需加锁，且先于状态判断
	if caller.TeacherID == "" || req.SubstituteTeacherID != caller.TeacherID {
		s.logger.Warn("非本人回复代课请求",
			zap.Bool("security_event", true),
			zap.String("request_id", requestID),
			zap.String("caller_user_id", caller.UserID),
			zap.String("caller_teacher_id", caller.TeacherID),
		)
		return nil, ErrNotRequestOwner
	}

	if decision == DecisionDecline {
		err = s.decline(ctx, req, caller)
	} else {
		err = s.approve(ctx, req, caller)
	}
	if err != nil {
		s.logRespondError(req, decision, err)
		return nil, err
	}

	resp := toRequestResponse(req)
	return &resp, nil
}

// ── 批准 ──

type approveOutcome struct {
	lesson    *model.Lesson
	cancelled []model.SubstitutionRequest // 被连带取消的同组请求
	withdrawn error                       // 课程失效时整组撤回，事务照常提交后返回该错误
}

func (s *substitutionService) approve(ctx context.Context, req *model.SubstitutionRequest, caller Caller) error {
	unlock, err := s.locker.Lock(ctx, lessonLockKey(req.LessonID))
	if err != nil {
		return err
	}
	// 事务提交即释放，通知不占用课程锁；defer 兜底 panic 与提前返回
	defer unlock()

	now := s.now()
	var out approveOutcome

	err = s.repo.Tx.InTx(ctx, func(tx *repository.Repository) error {
		out = approveOutcome{}

		// 1. 先锁全组，再读状态
		self, group, err := lockRequestRows(ctx, tx, req)
		if err != nil {
			return err
		}
		if self.IsTerminal() {
			return ErrRequestStale
		}

		// 2. 锁定课程并复核
		lesson, err := tx.Lesson.GetByIDForUpdate(ctx, self.LessonID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			out.withdrawn = ErrLessonGone
		case err != nil:
			return err
		case lesson.Status != model.LessonStatusScheduled:
			out.withdrawn = ErrLessonGone
		case lesson.TeacherID != self.OriginalTeacherID:
			out.withdrawn = ErrLessonAlreadyCovered
		}
		out.lesson = lesson
		if out.withdrawn != nil {
			return withdrawGroup(ctx, tx, self, group, now, caller.UserID, &out)
		}

		// 3. 代课教师不能同一时段重复占用
		start, end, err := lesson.Window()
		if err != nil {
			return err
		}
		busy, err := busyTeachers(ctx, tx, []string{caller.TeacherID}, lesson.LessonDate, start, end, lesson.LessonID)
		if err != nil {
			return err
		}
		if busy[caller.TeacherID] {
			return ErrSubstituteConflict
		}

		// 4. 状态迁移
		ok, err := tx.SubstitutionRequest.UpdateStatus(ctx, self.RequestID,
			model.RequestStatusAwaiting, model.RequestStatusApproved, now, caller.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRequestStale
		}
		if self.IsBroadcast() {
			ids, err := tx.SubstitutionRequest.CancelSiblings(ctx, *self.BroadcastGroupID, self.RequestID, now, caller.UserID)
			if err != nil {
				return err
			}
			out.cancelled = pickRequests(group, ids)
		}

		// 5. 改派课程
		originalTeacherID := lesson.TeacherID
		if err := tx.Lesson.ReassignTeacher(ctx, lesson, caller.TeacherID, caller.UserID); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return ErrLessonAlreadyCovered
			}
			return err
		}
		requestID := self.RequestID
		return tx.LessonChangeLog.Create(ctx, &model.LessonChangeLog{
			LessonID:          lesson.LessonID,
			RequestID:         &requestID,
			OriginalTeacherID: originalTeacherID,
			NewTeacherID:      caller.TeacherID,
			ChangeType:        "substitution",
			OperatorID:        caller.UserID,
			CreatedAt:         now,
		})
	})
	unlock()
	if err != nil {
		return err
	}

	if out.withdrawn != nil {
		s.logger.Info("课程已失效，代课请求整组撤回",
			zap.String("request_id", req.RequestID),
			zap.String("lesson_id", req.LessonID),
			zap.Int("withdrawn_siblings", len(out.cancelled)),
			zap.Error(out.withdrawn),
		)
		for i := range out.cancelled {
			sib := &out.cancelled[i]
			s.notifier.Notify(ctx, Message{
				Type:      NotifyRequestWithdrawn,
				Recipient: Recipient{TeacherID: sib.SubstituteTeacherID},
				Payload:   lessonPayload(out.lesson, sib),
			})
		}
		return out.withdrawn
	}

	req.Status = model.RequestStatusApproved
	req.ResolvedAt = &now
	req.Lesson = out.lesson

	s.logger.Info("代课请求已批准",
		zap.String("request_id", req.RequestID),
		zap.String("lesson_id", req.LessonID),
		zap.String("substitute_teacher_id", caller.TeacherID),
		zap.Int("cancelled_siblings", len(out.cancelled)),
	)

	// 提交后通知：确认、安排结果、落选
	payload := lessonPayload(out.lesson, req)
	if req.SubstituteTeacher != nil {
		payload.TeacherName = req.SubstituteTeacher.Name
	}
	s.notifier.Notify(ctx, Message{Type: NotifyRequestApproved, Recipient: Recipient{UserID: caller.UserID}, Payload: payload})
	s.notifier.Notify(ctx, Message{Type: NotifySubstituteAssigned, Recipient: Recipient{TeacherID: req.OriginalTeacherID}, Payload: payload})
	s.notifier.Notify(ctx, Message{Type: NotifySubstituteAssigned, Recipient: s.coordinatorOf(ctx, req.AbsenceID), Payload: payload})
	for i := range out.cancelled {
		sib := &out.cancelled[i]
		s.notifier.Notify(ctx, Message{
			Type:      NotifyRequestLostRace,
			Recipient: Recipient{TeacherID: sib.SubstituteTeacherID},
			Payload:   lessonPayload(out.lesson, sib),
		})
	}
	return nil
}

// ── 拒绝 ──

func (s *substitutionService) decline(ctx context.Context, req *model.SubstitutionRequest, caller Caller) error {
	now := s.now()
	err := s.repo.Tx.InTx(ctx, func(tx *repository.Repository) error {
		self, err := tx.SubstitutionRequest.GetByIDForUpdate(ctx, req.RequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if self.IsTerminal() {
			return ErrRequestStale
		}
		ok, err := tx.SubstitutionRequest.UpdateStatus(ctx, self.RequestID,
			model.RequestStatusAwaiting, model.RequestStatusDeclined, now, caller.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRequestStale
		}
		return nil
	})
	if err != nil {
		return err
	}

	req.Status = model.RequestStatusDeclined
	req.ResolvedAt = &now

	s.logger.Info("代课请求已拒绝",
		zap.String("request_id", req.RequestID),
		zap.String("substitute_teacher_id", caller.TeacherID),
	)

	payload := lessonPayload(req.Lesson, req)
	if req.SubstituteTeacher != nil {
		payload.TeacherName = req.SubstituteTeacher.Name
	}
	s.notifier.Notify(ctx, Message{Type: NotifyRequestDeclinedAck, Recipient: Recipient{UserID: caller.UserID}, Payload: payload})
	s.notifier.Notify(ctx, Message{Type: NotifyCandidateDeclined, Recipient: Recipient{TeacherID: req.OriginalTeacherID}, Payload: payload})
	s.notifier.Notify(ctx, Message{Type: NotifyCandidateDeclined, Recipient: s.coordinatorOf(ctx, req.AbsenceID), Payload: payload})
	return nil
}

// ── 辅助函数 ──

// lockRequestRows 单人请求只锁本行；广播请求按 request_id 顺序锁全组
func lockRequestRows(ctx context.Context, tx *repository.Repository, req *model.SubstitutionRequest) (*model.SubstitutionRequest, []model.SubstitutionRequest, error) {
	if !req.IsBroadcast() {
		self, err := tx.SubstitutionRequest.GetByIDForUpdate(ctx, req.RequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, ErrRequestNotFound
			}
			return nil, nil, err
		}
		return self, nil, nil
	}

	rows, err := tx.SubstitutionRequest.ListByGroupForUpdate(ctx, *req.BroadcastGroupID)
	if err != nil {
		return nil, nil, err
	}
	for i := range rows {
		if rows[i].RequestID == req.RequestID {
			return &rows[i], rows, nil
		}
	}
	return nil, nil, ErrRequestNotFound
}

// withdrawGroup 课程已失效：本请求与同组待确认请求一并置为 cancelled
func withdrawGroup(ctx context.Context, tx *repository.Repository, self *model.SubstitutionRequest, group []model.SubstitutionRequest, now time.Time, operatorID string, out *approveOutcome) error {
	if _, err := tx.SubstitutionRequest.UpdateStatus(ctx, self.RequestID,
		model.RequestStatusAwaiting, model.RequestStatusCancelled, now, operatorID); err != nil {
		return err
	}
	if !self.IsBroadcast() {
		return nil
	}
	ids, err := tx.SubstitutionRequest.CancelSiblings(ctx, *self.BroadcastGroupID, self.RequestID, now, operatorID)
	if err != nil {
		return err
	}
	out.cancelled = pickRequests(group, ids)
	return nil
}

func pickRequests(group []model.SubstitutionRequest, ids []string) []model.SubstitutionRequest {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	picked := make([]model.SubstitutionRequest, 0, len(ids))
	for _, r := range group {
		if want[r.RequestID] {
			picked = append(picked, r)
		}
	}
	return picked
}

// coordinatorOf 缺勤登记人；未记录登记人时通知全部管理员
func (s *substitutionService) coordinatorOf(ctx context.Context, absenceID string) Recipient {
	absence, err := s.repo.Absence.GetByID(ctx, absenceID)
	if err != nil {
		s.logger.Warn("查询缺勤登记人失败，改为通知全部管理员", zap.String("absence_id", absenceID), zap.Error(err))
		return Recipient{Role: model.RoleAdmin}
	}
	if absence.CreatedBy == nil || *absence.CreatedBy == "" {
		return Recipient{Role: model.RoleAdmin}
	}
	return Recipient{UserID: *absence.CreatedBy}
}

func (s *substitutionService) logRespondError(req *model.SubstitutionRequest, decision string, err error) {
	fields := []zap.Field{
		zap.String("request_id", req.RequestID),
		zap.String("decision", decision),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, pkgerrors.ErrStale):
		// 抢单落败或重复提交属于正常结果
		s.logger.Info("代课请求已失效", fields...)
	case errors.Is(err, pkgerrors.ErrValidation),
		errors.Is(err, pkgerrors.ErrNotFound),
		errors.Is(err, pkgerrors.ErrConflict):
		s.logger.Info("代课回复被拒绝", fields...)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("代课回复被取消", fields...)
	default:
		s.logger.Error("处理代课回复失败", fields...)
	}
}
