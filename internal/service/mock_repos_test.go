package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"cadenza/backend/internal/model"
	"cadenza/backend/internal/repository"
	pkgerrors "cadenza/backend/pkg/errors"
)

// ── 内存数据源 ──
// 所有 mock repo 共用一个 memStore；mockTransactor 串行执行事务，出错时回滚到快照

type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users         map[string]*model.User
	teachers      map[string]*model.Teacher
	lessons       map[string]*model.Lesson
	absences      map[string]*model.Absence
	requests      map[string]*model.SubstitutionRequest
	changeLogs    []model.LessonChangeLog
	notifications map[string]*model.Notification
	prefs         map[string]*model.NotificationPreference
	seq           int

	batchCreateErr error
	// notificationGate 非 nil 时写通知会阻塞到它被关闭，用于模拟慢库
	notificationGate chan struct{}
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[string]*model.User),
		teachers:      make(map[string]*model.Teacher),
		lessons:       make(map[string]*model.Lesson),
		absences:      make(map[string]*model.Absence),
		requests:      make(map[string]*model.SubstitutionRequest),
		notifications: make(map[string]*model.Notification),
		prefs:         make(map[string]*model.NotificationPreference),
	}
}

func (s *memStore) toRepository() *repository.Repository {
	return &repository.Repository{
		User:                &mockUserRepo{s},
		Teacher:             &mockTeacherRepo{s},
		Lesson:              &mockLessonRepo{s},
		Absence:             &mockAbsenceRepo{s},
		SubstitutionRequest: &mockRequestRepo{s},
		LessonChangeLog:     &mockChangeLogRepo{s},
		Notification:        &mockNotificationRepo{s},
		Tx:                  &mockTransactor{s},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%04d", prefix, s.seq)
}

type snapshot struct {
	lessons    map[string]model.Lesson
	absences   map[string]model.Absence
	requests   map[string]model.SubstitutionRequest
	changeLogs []model.LessonChangeLog
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		lessons:    make(map[string]model.Lesson, len(s.lessons)),
		absences:   make(map[string]model.Absence, len(s.absences)),
		requests:   make(map[string]model.SubstitutionRequest, len(s.requests)),
		changeLogs: append([]model.LessonChangeLog(nil), s.changeLogs...),
	}
	for k, v := range s.lessons {
		snap.lessons[k] = *v
	}
	for k, v := range s.absences {
		snap.absences[k] = *v
	}
	for k, v := range s.requests {
		snap.requests[k] = *v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons = make(map[string]*model.Lesson, len(snap.lessons))
	for k, v := range snap.lessons {
		v := v
		s.lessons[k] = &v
	}
	s.absences = make(map[string]*model.Absence, len(snap.absences))
	for k, v := range snap.absences {
		v := v
		s.absences[k] = &v
	}
	s.requests = make(map[string]*model.SubstitutionRequest, len(snap.requests))
	for k, v := range snap.requests {
		v := v
		s.requests[k] = &v
	}
	s.changeLogs = snap.changeLogs
}

// ── Mock Transactor ──

type mockTransactor struct{ s *memStore }

func (m *mockTransactor) InTx(_ context.Context, fn func(tx *repository.Repository) error) error {
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	snap := m.s.snapshot()
	if err := fn(m.s.toRepository()); err != nil {
		m.s.restore(snap)
		return err
	}
	return nil
}

// ── Mock UserRepository ──

type mockUserRepo struct{ s *memStore }

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if u, ok := m.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByTeacherID(_ context.Context, teacherID string) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.teachers[teacherID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if u, ok := m.s.users[t.UserID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByRole(_ context.Context, role string) ([]model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.User
	for _, u := range m.s.users {
		if u.Role == role {
			result = append(result, *u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

// ── Mock TeacherRepository ──

type mockTeacherRepo struct{ s *memStore }

func (m *mockTeacherRepo) GetByID(_ context.Context, id string) (*model.Teacher, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if t, ok := m.s.teachers[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTeacherRepo) ListByIDs(_ context.Context, ids []string) ([]model.Teacher, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Teacher
	for _, id := range ids {
		if t, ok := m.s.teachers[id]; ok {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (m *mockTeacherRepo) ListActiveByInstrument(_ context.Context, instrument string) ([]model.Teacher, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Teacher
	for _, t := range m.s.teachers {
		if t.IsActive && t.Teaches(instrument) {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TeacherID < result[j].TeacherID })
	return result, nil
}

func (m *mockTeacherRepo) CountCompletedLessons(_ context.Context, teacherIDs []string) (map[string]int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	want := make(map[string]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		want[id] = true
	}
	counts := make(map[string]int64)
	for _, l := range m.s.lessons {
		if want[l.TeacherID] && l.Status == model.LessonStatusCompleted {
			counts[l.TeacherID]++
		}
	}
	return counts, nil
}

// ── Mock LessonRepository ──

type mockLessonRepo struct{ s *memStore }

func (m *mockLessonRepo) GetByID(_ context.Context, id string) (*model.Lesson, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if l, ok := m.s.lessons[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockLessonRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Lesson, error) {
	return m.GetByID(ctx, id)
}

func (m *mockLessonRepo) ListByIDs(_ context.Context, ids []string) ([]model.Lesson, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Lesson
	for _, id := range ids {
		if l, ok := m.s.lessons[id]; ok {
			result = append(result, *l)
		}
	}
	return result, nil
}

func (m *mockLessonRepo) ListAffected(_ context.Context, teacherID string, from, to time.Time) ([]model.Lesson, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Lesson
	for _, l := range m.s.lessons {
		d := model.DateOnly(l.LessonDate)
		if l.TeacherID == teacherID && l.Status == model.LessonStatusScheduled &&
			!d.Before(model.DateOnly(from)) && !d.After(model.DateOnly(to)) {
			result = append(result, *l)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LessonID < result[j].LessonID })
	return result, nil
}

func (m *mockLessonRepo) ListBusyOnDate(_ context.Context, teacherIDs []string, date time.Time) ([]model.Lesson, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	want := make(map[string]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		want[id] = true
	}
	var result []model.Lesson
	for _, l := range m.s.lessons {
		if want[l.TeacherID] && model.DateOnly(l.LessonDate).Equal(model.DateOnly(date)) &&
			l.Status != model.LessonStatusCancelled {
			result = append(result, *l)
		}
	}
	return result, nil
}

func (m *mockLessonRepo) ReassignTeacher(_ context.Context, lesson *model.Lesson, teacherID, operatorID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.lessons[lesson.LessonID]
	if !ok || stored.Version != lesson.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.TeacherID = teacherID
	stored.UpdatedBy = &operatorID
	stored.Version++
	lesson.TeacherID = teacherID
	lesson.Version = stored.Version
	return nil
}

// ── Mock AbsenceRepository ──

type mockAbsenceRepo struct{ s *memStore }

func (m *mockAbsenceRepo) GetByID(_ context.Context, id string) (*model.Absence, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if a, ok := m.s.absences[id]; ok {
		cp := *a
		if t, ok := m.s.teachers[a.TeacherID]; ok {
			tc := *t
			cp.Teacher = &tc
		}
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAbsenceRepo) ListOpen(_ context.Context) ([]model.Absence, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Absence
	for _, a := range m.s.absences {
		if a.Status == model.AbsenceStatusOpen {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AbsenceID < result[j].AbsenceID })
	return result, nil
}

func (m *mockAbsenceRepo) ListOpenCovering(_ context.Context, teacherIDs []string, date time.Time) ([]model.Absence, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	want := make(map[string]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		want[id] = true
	}
	var result []model.Absence
	for _, a := range m.s.absences {
		if want[a.TeacherID] && a.Status == model.AbsenceStatusOpen && a.Covers(date) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAbsenceRepo) Update(_ context.Context, absence *model.Absence) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.absences[absence.AbsenceID]
	if !ok || stored.Version != absence.Version {
		return pkgerrors.ErrOptimisticLock
	}
	absence.Version++
	cp := *absence
	cp.Teacher = nil
	m.s.absences[absence.AbsenceID] = &cp
	return nil
}

// ── Mock SubstitutionRequestRepository ──

type mockRequestRepo struct{ s *memStore }

func (m *mockRequestRepo) BatchCreate(_ context.Context, requests []model.SubstitutionRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.batchCreateErr != nil {
		return m.s.batchCreateErr
	}
	for i := range requests {
		if requests[i].RequestID == "" {
			requests[i].RequestID = m.s.nextID("req")
		}
		cp := requests[i]
		cp.Lesson = nil
		cp.SubstituteTeacher = nil
		m.s.requests[cp.RequestID] = &cp
	}
	return nil
}

// withRelations 模拟 Preload；调用方需持有 mu
func (m *mockRequestRepo) withRelations(r *model.SubstitutionRequest) model.SubstitutionRequest {
	cp := *r
	if l, ok := m.s.lessons[r.LessonID]; ok {
		lc := *l
		cp.Lesson = &lc
	}
	if t, ok := m.s.teachers[r.SubstituteTeacherID]; ok {
		tc := *t
		cp.SubstituteTeacher = &tc
	}
	return cp
}

func (m *mockRequestRepo) GetByID(_ context.Context, id string) (*model.SubstitutionRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if r, ok := m.s.requests[id]; ok {
		cp := m.withRelations(r)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRequestRepo) GetByIDForUpdate(_ context.Context, id string) (*model.SubstitutionRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if r, ok := m.s.requests[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRequestRepo) ListByGroupForUpdate(_ context.Context, groupID string) ([]model.SubstitutionRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.SubstitutionRequest
	for _, r := range m.s.requests {
		if r.BroadcastGroupID != nil && *r.BroadcastGroupID == groupID {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RequestID < result[j].RequestID })
	return result, nil
}

func (m *mockRequestRepo) List(_ context.Context, filter repository.RequestFilter) ([]model.SubstitutionRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.SubstitutionRequest
	for _, r := range m.s.requests {
		if filter.AbsenceID != "" && r.AbsenceID != filter.AbsenceID {
			continue
		}
		if filter.SubstituteTeacherID != "" && r.SubstituteTeacherID != filter.SubstituteTeacherID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		result = append(result, m.withRelations(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RequestID < result[j].RequestID })
	return result, nil
}

func (m *mockRequestRepo) UpdateStatus(_ context.Context, id, from, to string, at time.Time, operatorID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.requests[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	r.ResolvedAt = &at
	r.UpdatedAt = at
	r.UpdatedBy = &operatorID
	return true, nil
}

func (m *mockRequestRepo) CancelSiblings(_ context.Context, groupID, exceptID string, at time.Time, operatorID string) ([]string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var ids []string
	for _, r := range m.s.requests {
		if r.BroadcastGroupID == nil || *r.BroadcastGroupID != groupID || r.RequestID == exceptID {
			continue
		}
		if r.Status != model.RequestStatusAwaiting {
			continue
		}
		r.Status = model.RequestStatusCancelled
		r.ResolvedAt = &at
		r.UpdatedAt = at
		r.UpdatedBy = &operatorID
		ids = append(ids, r.RequestID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockRequestRepo) Progress(_ context.Context, absenceID string) (*repository.RequestProgress, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var p repository.RequestProgress
	for _, r := range m.s.requests {
		if r.AbsenceID != absenceID {
			continue
		}
		p.Total++
		switch r.Status {
		case model.RequestStatusAwaiting:
			p.Awaiting++
		case model.RequestStatusApproved:
			p.Approved++
		}
	}
	return &p, nil
}

// ── Mock LessonChangeLogRepository ──

type mockChangeLogRepo struct{ s *memStore }

func (m *mockChangeLogRepo) Create(_ context.Context, log *model.LessonChangeLog) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if log.ChangeLogID == "" {
		log.ChangeLogID = m.s.nextID("log")
	}
	m.s.changeLogs = append(m.s.changeLogs, *log)
	return nil
}

func (m *mockChangeLogRepo) ListByLesson(_ context.Context, lessonID string) ([]model.LessonChangeLog, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.LessonChangeLog
	for _, l := range m.s.changeLogs {
		if l.LessonID == lessonID {
			result = append(result, l)
		}
	}
	return result, nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct{ s *memStore }

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	m.s.mu.Lock()
	gate := m.s.notificationGate
	m.s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if n.NotificationID == "" {
		n.NotificationID = m.s.nextID("ntf")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	cp := *n
	m.s.notifications[n.NotificationID] = &cp
	return nil
}

func (m *mockNotificationRepo) GetByID(_ context.Context, id string) (*model.Notification, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if n, ok := m.s.notifications[id]; ok {
		cp := *n
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockNotificationRepo) UpdateDelivery(_ context.Context, n *model.Notification) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.notifications[n.NotificationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.DeliveryStatus = n.DeliveryStatus
	stored.Attempts = n.Attempts
	stored.LastError = n.LastError
	stored.DeliveredAt = n.DeliveredAt
	return nil
}

func (m *mockNotificationRepo) ListRetryable(_ context.Context, maxAttempts, limit int) ([]model.Notification, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Notification
	for _, n := range m.s.notifications {
		if n.DeliveryStatus == model.DeliveryFailed && n.Attempts < maxAttempts {
			result = append(result, *n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].NotificationID < result[j].NotificationID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []model.Notification
	for _, n := range m.s.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		all = append(all, *n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].NotificationID > all[j].NotificationID })
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Notification{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id, userID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n, ok := m.s.notifications[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	n.IsRead = true
	return true, nil
}

func (m *mockNotificationRepo) GetPreference(_ context.Context, userID string) (*model.NotificationPreference, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p, ok := m.s.prefs[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return &model.NotificationPreference{UserID: userID, SubstitutionNotification: true, TelegramEnabled: true}, nil
}

// ── 记录型 Notifier ──

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recordingNotifier) Notify(_ context.Context, msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingNotifier) byType(t string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.msgs {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}
