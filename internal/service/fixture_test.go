package service

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"cadenza/backend/internal/model"
)

// ── 测试数据 ──
// t-0 缺勤（3/1 ~ 3/3），名下 l-1（3/2 10:00-11:00 钢琴）与 l-2（3/3 14:00-15:00 钢琴）
// t-1 / t-2 / t-3 会钢琴，t-3 同时会小提琴；t-9 已停用

const (
	adminUserID = "u-admin"
	absentID    = "t-0"
	absenceID   = "a-1"
	lessonID    = "l-1"
	lesson2ID   = "l-2"
)

func day(s string) time.Time {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func userOf(teacherID string) string { return "u-" + teacherID }

func callerOf(teacherID string) Caller {
	return Caller{UserID: userOf(teacherID), Role: model.RoleTeacher, TeacherID: teacherID}
}

func adminCaller() Caller {
	return Caller{UserID: adminUserID, Role: model.RoleAdmin}
}

func newFixtureStore() *memStore {
	s := newMemStore()

	s.users[adminUserID] = &model.User{UserID: adminUserID, Name: "教务", Email: "admin@cadenza.test", Role: model.RoleAdmin}
	addTeacher(s, absentID, "周老师", true, "piano")
	addTeacher(s, "t-1", "Alice", true, "piano")
	addTeacher(s, "t-2", "Bob", true, "Piano")
	addTeacher(s, "t-3", "Carol", true, "piano", "violin")
	addTeacher(s, "t-9", "Dave", false, "piano")

	addLesson(s, lessonID, absentID, "2026-03-02", "10:00:00", "11:00:00", model.LessonStatusScheduled)
	addLesson(s, lesson2ID, absentID, "2026-03-03", "14:00:00", "15:00:00", model.LessonStatusScheduled)

	a := &model.Absence{
		AbsenceID: absenceID,
		TeacherID: absentID,
		StartDate: day("2026-03-01"),
		EndDate:   day("2026-03-03"),
		Reason:    "病假",
		Status:    model.AbsenceStatusOpen,
	}
	createdBy := adminUserID
	a.CreatedBy = &createdBy
	a.Version = 1
	s.absences[absenceID] = a
	return s
}

func addTeacher(s *memStore, id, name string, active bool, instruments ...string) {
	uid := userOf(id)
	s.users[uid] = &model.User{UserID: uid, Name: name, Email: id + "@cadenza.test", Role: model.RoleTeacher}
	t := &model.Teacher{
		TeacherID:   id,
		UserID:      uid,
		Name:        name,
		Instruments: pq.StringArray(instruments),
		IsActive:    active,
	}
	t.Version = 1
	s.teachers[id] = t
}

func addLesson(s *memStore, id, teacherID, date, start, end, status string) {
	l := &model.Lesson{
		LessonID:   id,
		TeacherID:  teacherID,
		StudentID:  "s-" + id,
		RoomID:     "r-1",
		Instrument: "piano",
		LessonDate: day(date),
		StartTime:  start,
		EndTime:    end,
		Status:     status,
	}
	l.Version = 1
	s.lessons[id] = l
}

// setupSubstitution 返回使用进程内课程锁的 SubstitutionService
func setupSubstitution(t *testing.T) (*substitutionService, *memStore, *recordingNotifier) {
	t.Helper()
	store := newFixtureStore()
	notifier := &recordingNotifier{}
	svc := NewSubstitutionService(store.toRepository(), NewLocalGroupLocker(5*time.Second), notifier, zap.NewNop()).(*substitutionService)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc, store, notifier
}

func (s *memStore) request(id string) model.SubstitutionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.requests[id]
}

func (s *memStore) lesson(id string) model.Lesson {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.lessons[id]
}

func (s *memStore) notificationsFor(userID string) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out
}
