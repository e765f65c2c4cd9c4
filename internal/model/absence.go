package model

import "time"

// 缺勤状态
const (
	AbsenceStatusOpen      = "open"
	AbsenceStatusResolved  = "resolved"
	AbsenceStatusCancelled = "cancelled"
)

// Absence 教师缺勤表，对应 absences（由管理员创建）
type Absence struct {
	AbsenceID  string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"absence_id"`
	TeacherID  string     `gorm:"type:uuid;not null"                             json:"teacher_id"`
	StartDate  time.Time  `gorm:"type:date;not null"                             json:"start_date"`
	EndDate    time.Time  `gorm:"type:date;not null"                             json:"end_date"`
	Reason     string     `gorm:"type:varchar(500)"                              json:"reason,omitempty"`
	Status     string     `gorm:"type:varchar(20);not null;default:'open'"       json:"status"` // open | resolved | cancelled
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	VersionedModel

	// 关联
	Teacher *Teacher `gorm:"foreignKey:TeacherID;references:TeacherID" json:"teacher,omitempty"`
}

// TableName 指定表名
func (Absence) TableName() string { return "absences" }

// Covers 课程日期是否落在缺勤区间内（闭区间）
func (a *Absence) Covers(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(a.StartDate)) && !d.After(DateOnly(a.EndDate))
}

// Affects 课程是否为该缺勤的受影响课程：原教师、区间内、仍为 scheduled
func (a *Absence) Affects(l *Lesson) bool {
	return l.TeacherID == a.TeacherID && l.Status == LessonStatusScheduled && a.Covers(l.LessonDate)
}
