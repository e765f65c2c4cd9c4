package model

import "time"

// 课程状态
const (
	LessonStatusScheduled = "scheduled"
	LessonStatusCompleted = "completed"
	LessonStatusCancelled = "cancelled"
)

// Lesson 课程表，对应 lessons
// 课程的增删改归课程管理模块；本模块只在代课批准时改写 TeacherID
type Lesson struct {
	LessonID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"lesson_id"`
	TeacherID  string    `gorm:"type:uuid;not null"                             json:"teacher_id"`
	StudentID  string    `gorm:"type:uuid;not null"                             json:"student_id"`
	RoomID     string    `gorm:"type:uuid;not null"                             json:"room_id"`
	Instrument string    `gorm:"type:varchar(50);not null"                      json:"instrument"`
	LessonDate time.Time `gorm:"type:date;not null"                             json:"lesson_date"`
	StartTime  string    `gorm:"type:time;not null"                             json:"start_time"`
	EndTime    string    `gorm:"type:time;not null"                             json:"end_time"`
	Status     string    `gorm:"type:varchar(20);not null;default:'scheduled'"  json:"status"` // scheduled | completed | cancelled
	VersionedModel

	// 关联
	Teacher *Teacher `gorm:"foreignKey:TeacherID;references:TeacherID" json:"teacher,omitempty"`
}

// TableName 指定表名
func (Lesson) TableName() string { return "lessons" }

// Window 返回课程的 [start,end) 分钟区间
func (l *Lesson) Window() (int, int, error) {
	start, err := ClockMinutes(l.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err := ClockMinutes(l.EndTime)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// LessonChangeLog 课程变更记录表，对应 lesson_change_logs（纯审计日志）
type LessonChangeLog struct {
	ChangeLogID       string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"change_log_id"`
	LessonID          string    `gorm:"type:uuid;not null"                             json:"lesson_id"`
	RequestID         *string   `gorm:"type:uuid"                                      json:"request_id,omitempty"`
	OriginalTeacherID string    `gorm:"type:uuid;not null"                             json:"original_teacher_id"`
	NewTeacherID      string    `gorm:"type:uuid;not null"                             json:"new_teacher_id"`
	ChangeType        string    `gorm:"type:varchar(20);not null"                      json:"change_type"` // substitution | admin_modify
	Reason            string    `gorm:"type:varchar(500)"                              json:"reason,omitempty"`
	OperatorID        string    `gorm:"type:uuid;not null"                             json:"operator_id"`
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (LessonChangeLog) TableName() string { return "lesson_change_logs" }
