package model

import "time"

// 代课请求状态；除 awaiting_approval 外均为终态，终态不可再迁移
const (
	RequestStatusAwaiting  = "awaiting_approval"
	RequestStatusApproved  = "approved"
	RequestStatusDeclined  = "declined"
	RequestStatusCancelled = "cancelled"
)

// SubstitutionRequest 代课请求表，对应 substitution_requests
// BroadcastGroupID 为空表示单人请求；非空时同组请求指向同一课程
type SubstitutionRequest struct {
	RequestID           string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"        json:"request_id"`
	AbsenceID           string     `gorm:"type:uuid;not null"                                    json:"absence_id"`
	LessonID            string     `gorm:"type:uuid;not null"                                    json:"lesson_id"`
	OriginalTeacherID   string     `gorm:"type:uuid;not null"                                    json:"original_teacher_id"`
	SubstituteTeacherID string     `gorm:"type:uuid;not null"                                    json:"substitute_teacher_id"`
	StudentID           string     `gorm:"type:uuid;not null"                                    json:"student_id"`
	RoomID              string     `gorm:"type:uuid;not null"                                    json:"room_id"`
	BroadcastGroupID    *string    `gorm:"type:uuid"                                             json:"broadcast_group_id"`
	Status              string     `gorm:"type:varchar(20);not null;default:'awaiting_approval'" json:"status"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty"`
	BaseModel

	// 关联
	Lesson            *Lesson  `gorm:"foreignKey:LessonID;references:LessonID"                       json:"lesson,omitempty"`
	SubstituteTeacher *Teacher `gorm:"foreignKey:SubstituteTeacherID;references:TeacherID"           json:"substitute_teacher,omitempty"`
}

// TableName 指定表名
func (SubstitutionRequest) TableName() string { return "substitution_requests" }

// IsTerminal 是否已离开 awaiting_approval
func (r *SubstitutionRequest) IsTerminal() bool {
	return r.Status != RequestStatusAwaiting
}

// IsBroadcast 是否属于广播组
func (r *SubstitutionRequest) IsBroadcast() bool {
	return r.BroadcastGroupID != nil && *r.BroadcastGroupID != ""
}
