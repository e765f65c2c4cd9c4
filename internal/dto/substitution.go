package dto

// ── 代课请求模块 DTO ──

// CreateSubstitutionRequest 发起代课请求
// substitute_teacher_ids 为空时由业务层返回专门的校验错误
type CreateSubstitutionRequest struct {
	AbsenceID            string   `json:"absence_id"             binding:"required,uuid"`
	LessonIDs            []string `json:"lesson_ids"             binding:"required,min=1,dive,uuid"`
	SubstituteTeacherIDs []string `json:"substitute_teacher_ids" binding:"dive,uuid"`
	BroadcastMode        bool     `json:"broadcast_mode"`
}

// ListSubstitutionRequest 代课请求列表查询参数
type ListSubstitutionRequest struct {
	AbsenceID string `form:"absence_id" binding:"omitempty,uuid"`
	Status    string `form:"status"     binding:"omitempty,oneof=awaiting_approval approved declined cancelled"`
}

// ExportSubstitutionRequest 导出参数
type ExportSubstitutionRequest struct {
	AbsenceID string `form:"absence_id" binding:"required,uuid"`
}

// RespondRequest 候选教师回复
type RespondRequest struct {
	Response string `json:"response" binding:"required,decision"`
}

// ── 响应 ──

// SubstitutionRequestResponse 代课请求响应
type SubstitutionRequestResponse struct {
	ID                  string        `json:"id"`
	AbsenceID           string        `json:"absence_id"`
	LessonID            string        `json:"lesson_id"`
	OriginalTeacherID   string        `json:"original_teacher_id"`
	SubstituteTeacherID string        `json:"substitute_teacher_id"`
	StudentID           string        `json:"student_id"`
	RoomID              string        `json:"room_id"`
	BroadcastGroupID    *string       `json:"broadcast_group_id"`
	Status              string        `json:"status"`
	SubstituteTeacher   *TeacherBrief `json:"substitute_teacher,omitempty"`
	Lesson              *LessonBrief  `json:"lesson,omitempty"`
	CreatedAt           string        `json:"created_at"`
	ResolvedAt          *string       `json:"resolved_at,omitempty"`
}

// CreateSubstitutionResponse 发起代课请求响应
type CreateSubstitutionResponse struct {
	Requests      []SubstitutionRequestResponse `json:"requests"`
	BroadcastMode bool                          `json:"broadcast_mode"` // 实际是否广播
}
