package dto

// FindSubstitutesRequest 查询可代课教师
type FindSubstitutesRequest struct {
	Instrument        string `json:"instrument"          binding:"required,max=50"`
	Date              string `json:"date"                binding:"required,datetime=2006-01-02"`
	StartTime         string `json:"start_time"          binding:"required,hhmm"`
	EndTime           string `json:"end_time"            binding:"required,hhmm"`
	OriginalTeacherID string `json:"original_teacher_id" binding:"required,uuid"`
}

// AvailableTeacherResponse 可代课教师
type AvailableTeacherResponse struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Instruments      []string `json:"instruments"`
	CompletedLessons int64    `json:"completed_lessons"`
}

// FindSubstitutesResponse 可代课教师列表（按已完成课时升序）
type FindSubstitutesResponse struct {
	AvailableTeachers []AvailableTeacherResponse `json:"available_teachers"`
}
