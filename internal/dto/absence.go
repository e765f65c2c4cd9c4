package dto

// AbsenceProgress 缺勤下代课请求进度
type AbsenceProgress struct {
	Total    int64 `json:"total"`
	Awaiting int64 `json:"awaiting"`
	Approved int64 `json:"approved"`
}

// AbsenceResponse 缺勤详情
type AbsenceResponse struct {
	ID              string          `json:"id"`
	Teacher         TeacherBrief    `json:"teacher"`
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	Reason          string          `json:"reason,omitempty"`
	Status          string          `json:"status"`
	ResolvedAt      *string         `json:"resolved_at,omitempty"`
	AffectedLessons []LessonBrief   `json:"affected_lessons"`
	Progress        AbsenceProgress `json:"progress"`
}
