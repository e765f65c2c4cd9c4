package dto

// ── 通用嵌套对象 ──

// TeacherBrief 教师简要信息
type TeacherBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LessonBrief 课程简要信息
type LessonBrief struct {
	ID         string `json:"id"`
	TeacherID  string `json:"teacher_id"`
	StudentID  string `json:"student_id"`
	RoomID     string `json:"room_id"`
	Instrument string `json:"instrument"`
	Date       string `json:"date"`       // 2006-01-02
	StartTime  string `json:"start_time"` // HH:MM
	EndTime    string `json:"end_time"`
	Status     string `json:"status"`
}

// ── 分页请求 ──

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaginationRequest 收件箱等列表接口的分页参数，页码从 1 开始
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (p *PaginationRequest) GetPage() int {
	return max(p.Page, 1)
}

// GetPageSize 未传时取默认值；服务层直接调用时同样截断到上限
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return defaultPageSize
	}
	return min(p.PageSize, maxPageSize)
}

func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
