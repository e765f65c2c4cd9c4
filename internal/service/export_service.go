package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cadenza/backend/internal/model"
	"cadenza/backend/internal/repository"
)

// ExportService 代课报表导出
//
//   - 以 bytes.Buffer 返回，由 Handler 设置下载响应头
//   - 单个 Sheet，每行一条代课请求，按课程与创建时间排序
type ExportService interface {
	ExportAbsence(ctx context.Context, absenceID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

var requestStatusNames = map[string]string{
	model.RequestStatusAwaiting:  "待确认",
	model.RequestStatusApproved:  "已接受",
	model.RequestStatusDeclined:  "已拒绝",
	model.RequestStatusCancelled: "已取消",
}

func (s *exportService) ExportAbsence(ctx context.Context, absenceID string) (*bytes.Buffer, string, error) {
	absence, err := s.repo.Absence.GetByID(ctx, absenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrAbsenceNotFound
		}
		s.logger.Error("查询缺勤失败", zap.String("absence_id", absenceID), zap.Error(err))
		return nil, "", err
	}

	requests, err := s.repo.SubstitutionRequest.List(ctx, repository.RequestFilter{AbsenceID: absenceID})
	if err != nil {
		s.logger.Error("查询代课请求失败", zap.String("absence_id", absenceID), zap.Error(err))
		return nil, "", err
	}
	if len(requests) == 0 {
		return nil, "", ErrExportEmpty
	}

	teacherName := absence.TeacherID
	if absence.Teacher != nil {
		teacherName = absence.Teacher.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "代课记录"
	idx, _ := f.NewSheet(sheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"课程日期", "时间", "乐器", "代课教师", "状态", "抢单组", "发起时间", "处理时间"}
	widths := []float64{12, 14, 10, 14, 10, 38, 20, 20}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	f.SetCellValue(sheet, "A1", fmt.Sprintf("%s 缺勤代课记录（%s ~ %s）", teacherName,
		absence.StartDate.Format(dateLayout), absence.EndDate.Format(dateLayout)))
	f.MergeCell(sheet, "A1", lastCol+"1")

	// 表头
	for i, h := range headers {
		c, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheet, c, h)
	}
	f.SetCellStyle(sheet, "A2", lastCol+"2", headerStyle)

	// 数据行
	for i := range requests {
		r := &requests[i]
		row := i + 3
		values := []interface{}{"-", "-", "-", r.SubstituteTeacherID, requestStatusNames[r.Status], "-",
			r.CreatedAt.Format("2006-01-02 15:04"), "-"}
		if r.Lesson != nil {
			values[0] = r.Lesson.LessonDate.Format(dateLayout)
			values[1] = fmt.Sprintf("%s-%s", shortClock(r.Lesson.StartTime), shortClock(r.Lesson.EndTime))
			values[2] = r.Lesson.Instrument
		}
		if r.SubstituteTeacher != nil {
			values[3] = r.SubstituteTeacher.Name
		}
		if r.BroadcastGroupID != nil {
			values[5] = *r.BroadcastGroupID
		}
		if r.ResolvedAt != nil {
			values[7] = r.ResolvedAt.Format("2006-01-02 15:04")
		}
		for col, v := range values {
			c, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, c, v)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("代课记录_%s_%s.xlsx", teacherName, time.Now().Format("20060102"))
	return buf, filename, nil
}
