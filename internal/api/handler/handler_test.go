package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"cadenza/backend/internal/dto"
	"cadenza/backend/internal/service"
	"cadenza/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

const (
	testAbsenceID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	testLessonID  = "16fd2706-8baf-433b-82eb-8c7fada847da"
	testTeacherID = "886313e1-3b8a-5372-9b90-0c9aee199e5d"
)

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

type mockSubstitutionService struct {
	createResult  *dto.CreateSubstitutionResponse
	createErr     error
	listResult    []dto.SubstitutionRequestResponse
	listErr       error
	respondResult *dto.SubstitutionRequestResponse
	respondErr    error

	lastCaller   service.Caller
	lastDecision string
	lastList     *dto.ListSubstitutionRequest
}

func (m *mockSubstitutionService) Create(_ context.Context, _ *dto.CreateSubstitutionRequest, caller service.Caller) (*dto.CreateSubstitutionResponse, error) {
	m.lastCaller = caller
	return m.createResult, m.createErr
}
func (m *mockSubstitutionService) List(_ context.Context, req *dto.ListSubstitutionRequest, caller service.Caller) ([]dto.SubstitutionRequestResponse, error) {
	m.lastCaller = caller
	m.lastList = req
	return m.listResult, m.listErr
}
func (m *mockSubstitutionService) Respond(_ context.Context, _ string, decision string, caller service.Caller) (*dto.SubstitutionRequestResponse, error) {
	m.lastCaller = caller
	m.lastDecision = decision
	return m.respondResult, m.respondErr
}

type mockAvailabilityService struct {
	result *dto.FindSubstitutesResponse
	err    error
}

func (m *mockAvailabilityService) FindSubstitutes(_ context.Context, _ *dto.FindSubstitutesRequest) (*dto.FindSubstitutesResponse, error) {
	return m.result, m.err
}

type mockNotificationService struct {
	service.NotificationService
	list    []dto.NotificationResponse
	total   int64
	markErr error
}

func (m *mockNotificationService) List(_ context.Context, _ string, _ *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	return m.list, m.total, nil
}
func (m *mockNotificationService) MarkRead(_ context.Context, _, _ string) error {
	return m.markErr
}

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportAbsence(_ context.Context, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

type mockCalendarService struct {
	err error
}

func (m *mockCalendarService) RequestInvite(_ context.Context, _ string, _ service.Caller) ([]byte, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), "substitution_20260302.ics", nil
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func withCaller(userID, role, teacherID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("role", role)
		c.Set("teacher_id", teacherID)
		c.Next()
	}
}

func asTeacher() gin.HandlerFunc { return withCaller("u-1", "teacher", testTeacherID) }
func asAdmin() gin.HandlerFunc   { return withCaller("u-admin", "admin", "") }

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func do(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// ═══════════════════════════════════════════════════════════
// SubstitutionHandler Tests
// ═══════════════════════════════════════════════════════════

func TestSubstitutionHandler_Create_Success(t *testing.T) {
	mock := &mockSubstitutionService{createResult: &dto.CreateSubstitutionResponse{BroadcastMode: true}}
	h := NewSubstitutionHandler(mock)
	r := gin.New()
	r.POST("/substitute-requests", asAdmin(), h.Create)

	w := do(r, "POST", "/substitute-requests", jsonBody(dto.CreateSubstitutionRequest{
		AbsenceID:            testAbsenceID,
		LessonIDs:            []string{testLessonID},
		SubstituteTeacherIDs: []string{testTeacherID},
		BroadcastMode:        true,
	}))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if mock.lastCaller.UserID != "u-admin" || !mock.lastCaller.IsAdmin() {
		t.Errorf("调用方身份未正确传递: %+v", mock.lastCaller)
	}
}

func TestSubstitutionHandler_Create_BindErrors(t *testing.T) {
	h := NewSubstitutionHandler(&mockSubstitutionService{})
	r := gin.New()
	r.POST("/substitute-requests", asAdmin(), h.Create)

	cases := map[string]io.Reader{
		"非法 JSON":    strings.NewReader("{"),
		"缺少 absence": jsonBody(map[string]interface{}{"lesson_ids": []string{testLessonID}}),
		"lesson 非 uuid": jsonBody(map[string]interface{}{
			"absence_id": testAbsenceID, "lesson_ids": []string{"abc"},
		}),
		"空 lesson 列表": jsonBody(map[string]interface{}{
			"absence_id": testAbsenceID, "lesson_ids": []string{},
		}),
	}
	for name, body := range cases {
		w := do(r, "POST", "/substitute-requests", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, w.Code)
		}
		if resp := parseResponse(w); resp.Code != codeValidation {
			t.Errorf("%s: expected code %d, got %d", name, codeValidation, resp.Code)
		}
	}
}

func TestSubstitutionHandler_Create_ServiceErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   int
	}{
		{service.ErrEmptyCandidates, http.StatusBadRequest, codeValidation},
		{service.ErrAbsenceNotFound, http.StatusNotFound, codeNotFound},
		{service.ErrAbsenceClosed, http.StatusConflict, codeConflict},
		{context.DeadlineExceeded, http.StatusInternalServerError, codeInternal},
	}
	for _, tt := range tests {
		h := NewSubstitutionHandler(&mockSubstitutionService{createErr: tt.err})
		r := gin.New()
		r.POST("/substitute-requests", asAdmin(), h.Create)

		w := do(r, "POST", "/substitute-requests", jsonBody(dto.CreateSubstitutionRequest{
			AbsenceID: testAbsenceID,
			LessonIDs: []string{testLessonID},
		}))
		if w.Code != tt.status {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.status, w.Code)
		}
		if resp := parseResponse(w); resp.Code != tt.code {
			t.Errorf("%v: expected code %d, got %d", tt.err, tt.code, resp.Code)
		}
	}
}

func TestSubstitutionHandler_List(t *testing.T) {
	mock := &mockSubstitutionService{listResult: []dto.SubstitutionRequestResponse{{ID: "r-1"}}}
	h := NewSubstitutionHandler(mock)
	r := gin.New()
	r.GET("/substitute-requests", asTeacher(), h.List)

	w := do(r, "GET", "/substitute-requests?absence_id="+testAbsenceID+"&status=approved", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.lastList.AbsenceID != testAbsenceID || mock.lastList.Status != "approved" {
		t.Errorf("查询参数未正确绑定: %+v", mock.lastList)
	}
	if mock.lastCaller.TeacherID != testTeacherID {
		t.Errorf("teacher_id 未传递: %+v", mock.lastCaller)
	}

	w = do(r, "GET", "/substitute-requests?status=unknown", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("非法 status 期望 400，实际 %d", w.Code)
	}
}

func TestSubstitutionHandler_Respond(t *testing.T) {
	tests := []struct {
		name   string
		body   interface{}
		err    error
		status int
		code   int
	}{
		{"批准成功", dto.RespondRequest{Response: "approve"}, nil, http.StatusOK, 0},
		{"拒绝成功", dto.RespondRequest{Response: "decline"}, nil, http.StatusOK, 0},
		{"非法回复", dto.RespondRequest{Response: "maybe"}, nil, http.StatusBadRequest, codeValidation},
		{"缺少回复", map[string]string{}, nil, http.StatusBadRequest, codeValidation},
		{"已失效", dto.RespondRequest{Response: "approve"}, service.ErrRequestStale, http.StatusConflict, codeStale},
		{"已被代课", dto.RespondRequest{Response: "approve"}, service.ErrLessonAlreadyCovered, http.StatusConflict, codeStale},
		{"非本人", dto.RespondRequest{Response: "approve"}, service.ErrNotRequestOwner, http.StatusForbidden, codeForbidden},
		{"不存在", dto.RespondRequest{Response: "decline"}, service.ErrRequestNotFound, http.StatusNotFound, codeNotFound},
		{"课程已取消", dto.RespondRequest{Response: "approve"}, service.ErrLessonGone, http.StatusNotFound, codeNotFound},
		{"时间冲突", dto.RespondRequest{Response: "approve"}, service.ErrSubstituteConflict, http.StatusConflict, codeConflict},
		{"锁等待超时", dto.RespondRequest{Response: "approve"}, service.ErrGroupBusy, http.StatusConflict, codeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockSubstitutionService{
				respondResult: &dto.SubstitutionRequestResponse{ID: "r-1", Status: "approved"},
				respondErr:    tt.err,
			}
			h := NewSubstitutionHandler(mock)
			r := gin.New()
			r.POST("/substitute-requests/:id/respond", asTeacher(), h.Respond)

			w := do(r, "POST", "/substitute-requests/r-1/respond", jsonBody(tt.body))
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if resp := parseResponse(w); resp.Code != tt.code {
				t.Errorf("expected code %d, got %d", tt.code, resp.Code)
			}
		})
	}
}

func TestSubstitutionHandler_Respond_Unauthenticated(t *testing.T) {
	h := NewSubstitutionHandler(&mockSubstitutionService{})
	r := gin.New()
	r.POST("/substitute-requests/:id/respond", h.Respond)

	w := do(r, "POST", "/substitute-requests/r-1/respond", jsonBody(dto.RespondRequest{Response: "approve"}))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// TeacherHandler Tests
// ═══════════════════════════════════════════════════════════

func TestTeacherHandler_FindSubstitutes(t *testing.T) {
	mock := &mockAvailabilityService{result: &dto.FindSubstitutesResponse{
		AvailableTeachers: []dto.AvailableTeacherResponse{{ID: testTeacherID, Name: "Alice"}},
	}}
	h := NewTeacherHandler(mock)
	r := gin.New()
	r.POST("/teachers/find-substitutes", asAdmin(), h.FindSubstitutes)

	valid := dto.FindSubstitutesRequest{
		Instrument:        "piano",
		Date:              "2026-03-02",
		StartTime:         "10:00",
		EndTime:           "11:00",
		OriginalTeacherID: testTeacherID,
	}
	w := do(r, "POST", "/teachers/find-substitutes", jsonBody(valid))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"available_teachers"`) {
		t.Errorf("响应缺少 available_teachers: %s", w.Body.String())
	}

	bad := valid
	bad.StartTime = "25:00"
	if w := do(r, "POST", "/teachers/find-substitutes", jsonBody(bad)); w.Code != http.StatusBadRequest {
		t.Errorf("非法时刻期望 400，实际 %d", w.Code)
	}

	bad = valid
	bad.Date = "03/02/2026"
	if w := do(r, "POST", "/teachers/find-substitutes", jsonBody(bad)); w.Code != http.StatusBadRequest {
		t.Errorf("非法日期期望 400，实际 %d", w.Code)
	}

	mock.err = service.ErrInvalidTimeRange
	if w := do(r, "POST", "/teachers/find-substitutes", jsonBody(valid)); w.Code != http.StatusBadRequest {
		t.Errorf("ErrInvalidTimeRange 期望 400，实际 %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// Notification / Export Tests
// ═══════════════════════════════════════════════════════════

func TestNotificationHandler(t *testing.T) {
	mock := &mockNotificationService{
		list:  []dto.NotificationResponse{{ID: "n-1"}, {ID: "n-2"}},
		total: 5,
	}
	h := NewNotificationHandler(mock)
	r := gin.New()
	r.GET("/notifications", asTeacher(), h.List)
	r.PUT("/notifications/:id/read", asTeacher(), h.MarkRead)

	w := do(r, "GET", "/notifications?page=1&page_size=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Data response.PageData `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.Pagination.Total != 5 || body.Data.Pagination.TotalPages != 3 {
		t.Errorf("分页信息错误: %+v", body.Data.Pagination)
	}

	if w := do(r, "PUT", "/notifications/n-1/read", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	mock.markErr = service.ErrNotificationNotFound
	if w := do(r, "PUT", "/notifications/n-x/read", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestExportHandler(t *testing.T) {
	exp := &mockExportService{buf: bytes.NewBufferString("xlsx"), filename: "代课记录.xlsx"}
	cal := &mockCalendarService{}
	h := NewExportHandler(exp, cal)
	r := gin.New()
	r.GET("/substitute-requests/export", asAdmin(), h.ExportSubstitutions)
	r.GET("/substitute-requests/:id/calendar", asTeacher(), h.CalendarInvite)

	w := do(r, "GET", "/substitute-requests/export?absence_id="+testAbsenceID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "attachment") {
		t.Error("缺少下载响应头")
	}

	if w := do(r, "GET", "/substitute-requests/export", nil); w.Code != http.StatusBadRequest {
		t.Errorf("缺少 absence_id 期望 400，实际 %d", w.Code)
	}
	exp.err = service.ErrExportEmpty
	if w := do(r, "GET", "/substitute-requests/export?absence_id="+testAbsenceID, nil); w.Code != http.StatusNotFound {
		t.Errorf("无数据期望 404，实际 %d", w.Code)
	}

	w = do(r, "GET", "/substitute-requests/r-1/calendar", nil)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar") {
		t.Errorf("日历下载失败: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	cal.err = service.ErrRequestNotApproved
	w = do(r, "GET", "/substitute-requests/r-1/calendar", nil)
	if w.Code != http.StatusConflict || parseResponse(w).Code != codeStale {
		t.Errorf("未批准期望 409/%d，实际 %d/%d", codeStale, w.Code, parseResponse(w).Code)
	}
	cal.err = service.ErrNotInviteRecipient
	w = do(r, "GET", "/substitute-requests/r-1/calendar", nil)
	if w.Code != http.StatusForbidden || parseResponse(w).Message != service.ErrNotInviteRecipient.Error() {
		t.Errorf("非代课教师期望 403，实际 %d %s", w.Code, parseResponse(w).Message)
	}
}
