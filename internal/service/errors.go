package service

import pkgerrors "cadenza/backend/pkg/errors"

// ── 代课协调业务错误 ──
// 每个哨兵错误包装一个类别（pkg/errors），Handler 按类别映射状态码

var (
	ErrAbsenceNotFound    = pkgerrors.New(pkgerrors.ErrNotFound, "缺勤记录不存在")
	ErrAbsenceClosed      = pkgerrors.New(pkgerrors.ErrConflict, "缺勤记录已关闭，不能再发起代课")
	ErrLessonNotFound     = pkgerrors.New(pkgerrors.ErrNotFound, "课程不存在")
	ErrLessonNotAffected  = pkgerrors.New(pkgerrors.ErrValidation, "课程不在该缺勤的受影响范围内")
	ErrEmptyLessons       = pkgerrors.New(pkgerrors.ErrValidation, "课程列表不能为空")
	ErrEmptyCandidates    = pkgerrors.New(pkgerrors.ErrValidation, "代课教师列表不能为空")
	ErrTeacherNotFound    = pkgerrors.New(pkgerrors.ErrNotFound, "教师不存在或已停用")
	ErrSubstituteIsAbsent = pkgerrors.New(pkgerrors.ErrValidation, "代课教师不能是缺勤教师本人")
	ErrInvalidTimeRange   = pkgerrors.New(pkgerrors.ErrValidation, "开始时间必须早于结束时间")
	ErrInvalidDate        = pkgerrors.New(pkgerrors.ErrValidation, "日期格式无效")

	ErrRequestNotFound      = pkgerrors.New(pkgerrors.ErrNotFound, "代课请求不存在")
	ErrInvalidDecision      = pkgerrors.New(pkgerrors.ErrValidation, "回复只能是 approve 或 decline")
	ErrNotRequestOwner      = pkgerrors.New(pkgerrors.ErrForbidden, "只能回复发给自己的代课请求")
	ErrRequestStale         = pkgerrors.New(pkgerrors.ErrStale, "代课请求已处理")
	ErrLessonGone           = pkgerrors.New(pkgerrors.ErrNotFound, "课程已被删除或取消")
	ErrLessonAlreadyCovered = pkgerrors.New(pkgerrors.ErrStale, "课程已由其他教师代课")
	ErrSubstituteConflict   = pkgerrors.New(pkgerrors.ErrConflict, "代课教师在该时段已有其他课程")
	ErrGroupBusy            = pkgerrors.New(pkgerrors.ErrConflict, "该课程的代课请求正在处理中，请稍后重试")
	ErrRequestNotApproved   = pkgerrors.New(pkgerrors.ErrStale, "代课请求未处于已批准状态")
	ErrNotInviteRecipient   = pkgerrors.New(pkgerrors.ErrForbidden, "只有代课教师本人或管理员可以下载日历邀请")

	ErrNotificationNotFound = pkgerrors.New(pkgerrors.ErrNotFound, "通知不存在")
	ErrExportEmpty          = pkgerrors.New(pkgerrors.ErrNotFound, "该缺勤暂无代课请求")
	ErrExportGenerateFail   = pkgerrors.New(pkgerrors.ErrInternal, "生成导出文件失败")
)
