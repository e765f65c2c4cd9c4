package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ── 错误类别 ──
// 业务层的哨兵错误通过 %w 包装以下类别，Handler 按类别映射 HTTP 状态码。

var (
	ErrValidation = errors.New("参数校验失败")
	ErrNotFound   = errors.New("资源不存在")
	ErrForbidden  = errors.New("无权限操作")
	ErrStale      = errors.New("请求已失效")
	ErrConflict   = errors.New("资源冲突")
	ErrInternal   = errors.New("服务器内部错误")
)

// Kind 业务错误：携带类别，便于 errors.Is 同时匹配具体错误与类别
type Kind struct {
	kind error
	msg  string
}

// New 创建指定类别的业务错误
func New(kind error, msg string) error {
	return &Kind{kind: kind, msg: msg}
}

func (e *Kind) Error() string { return e.msg }

// Unwrap 返回错误类别
func (e *Kind) Unwrap() error { return e.kind }
