package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	errStale := New(ErrStale, "请求已处理")
	wrapped := fmt.Errorf("approve: %w", errStale)

	if !errors.Is(wrapped, errStale) {
		t.Error("应能匹配具体错误")
	}
	if !errors.Is(wrapped, ErrStale) {
		t.Error("应能匹配错误类别")
	}
	if errors.Is(wrapped, ErrConflict) {
		t.Error("不应匹配其他类别")
	}
	if errStale.Error() != "请求已处理" {
		t.Errorf("错误信息不符合预期: %s", errStale.Error())
	}
}
